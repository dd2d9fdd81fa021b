package leasecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	c.now = func() time.Time { return base }
	return c
}

func lease(id string, days int) model.LeaseRecord {
	return model.LeaseRecord{
		ID:        id,
		AdSpaceID: "0xspace",
		LeaseEnd:  base.Add(time.Duration(days) * 24 * time.Hour),
		IsActive:  true,
		Content:   model.ContentRef{URL: "https://cdn.example.com/" + id, Kind: model.StorageExternal},
	}
}

func TestPutGet(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.Put(lease("0xa", 3)))

	e, err := c.Get("0xa")
	require.NoError(t, err)
	assert.Equal(t, "0xa", e.Lease.ID)
	assert.True(t, e.Lease.LeaseEnd.Equal(base.Add(72*time.Hour)))
	assert.True(t, e.CachedAt.Equal(base))
}

func TestGetMissing(t *testing.T) {
	c := openTemp(t)
	_, err := c.Get("0xnone")
	assert.ErrorIs(t, err, errclass.ErrLeaseNotFound)
}

func TestPutReplaces(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.Put(lease("0xa", 3)))
	require.NoError(t, c.Put(lease("0xa", 9)))

	all, err := c.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Lease.LeaseEnd.Equal(base.Add(9*24*time.Hour)))
}

func TestListOrderedByEnd(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.Put(lease("0xa", 10)))
	require.NoError(t, c.Put(lease("0xb", 2)))
	require.NoError(t, c.Put(lease("0xc", 5)))

	all, err := c.List()
	require.NoError(t, err)
	var ids []string
	for _, e := range all {
		ids = append(ids, e.Lease.ID)
	}
	assert.Equal(t, []string{"0xb", "0xc", "0xa"}, ids)

	soon, err := c.Expiring(base, 6*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, soon, 2)
}

func TestDelete(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.Put(lease("0xa", 1)))
	require.NoError(t, c.Delete("0xa"))
	require.NoError(t, c.Delete("0xa"))
	_, err := c.Get("0xa")
	assert.ErrorIs(t, err, errclass.ErrLeaseNotFound)
}

func TestPutRequiresID(t *testing.T) {
	c := openTemp(t)
	assert.ErrorIs(t, c.Put(model.LeaseRecord{}), errclass.ErrInvalidRequest)
}

func TestInMemory(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put(lease("0xa", 1)))
	_, err = c.Get("0xa")
	assert.NoError(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(lease("0xa", 1)))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Get("0xa")
	assert.NoError(t, err)
}
