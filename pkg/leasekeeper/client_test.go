package leasekeeper_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/journal"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/memnet"
	"github.com/adslot/leasekeeper/pkg/config"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/leasekeeper"
	"github.com/adslot/leasekeeper/pkg/metrics"
	"github.com/adslot/leasekeeper/pkg/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Contract.PackageID = "0xpkg"
	cfg.Contract.FactoryID = "0xfactory"
	dir := t.TempDir()
	cfg.Cache.Path = filepath.Join(dir, "cache")
	cfg.Journal.Path = filepath.Join(dir, "journal.jsonl")
	return cfg
}

func contractOf(cfg *config.Config) ledger.Contract {
	return ledger.Contract{
		PackageID: cfg.Contract.PackageID,
		Module:    cfg.Contract.Module,
		FactoryID: cfg.Contract.FactoryID,
		ClockID:   cfg.Contract.ClockID,
	}
}

func counterValue(t *testing.T, reg *metrics.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			var total float64
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return 0
}

func TestNew_Validates(t *testing.T) {
	cfg := config.Default()
	cfg.Network = "devnet"
	_, err := leasekeeper.New(cfg, leasekeeper.Backends{})
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)

	_, err = leasekeeper.New(config.Default(), leasekeeper.Backends{})
	assert.Error(t, err)
}

func TestClient_RenewEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	net := memnet.New(contractOf(cfg))
	net.SetClock(func() time.Time { return now })
	net.SetEpoch(10)
	net.SetLag(1)

	blob, blobID := net.SeedBlob("0xowner", []byte("banner"), 12)
	lease := net.SeedLease(memnet.LeaseSeed{
		Owner:      "0xowner",
		AdSpaceID:  "0xspace",
		ContentURL: cfg.AggregatorURL() + blob.String(),
		BlobID:     blobID,
		Source:     model.StorageDecentralized,
		End:        now.Add(24 * time.Hour),
	})

	reg := metrics.NewRegistry()
	rec := &events.Recorder{}
	sleeper := &confirm.FakeSleeper{}
	c, err := leasekeeper.New(cfg, leasekeeper.Backends{Ledger: net, Storage: net},
		leasekeeper.WithSleeper(sleeper),
		leasekeeper.WithClock(func() time.Time { return now }),
		leasekeeper.WithMetrics(reg),
		leasekeeper.WithSink(rec),
	)
	require.NoError(t, err)
	defer c.Close()

	l, err := c.Lease(context.Background(), lease)
	require.NoError(t, err)
	plan, err := c.PlanFor(context.Background(), l, 5, now)
	require.NoError(t, err)
	assert.True(t, plan.NeedExtend)
	assert.Equal(t, uint64(4), plan.EpochsToAdd)

	res, err := c.Renew(context.Background(), leasekeeper.RenewRequest{LeaseID: lease, Days: 5}, net.NewSigner("0xowner"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, res.Outcome())
	assert.Equal(t, uint64(4), res.Plan.EpochsToAdd)

	end, _ := net.BlobEndEpoch(blob)
	assert.Equal(t, uint64(16), end)

	cached, err := c.Cached().Get(lease)
	require.NoError(t, err)
	assert.True(t, cached.Lease.LeaseEnd.Equal(now.Add(6*24*time.Hour)))

	rep, err := journal.Verify(c.JournalPath())
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Positive(t, rep.Records)

	assert.Equal(t, 4.0, counterValue(t, reg, "leasekeeper_storage_epochs_added_total"))
	assert.NotEmpty(t, rec.Of(model.EventConfirmAttempt))
}

func TestClient_PlanForMatchesRenewal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Path = ""
	cfg.Journal.Path = ""
	net := memnet.New(contractOf(cfg))
	net.SetEpoch(10)

	c, err := leasekeeper.New(cfg, leasekeeper.Backends{Ledger: net, Storage: net}, leasekeeper.WithSleeper(&confirm.FakeSleeper{}))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	blob, _ := net.SeedBlob("0xowner", []byte("banner"), 12)
	stored := model.LeaseRecord{
		ID:       "0xlease",
		LeaseEnd: now.Add(24 * time.Hour),
		Content:  model.ContentRef{URL: cfg.AggregatorURL() + blob.String(), Kind: model.StorageDecentralized},
	}
	plan, err := c.PlanFor(ctx, stored, 5, now)
	require.NoError(t, err)
	assert.Equal(t, blob, plan.ObjectID)
	assert.Equal(t, uint64(4), plan.EpochsToAdd)

	unresolvable := stored
	unresolvable.Content.URL = "https://cdn.example/banner.png"
	_, err = c.PlanFor(ctx, unresolvable, 5, now)
	assert.ErrorIs(t, err, errclass.ErrObjectIDUnresolved)

	expired, _ := net.SeedBlob("0xowner", []byte("old"), 10)
	gone := stored
	gone.Content.URL = cfg.AggregatorURL() + expired.String()
	_, err = c.PlanFor(ctx, gone, 5, now)
	assert.ErrorIs(t, err, errclass.ErrBlobExpired)

	external := stored
	external.Content = model.ContentRef{URL: "https://cdn.example/banner.png", Kind: model.StorageExternal}
	_, err = c.PlanFor(ctx, external, 5, now)
	assert.ErrorIs(t, err, errclass.ErrInvalidRequest)

	_, err = c.PlanFor(ctx, stored, 5, time.Unix(-100, 0))
	assert.NoError(t, err)
}

func TestClient_UpdatePriceAndRegister(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Path = ""
	net := memnet.New(contractOf(cfg))
	net.SeedAdSpace("0xspace", "0xcreator", 1)
	net.SeedFactory("0xfactory", "0xadmin")

	c, err := leasekeeper.New(cfg, leasekeeper.Backends{Ledger: net, Storage: net}, leasekeeper.WithSleeper(&confirm.FakeSleeper{}))
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Cached())

	res, err := c.UpdatePrice(context.Background(), "0xspace", 3, net.NewSigner("0xcreator"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, res.Outcome)

	res, err = c.RegisterDeveloper(context.Background(), "0xdev", net.NewSigner("0xadmin"))
	require.NoError(t, err)
	assert.Equal(t, "0xfactory", res.ObjectID)
}
