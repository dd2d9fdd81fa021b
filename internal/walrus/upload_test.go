package walrus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/memnet"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

const aggregator = "https://aggregator.example.com/v1/blobs/by-object-id"

var daily = model.EpochPolicy{Network: model.NetworkTestnet, EpochLength: 24 * time.Hour}

// flaky fails the first writes with a fixed error before delegating.
type flaky struct {
	walrus.Network
	errs  []error
	calls int
	last  walrus.WriteRequest
}

func (f *flaky) WriteBlob(ctx context.Context, req walrus.WriteRequest, s ledger.Signer) (walrus.WriteResult, error) {
	f.calls++
	f.last = req
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return walrus.WriteResult{}, err
	}
	return f.Network.WriteBlob(ctx, req, s)
}

func newNet() *memnet.Network {
	net := memnet.New(ledger.Contract{PackageID: "0xpkg", Module: "nft_billboard", ClockID: "0x6"})
	net.SetEpoch(40)
	return net
}

func TestUpload(t *testing.T) {
	net := newNet()
	rec := &events.Recorder{}
	u := walrus.NewUploader(net, daily, aggregator, rec, logging.Nop())

	up, err := u.Upload(context.Background(), []byte("banner"), 36*time.Hour, net.NewSigner("0xme"), map[string]string{"lease": "0xa"})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), up.Epochs)
	assert.Equal(t, uint64(42), up.EndEpoch)
	assert.Equal(t, aggregator+"/"+up.ObjectID.String(), up.URL)
	expected, err := memnet.BlobID([]byte("banner"))
	require.NoError(t, err)
	assert.Equal(t, expected, up.BlobID)

	end, ok := net.BlobEndEpoch(up.ObjectID)
	require.True(t, ok)
	assert.Equal(t, uint64(42), end)

	uploaded := rec.Of(model.EventStorageUploaded)
	require.Len(t, uploaded, 1)
	assert.Equal(t, 6, uploaded[0].Details["bytes"])
}

func TestUpload_Attributes(t *testing.T) {
	net := newNet()
	f := &flaky{Network: net}
	u := walrus.NewUploader(f, daily, aggregator, nil, logging.Nop())

	_, err := u.Upload(context.Background(), []byte("abc"), time.Hour, net.NewSigner("0xme"), map[string]string{"lease": "0xa"})
	require.NoError(t, err)
	assert.Equal(t, "3", f.last.Attributes["size"])
	assert.Equal(t, "0xa", f.last.Attributes["lease"])
	assert.NotEmpty(t, f.last.Attributes["uploadTime"])
	assert.True(t, f.last.Deletable)
}

func TestUpload_RetriesOnce(t *testing.T) {
	net := newNet()
	f := &flaky{Network: net, errs: []error{walrus.ErrRetryable}}
	u := walrus.NewUploader(f, daily, aggregator, nil, logging.Nop())

	_, err := u.Upload(context.Background(), []byte("abc"), time.Hour, net.NewSigner("0xme"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)

	f = &flaky{Network: net, errs: []error{walrus.ErrRetryable, walrus.ErrRetryable}}
	u = walrus.NewUploader(f, daily, aggregator, nil, logging.Nop())
	_, err = u.Upload(context.Background(), []byte("abc"), time.Hour, net.NewSigner("0xme"), nil)
	assert.ErrorIs(t, err, errclass.ErrStorageOpFailed)
	assert.Equal(t, 2, f.calls)
}

func TestUpload_Failures(t *testing.T) {
	net := newNet()
	u := walrus.NewUploader(net, daily, aggregator, nil, logging.Nop())
	signer := net.NewSigner("0xme")

	_, err := u.Upload(context.Background(), nil, time.Hour, signer, nil)
	assert.ErrorIs(t, err, errclass.ErrInvalidRequest)

	_, err = u.Upload(context.Background(), []byte("x"), 0, signer, nil)
	assert.ErrorIs(t, err, errclass.ErrInvalidRequest)

	signer.RejectNext(memnet.FnRegisterBlob, 1)
	_, err = u.Upload(context.Background(), []byte("x"), time.Hour, signer, nil)
	assert.ErrorIs(t, err, errclass.ErrUserRejected)

	f := &flaky{Network: net, errs: []error{errors.New("aggregator unreachable")}}
	u = walrus.NewUploader(f, daily, aggregator, nil, logging.Nop())
	_, err = u.Upload(context.Background(), []byte("x"), time.Hour, signer, nil)
	assert.ErrorIs(t, err, errclass.ErrStorageOpFailed)
	assert.Contains(t, err.Error(), "aggregator unreachable")
}

type slow struct{ walrus.Network }

func (slow) GlobalEpoch(ctx context.Context) (uint64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestWithTimeout(t *testing.T) {
	n := walrus.WithTimeout(slow{}, 10*time.Millisecond)
	_, err := n.GlobalEpoch(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	net := newNet()
	assert.Same(t, net, walrus.WithTimeout(net, 0))
}
