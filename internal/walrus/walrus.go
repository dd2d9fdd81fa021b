// Package walrus is the channel to the decentralized blob storage network.
package walrus

import (
	"context"
	"errors"
	"time"

	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/pkg/model"
)

// WriteRequest describes a blob upload.
type WriteRequest struct {
	Data       []byte
	Epochs     uint64
	Deletable  bool
	Attributes map[string]string
}

// WriteResult identifies a stored blob.
type WriteResult struct {
	BlobID   string
	ObjectID model.ObjectID
	EndEpoch uint64
	Digest   model.TxDigest
}

// Network is the storage network. Mutations are signed by the caller; a
// declined signature is reported as the signer's error.
type Network interface {
	WriteBlob(ctx context.Context, req WriteRequest, signer ledger.Signer) (WriteResult, error)
	ExtendBlob(ctx context.Context, id model.ObjectID, epochs uint64, signer ledger.Signer) (model.TxDigest, error)
	DeleteBlob(ctx context.Context, id model.ObjectID, signer ledger.Signer) (model.TxDigest, error)
	// GlobalEpoch returns the network's current epoch.
	GlobalEpoch(ctx context.Context) (uint64, error)
}

// ErrRetryable marks a transient client failure after which the same
// request may be sent again.
var ErrRetryable = errors.New("walrus: retryable client error")

type timeoutNetwork struct {
	next Network
	d    time.Duration
}

// WithTimeout bounds every call to n by d. A non-positive d returns n.
func WithTimeout(n Network, d time.Duration) Network {
	if d <= 0 {
		return n
	}
	return &timeoutNetwork{next: n, d: d}
}

func (t *timeoutNetwork) WriteBlob(ctx context.Context, req WriteRequest, signer ledger.Signer) (WriteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.WriteBlob(ctx, req, signer)
}

func (t *timeoutNetwork) ExtendBlob(ctx context.Context, id model.ObjectID, epochs uint64, signer ledger.Signer) (model.TxDigest, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.ExtendBlob(ctx, id, epochs, signer)
}

func (t *timeoutNetwork) DeleteBlob(ctx context.Context, id model.ObjectID, signer ledger.Signer) (model.TxDigest, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.DeleteBlob(ctx, id, signer)
}

func (t *timeoutNetwork) GlobalEpoch(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GlobalEpoch(ctx)
}
