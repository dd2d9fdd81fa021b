// Package inspect reads the current expiration window of a stored blob.
package inspect

import (
	"context"

	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

// EndEpochPaths lists where a blob object may carry its end epoch, most
// specific first.
var EndEpochPaths = []ledger.Path{
	{"storage", "fields", "end_epoch"},
	{"storage", "end_epoch"},
	{"end_epoch"},
}

// EpochSource yields the storage network's current epoch.
type EpochSource interface {
	GlobalEpoch(ctx context.Context) (uint64, error)
}

var _ EpochSource = (walrus.Network)(nil)

// Inspector combines the global epoch with a blob object's end epoch.
type Inspector struct {
	epochs  EpochSource
	objects ledger.Reader
}

// New creates an inspector.
func New(epochs EpochSource, objects ledger.Reader) *Inspector {
	return &Inspector{epochs: epochs, objects: objects}
}

// Inspect performs both reads once. It fails with E_GLOBAL_STATE_UNAVAILABLE
// when the epoch cannot be read and E_OBJECT_NOT_FOUND when the blob object
// or its end epoch cannot.
func (i *Inspector) Inspect(ctx context.Context, id model.ObjectID) (model.BlobExpiration, error) {
	current, err := i.epochs.GlobalEpoch(ctx)
	if err != nil {
		return model.BlobExpiration{}, errclass.ErrGlobalStateUnavailable.
			WithMessagef("read global epoch: %s", err.Error()).Wrap(err)
	}

	snap, err := i.objects.GetObject(ctx, id.String())
	if err != nil {
		return model.BlobExpiration{}, errclass.ErrObjectNotFound.
			WithMessagef("read blob %s: %s", id, err.Error()).Wrap(err)
	}

	end, ok := ledger.Fields(snap.Fields).UintAt(EndEpochPaths...)
	if !ok {
		return model.BlobExpiration{}, errclass.ErrObjectNotFound.
			WithMessagef("blob %s has no readable end_epoch", id)
	}

	return model.BlobExpiration{ObjectID: id, CurrentEpoch: current, EndEpoch: end}, nil
}
