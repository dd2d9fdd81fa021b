package ledger

import (
	"context"
	"time"

	"github.com/adslot/leasekeeper/pkg/model"
)

type timeoutReader struct {
	next Reader
	d    time.Duration
}

// WithTimeout bounds every read of r by d. A non-positive d returns r.
func WithTimeout(r Reader, d time.Duration) Reader {
	if d <= 0 {
		return r
	}
	return &timeoutReader{next: r, d: d}
}

func (t *timeoutReader) GetObject(ctx context.Context, id string) (model.ObjectSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GetObject(ctx, id)
}

func (t *timeoutReader) GetOwnedObjects(ctx context.Context, owner, typeFilter, cursor string) (model.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.GetOwnedObjects(ctx, owner, typeFilter, cursor)
}
