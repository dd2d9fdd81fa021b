package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

// PageSize is the listing page size readers are expected to serve.
const PageSize = 50

// DecodeLease interprets a lease object. Keys are tried in a fixed order:
//
//	ad space     ad_space_id, ad_space (string or {id})
//	lease end    lease_end, expiry_timestamp, expiry (unix seconds, required)
//	lease start  lease_start, created_timestamp (unix seconds)
//	content      content_url, content, url
//	storage      storage_source ("walrus" or anything else)
//	renewed      last_renewal_time, renewal_time (unix seconds)
//
// is_active defaults to true when absent.
func DecodeLease(s model.ObjectSnapshot) (model.LeaseRecord, error) {
	f := Fields(s.Fields)

	end, ok := f.Uint("lease_end", "expiry_timestamp", "expiry")
	if !ok {
		return model.LeaseRecord{}, errclass.ErrFieldMissing.WithMessagef("lease %s: lease_end", s.ID)
	}

	rec := model.LeaseRecord{
		ID:       s.ID,
		Owner:    s.Owner,
		Version:  s.Version,
		LeaseEnd: unix(end),
		IsActive: true,
	}
	rec.AdSpaceID, _ = f.ID("ad_space_id", "ad_space")
	rec.BrandName, _ = f.String("brand_name", "brand")
	rec.ProjectURL, _ = f.String("project_url", "project", "website")
	if start, ok := f.Uint("lease_start", "created_timestamp"); ok {
		rec.LeaseStart = unix(start)
	}
	if active, ok := f.Bool("is_active"); ok {
		rec.IsActive = active
	}
	if renewed, ok := f.Uint("last_renewal_time", "renewal_time"); ok && renewed > 0 {
		t := unix(renewed)
		rec.LastRenewal = &t
	}

	rec.Content.URL, _ = f.String("content_url", "content", "url")
	rec.Content.BlobID, _ = f.String("blob_id")
	rec.Content.Kind = model.StorageExternal
	if src, _ := f.String("storage_source"); src == string(model.StorageDecentralized) {
		rec.Content.Kind = model.StorageDecentralized
		if id, ok := objectid.Resolve(rec.Content.URL); ok {
			rec.Content.ObjectID = &id
		}
	}
	return rec, nil
}

func unix(secs uint64) time.Time {
	return time.Unix(int64(secs), 0).UTC()
}

// Leases reads lease records from the ledger. Results are never cached.
type Leases struct {
	reader   Reader
	contract Contract
}

// NewLeases creates a lease reader for contract.
func NewLeases(r Reader, c Contract) *Leases {
	return &Leases{reader: r, contract: c}
}

// Get fetches and decodes one lease.
func (l *Leases) Get(ctx context.Context, id string) (model.LeaseRecord, error) {
	snap, err := l.reader.GetObject(ctx, id)
	if err != nil {
		return model.LeaseRecord{}, classifyRead(id, err)
	}
	return DecodeLease(snap)
}

// ListOwned returns every decodable lease owned by owner, draining all
// pages. Objects that fail to decode are skipped.
func (l *Leases) ListOwned(ctx context.Context, owner string) ([]model.LeaseRecord, error) {
	var out []model.LeaseRecord
	err := l.walk(ctx, owner, func(rec model.LeaseRecord) bool {
		out = append(out, rec)
		return false
	})
	return out, err
}

// FindOwned returns the first lease of owner matching match. Every page is
// read before the lease is reported missing.
func (l *Leases) FindOwned(ctx context.Context, owner string, match func(model.LeaseRecord) bool) (model.LeaseRecord, error) {
	var found *model.LeaseRecord
	err := l.walk(ctx, owner, func(rec model.LeaseRecord) bool {
		if match(rec) {
			found = &rec
			return true
		}
		return false
	})
	if err != nil {
		return model.LeaseRecord{}, err
	}
	if found == nil {
		return model.LeaseRecord{}, errclass.ErrLeaseNotFound.WithMessagef("no matching lease owned by %s", owner)
	}
	return *found, nil
}

// FindByAdSpace returns owner's lease on adSpaceID.
func (l *Leases) FindByAdSpace(ctx context.Context, owner, adSpaceID string) (model.LeaseRecord, error) {
	return l.FindOwned(ctx, owner, func(rec model.LeaseRecord) bool {
		return rec.AdSpaceID == adSpaceID
	})
}

func (l *Leases) walk(ctx context.Context, owner string, visit func(model.LeaseRecord) (stop bool)) error {
	cursor := ""
	for {
		page, err := l.reader.GetOwnedObjects(ctx, owner, l.contract.LeaseType(), cursor)
		if err != nil {
			return fmt.Errorf("list leases of %s: %w", owner, err)
		}
		for _, snap := range page.Objects {
			rec, err := DecodeLease(snap)
			if err != nil {
				continue
			}
			if visit(rec) {
				return nil
			}
		}
		if !page.HasNextPage {
			return nil
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			return fmt.Errorf("list leases of %s: cursor did not advance", owner)
		}
		cursor = page.NextCursor
	}
}

// classifyRead keeps classified errors and maps the rest to object-not-found.
func classifyRead(id string, err error) error {
	var ec *errclass.Error
	if errors.As(err, &ec) {
		return err
	}
	return errclass.ErrObjectNotFound.WithMessagef("read %s: %s", id, err.Error()).Wrap(err)
}
