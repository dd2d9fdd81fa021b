package model

import "time"

// ContentRef points a lease at its displayed content.
type ContentRef struct {
	URL  string      `json:"url"`
	Kind StorageKind `json:"storage_kind"`
	// ObjectID is set only when Kind is StorageDecentralized.
	ObjectID *ObjectID `json:"object_id,omitempty"`
	BlobID   string    `json:"blob_id,omitempty"`
}

// Decentralized reports whether the content is held on the storage network.
func (c ContentRef) Decentralized() bool {
	return c.Kind == StorageDecentralized
}

// LeaseRecord is the ledger-owned lease of an ad slot. A local copy is a
// read-only snapshot and may be stale.
type LeaseRecord struct {
	ID          string     `json:"id"`
	AdSpaceID   string     `json:"ad_space_id"`
	Owner       string     `json:"owner"`
	BrandName   string     `json:"brand_name,omitempty"`
	ProjectURL  string     `json:"project_url,omitempty"`
	LeaseStart  time.Time  `json:"lease_start"`
	LeaseEnd    time.Time  `json:"lease_end"`
	Content     ContentRef `json:"content"`
	IsActive    bool       `json:"is_active"`
	LastRenewal *time.Time `json:"last_renewal,omitempty"`
	Version     uint64     `json:"version,omitempty"`
}

// Expired returns true once the lease end is not after now.
func (l *LeaseRecord) Expired(now time.Time) bool {
	return !l.LeaseEnd.After(now)
}

// Remaining returns the time left on the lease, zero when expired.
func (l *LeaseRecord) Remaining(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.LeaseEnd.Sub(now)
}
