// Package leasecache is a local read-side copy of confirmed leases, kept in
// badger. The ledger stays authoritative: coordinators always re-fetch
// before acting and only write here after confirmation.
package leasecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/model"
)

const prefix = "lease/"

// Entry is a cached lease with the time it was stored.
type Entry struct {
	Lease    model.LeaseRecord `json:"lease"`
	CachedAt time.Time         `json:"cached_at"`
}

// Cache stores leases by id.
type Cache struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens the cache at path. An empty path keeps the cache in memory.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open lease cache: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func key(id string) []byte {
	return []byte(prefix + id)
}

// Put stores rec, replacing any earlier copy.
func (c *Cache) Put(rec model.LeaseRecord) error {
	if rec.ID == "" {
		return errclass.ErrInvalidRequest.WithMessage("cannot cache a lease without id")
	}
	data, err := json.Marshal(Entry{Lease: rec, CachedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode lease %s: %w", rec.ID, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.ID), data)
	})
}

// Get returns the cached entry for id, or E_LEASE_NOT_FOUND.
func (c *Cache) Get(id string) (Entry, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, errclass.ErrLeaseNotFound.WithMessagef("lease %s is not cached", id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read cached lease %s: %w", id, err)
	}
	return e, nil
}

// List returns every cached entry ordered by lease end, soonest first.
func (c *Cache) List() ([]Entry, error) {
	var out []Entry
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Lease.LeaseEnd.Before(out[j].Lease.LeaseEnd)
	})
	return out, nil
}

// Delete removes id. Deleting a missing lease is not an error.
func (c *Cache) Delete(id string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
}

// Expiring returns cached leases ending within d of now.
func (c *Cache) Expiring(now time.Time, d time.Duration) ([]Entry, error) {
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Lease.LeaseEnd.Before(now.Add(d)) {
			out = append(out, e)
		}
	}
	return out, nil
}
