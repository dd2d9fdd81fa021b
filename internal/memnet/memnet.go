// Package memnet is a deterministic in-memory ledger and storage network.
// It implements ledger.Reader, ledger.Signer (through Signer) and
// walrus.Network, and is used by tests and the simulate command.
package memnet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Blob object layout.
const (
	BlobType       = "0x2::walrus::Blob"
	FnRegisterBlob = "register_blob"
	FnExtendBlob   = "extend_blob"
	FnDeleteBlob   = "delete_blob"
	storageModule  = "0x2::walrus"
	secondsPerDay  = 86400
)

// Read operation names accepted by FailNext next to contract functions.
const (
	OpGetObject   = "get_object"
	OpListOwned   = "get_owned_objects"
	OpGlobalEpoch = "global_epoch"
)

type entry struct {
	visible model.ObjectSnapshot
	pending *model.ObjectSnapshot
	wait    int
	deleted bool
}

type failure struct {
	err   error
	times int
}

// Network holds every object of the simulated world.
type Network struct {
	mu        sync.Mutex
	contract  ledger.Contract
	now       func() time.Time
	epoch     uint64
	lag       int
	pageSize  int
	seq       int
	objects   map[string]*entry
	failures  map[string]*failure
	submitted []ledger.Transaction
	reads     map[string]int
}

var (
	_ ledger.Reader  = (*Network)(nil)
	_ walrus.Network = (*Network)(nil)
)

// New creates an empty network for contract at epoch 1.
func New(contract ledger.Contract) *Network {
	return &Network{
		contract: contract,
		now:      time.Now,
		epoch:    1,
		pageSize: ledger.PageSize,
		objects:  map[string]*entry{},
		failures: map[string]*failure{},
		reads:    map[string]int{},
	}
}

// SetClock replaces the wall clock used for lease arithmetic.
func (n *Network) SetClock(now func() time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

// SetLag makes every subsequent write invisible for the next reads reads
// of the written object.
func (n *Network) SetLag(reads int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lag = reads
}

// SetPageSize changes the owned-objects page size.
func (n *Network) SetPageSize(size int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if size > 0 {
		n.pageSize = size
	}
}

// SetEpoch sets the current storage epoch.
func (n *Network) SetEpoch(e uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.epoch = e
}

// AdvanceEpoch moves the storage epoch forward by k.
func (n *Network) AdvanceEpoch(k uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.epoch += k
}

// FailNext makes the next times calls of op fail with err. op is a
// contract function name, a storage function name, or one of the Op
// constants. A negative times fails forever.
func (n *Network) FailNext(op string, err error, times int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[op] = &failure{err: err, times: times}
}

// Submitted returns every transaction executed so far.
func (n *Network) Submitted() []ledger.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ledger.Transaction(nil), n.submitted...)
}

// Reads returns how many times id was read with GetObject.
func (n *Network) Reads(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reads[id]
}

func (n *Network) injected(op string) error {
	f, ok := n.failures[op]
	if !ok || f.times == 0 {
		return nil
	}
	if f.times > 0 {
		f.times--
	}
	return f.err
}

// GetObject returns the visible version of id.
func (n *Network) GetObject(ctx context.Context, id string) (model.ObjectSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.ObjectSnapshot{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.reads[id]++
	if err := n.injected(OpGetObject); err != nil {
		return model.ObjectSnapshot{}, err
	}
	e, ok := n.objects[id]
	if !ok {
		return model.ObjectSnapshot{}, fmt.Errorf("object %s does not exist", id)
	}
	if e.pending != nil {
		if e.wait <= 0 {
			e.visible = *e.pending
			e.pending = nil
		} else {
			e.wait--
		}
	}
	if e.deleted && e.pending == nil {
		return model.ObjectSnapshot{}, fmt.Errorf("object %s was deleted", id)
	}
	return cloneSnapshot(e.visible), nil
}

// GetOwnedObjects lists visible objects of owner with type typeFilter,
// ordered by id.
func (n *Network) GetOwnedObjects(ctx context.Context, owner, typeFilter, cursor string) (model.Page, error) {
	if err := ctx.Err(); err != nil {
		return model.Page{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.injected(OpListOwned); err != nil {
		return model.Page{}, err
	}

	var matched []model.ObjectSnapshot
	for _, e := range n.objects {
		if e.deleted && e.pending == nil {
			continue
		}
		s := e.visible
		if s.Owner == owner && (typeFilter == "" || s.Type == typeFilter) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := 0
	if cursor != "" {
		v, err := strconv.Atoi(cursor)
		if err != nil || v < 0 || v > len(matched) {
			return model.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = v
	}
	end := start + n.pageSize
	if end > len(matched) {
		end = len(matched)
	}

	page := model.Page{HasNextPage: end < len(matched)}
	for _, s := range matched[start:end] {
		page.Objects = append(page.Objects, cloneSnapshot(s))
	}
	if page.HasNextPage {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// GlobalEpoch returns the current storage epoch.
func (n *Network) GlobalEpoch(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.injected(OpGlobalEpoch); err != nil {
		return 0, err
	}
	return n.epoch, nil
}

// put stores s, hidden behind the configured lag when the object exists.
func (n *Network) put(s model.ObjectSnapshot) {
	e, ok := n.objects[s.ID]
	if !ok || n.lag == 0 {
		if ok {
			s.Version = e.latest().Version + 1
		} else if s.Version == 0 {
			s.Version = 1
		}
		n.objects[s.ID] = &entry{visible: s}
		return
	}
	s.Version = e.latest().Version + 1
	e.pending = &s
	e.wait = n.lag
}

func (n *Network) remove(id string) {
	e, ok := n.objects[id]
	if !ok {
		return
	}
	if n.lag == 0 {
		delete(n.objects, id)
		return
	}
	e.deleted = true
	last := e.latest()
	e.pending = &last
	e.wait = n.lag
}

// latest is the newest version of the object, visible or not.
func (e *entry) latest() model.ObjectSnapshot {
	if e.pending != nil {
		return *e.pending
	}
	return e.visible
}

func (n *Network) current(id string) (model.ObjectSnapshot, bool) {
	e, ok := n.objects[id]
	if !ok || e.deleted {
		return model.ObjectSnapshot{}, false
	}
	return cloneSnapshot(e.latest()), true
}

func (n *Network) nextSeq() int {
	n.seq++
	return n.seq
}

func (n *Network) digest(tx ledger.Transaction, seq int) model.TxDigest {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", seq, tx.Target)))
	return model.TxDigest(hex.EncodeToString(sum[:16]))
}

func newObjectID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return "0x" + hex.EncodeToString(sum[:])
}

// BlobID derives the content id of data: a CIDv1 over its sha2-256 multihash.
func BlobID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash blob: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

func cloneSnapshot(s model.ObjectSnapshot) model.ObjectSnapshot {
	s.Fields = cloneMap(s.Fields)
	return s
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func storageTarget(fn string) string {
	return storageModule + "::" + fn
}

func isStorageTarget(target string) bool {
	return strings.HasPrefix(target, storageModule+"::")
}
