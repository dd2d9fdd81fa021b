package memnet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Signer signs as a fixed address. Rejections can be scheduled to mimic a
// user declining in the wallet.
type Signer struct {
	net     *Network
	address string

	mu      sync.Mutex
	rejects map[string]int
}

var _ ledger.Signer = (*Signer)(nil)

// NewSigner returns a signer for address on n.
func (n *Network) NewSigner(address string) *Signer {
	return &Signer{net: n, address: address, rejects: map[string]int{}}
}

// Address returns the signing address.
func (s *Signer) Address() string { return s.address }

// RejectNext declines the next times signatures requested for fn. An
// empty fn matches any function.
func (s *Signer) RejectNext(fn string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[fn] = times
}

func (s *Signer) rejected(fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{fn, ""} {
		if n := s.rejects[key]; n > 0 {
			s.rejects[key] = n - 1
			return true
		}
	}
	return false
}

// SignAndSubmit executes tx on the network as the signer.
func (s *Signer) SignAndSubmit(ctx context.Context, tx ledger.Transaction) (model.TxDigest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.rejected(tx.Function) {
		return "", ledger.ErrUserRejected
	}
	d, _, err := s.net.execute(s.address, tx)
	return d, err
}

// execute applies tx atomically. The returned string is the id of an
// object created by the call, if any.
func (n *Network) execute(sender string, tx ledger.Transaction) (model.TxDigest, string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.injected(tx.Function); err != nil {
		return "", "", err
	}

	seq := n.nextSeq()
	var created string
	var err error
	if isStorageTarget(tx.Target) {
		created, err = n.execStorage(sender, tx, seq)
	} else {
		created, err = n.execContract(sender, tx, seq)
	}
	if err != nil {
		return "", "", err
	}
	n.submitted = append(n.submitted, tx)
	return n.digest(tx, seq), created, nil
}

func (n *Network) execContract(sender string, tx ledger.Transaction, seq int) (string, error) {
	if tx.Target != n.contract.Target(tx.Function) {
		return "", fmt.Errorf("unknown move call %s", tx.Target)
	}
	now := n.now()

	switch tx.Function {
	case ledger.FnRenewLease:
		id, _ := tx.StringArg(2)
		days, ok := tx.UintArg(4)
		if !ok || days == 0 {
			return "", errors.New("renew_lease: invalid lease_days")
		}
		lease, err := n.ownedObject(id, sender)
		if err != nil {
			return "", err
		}
		end, _ := ledger.Fields(lease.Fields).Uint("lease_end")
		base := uint64(now.Unix())
		if end > base {
			base = end
		}
		lease.Fields["lease_end"] = strconv.FormatUint(base+days*secondsPerDay, 10)
		lease.Fields["last_renewal_time"] = strconv.FormatInt(now.Unix(), 10)
		n.put(lease)
		return "", nil

	case ledger.FnUpdateAdContent:
		id, _ := tx.StringArg(0)
		url, _ := tx.StringArg(1)
		blob, _ := tx.StringArg(2)
		src, _ := tx.StringArg(3)
		lease, err := n.ownedObject(id, sender)
		if err != nil {
			return "", err
		}
		lease.Fields["content_url"] = url
		lease.Fields["blob_id"] = blob
		lease.Fields["storage_source"] = src
		n.put(lease)
		return "", nil

	case ledger.FnUpdateAdSpacePrice:
		id, _ := tx.StringArg(0)
		price, ok := tx.UintArg(1)
		if !ok {
			return "", errors.New("update_ad_space_price: invalid price")
		}
		space, ok := n.current(id)
		if !ok {
			return "", fmt.Errorf("object %s does not exist", id)
		}
		if creator, _ := ledger.Fields(space.Fields).String("creator"); creator != "" && creator != sender {
			return "", fmt.Errorf("sender %s is not the ad space creator: permission denied", sender)
		}
		space.Fields["price"] = strconv.FormatUint(price, 10)
		n.put(space)
		return "", nil

	case ledger.FnRegisterGameDev:
		id, _ := tx.StringArg(0)
		dev, _ := tx.StringArg(1)
		factory, ok := n.current(id)
		if !ok {
			return "", fmt.Errorf("object %s does not exist", id)
		}
		f := ledger.Fields(factory.Fields)
		if admin, _ := f.String("admin"); admin != "" && admin != sender {
			return "", fmt.Errorf("sender %s lacks admin authority", sender)
		}
		devs, _ := f.Strings("game_devs")
		list := make([]any, 0, len(devs)+1)
		for _, d := range devs {
			if d == dev {
				return "", fmt.Errorf("developer %s already registered", dev)
			}
			list = append(list, d)
		}
		factory.Fields["game_devs"] = append(list, dev)
		n.put(factory)
		return "", nil

	case ledger.FnPurchaseAdSpace:
		spaceID, _ := tx.StringArg(1)
		if _, ok := n.current(spaceID); !ok {
			return "", fmt.Errorf("object %s does not exist", spaceID)
		}
		brand, _ := tx.StringArg(3)
		url, _ := tx.StringArg(4)
		project, _ := tx.StringArg(5)
		days, _ := tx.UintArg(6)
		start, _ := tx.UintArg(8)
		blob, _ := tx.StringArg(9)
		src, _ := tx.StringArg(10)
		if days == 0 {
			return "", errors.New("purchase_ad_space: invalid lease_days")
		}
		if start == 0 {
			start = uint64(now.Unix())
		}
		id := newObjectID(fmt.Sprintf("lease:%d:%s", seq, spaceID))
		n.put(model.ObjectSnapshot{
			ID:    id,
			Type:  n.contract.LeaseType(),
			Owner: sender,
			Fields: map[string]any{
				"ad_space_id":    spaceID,
				"brand_name":     brand,
				"content_url":    url,
				"project_url":    project,
				"lease_start":    strconv.FormatUint(start, 10),
				"lease_end":      strconv.FormatUint(start+days*secondsPerDay, 10),
				"blob_id":        blob,
				"storage_source": src,
				"is_active":      true,
			},
		})
		return id, nil
	}
	return "", fmt.Errorf("unsupported function %s", tx.Function)
}

func (n *Network) ownedObject(id, sender string) (model.ObjectSnapshot, error) {
	obj, ok := n.current(id)
	if !ok {
		return model.ObjectSnapshot{}, fmt.Errorf("object %s does not exist", id)
	}
	if obj.Owner != sender {
		return model.ObjectSnapshot{}, fmt.Errorf("sender %s is not the owner of %s", sender, id)
	}
	return obj, nil
}

func (n *Network) execStorage(sender string, tx ledger.Transaction, seq int) (string, error) {
	switch tx.Function {
	case FnRegisterBlob:
		blobID, _ := tx.StringArg(0)
		epochs, _ := tx.UintArg(1)
		id := newObjectID(fmt.Sprintf("blob:%d:%s", seq, blobID))
		n.put(blobSnapshot(id, sender, blobID, n.epoch, n.epoch+epochs))
		return id, nil

	case FnExtendBlob:
		id, _ := tx.StringArg(0)
		epochs, _ := tx.UintArg(1)
		blob, err := n.ownedObject(id, sender)
		if err != nil {
			return "", err
		}
		end, _ := ledger.Fields(blob.Fields).UintAt(ledger.Path{"storage", "fields", "end_epoch"})
		if end <= n.epoch {
			return "", fmt.Errorf("blob %s expired at epoch %d", id, end)
		}
		storage := blob.Fields["storage"].(map[string]any)["fields"].(map[string]any)
		storage["end_epoch"] = strconv.FormatUint(end+epochs, 10)
		n.put(blob)
		return "", nil

	case FnDeleteBlob:
		id, _ := tx.StringArg(0)
		if _, err := n.ownedObject(id, sender); err != nil {
			return "", err
		}
		n.remove(id)
		return "", nil
	}
	return "", fmt.Errorf("unsupported storage function %s", tx.Function)
}

func blobSnapshot(id, owner, blobID string, start, end uint64) model.ObjectSnapshot {
	return model.ObjectSnapshot{
		ID:    id,
		Type:  BlobType,
		Owner: owner,
		Fields: map[string]any{
			"blob_id":   blobID,
			"deletable": true,
			"storage": map[string]any{
				"fields": map[string]any{
					"start_epoch": strconv.FormatUint(start, 10),
					"end_epoch":   strconv.FormatUint(end, 10),
				},
			},
		},
	}
}

func storageTx(fn string, args ...ledger.Arg) ledger.Transaction {
	return ledger.Transaction{Target: storageTarget(fn), Function: fn, Arguments: args}
}

// WriteBlob registers a new blob owned by the signer.
func (n *Network) WriteBlob(ctx context.Context, req walrus.WriteRequest, signer ledger.Signer) (walrus.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return walrus.WriteResult{}, err
	}
	blobID, err := BlobID(req.Data)
	if err != nil {
		return walrus.WriteResult{}, err
	}
	tx := storageTx(FnRegisterBlob,
		ledger.Arg{Kind: ledger.ArgPure, Type: "string", Value: blobID},
		ledger.Arg{Kind: ledger.ArgPure, Type: "u64", Value: req.Epochs},
	)
	digest, created, err := n.submitAs(ctx, signer, tx)
	if err != nil {
		return walrus.WriteResult{}, err
	}

	n.mu.Lock()
	end := n.epoch + req.Epochs
	n.mu.Unlock()
	return walrus.WriteResult{BlobID: blobID, ObjectID: model.ObjectID(created), EndEpoch: end, Digest: digest}, nil
}

// ExtendBlob adds epochs to a blob owned by the signer.
func (n *Network) ExtendBlob(ctx context.Context, id model.ObjectID, epochs uint64, signer ledger.Signer) (model.TxDigest, error) {
	tx := storageTx(FnExtendBlob,
		ledger.Arg{Kind: ledger.ArgObject, Value: id.String()},
		ledger.Arg{Kind: ledger.ArgPure, Type: "u64", Value: epochs},
	)
	d, _, err := n.submitAs(ctx, signer, tx)
	return d, err
}

// DeleteBlob removes a deletable blob owned by the signer.
func (n *Network) DeleteBlob(ctx context.Context, id model.ObjectID, signer ledger.Signer) (model.TxDigest, error) {
	tx := storageTx(FnDeleteBlob, ledger.Arg{Kind: ledger.ArgObject, Value: id.String()})
	d, _, err := n.submitAs(ctx, signer, tx)
	return d, err
}

// submitAs routes tx through signer so rejections surface, and returns the
// created object id when the signer belongs to this network.
func (n *Network) submitAs(ctx context.Context, signer ledger.Signer, tx ledger.Transaction) (model.TxDigest, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if s, ok := signer.(*Signer); ok && s.net == n {
		if s.rejected(tx.Function) {
			return "", "", ledger.ErrUserRejected
		}
		return n.execute(s.address, tx)
	}
	d, err := signer.SignAndSubmit(ctx, tx)
	return d, "", err
}

// LeaseSeed describes a lease placed on the ledger by Seed helpers.
type LeaseSeed struct {
	ID         string
	AdSpaceID  string
	Owner      string
	BrandName  string
	ProjectURL string
	ContentURL string
	BlobID     string
	Source     model.StorageKind
	Start      time.Time
	End        time.Time
}

// SeedLease stores a lease object in the contract layout and returns its id.
func (n *Network) SeedLease(l LeaseSeed) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if l.ID == "" {
		l.ID = newObjectID(fmt.Sprintf("lease:seed:%d", n.nextSeq()))
	}
	src := string(l.Source)
	if src == "" {
		src = string(model.StorageExternal)
	}
	n.objects[l.ID] = &entry{visible: model.ObjectSnapshot{
		ID:      l.ID,
		Type:    n.contract.LeaseType(),
		Owner:   l.Owner,
		Version: 1,
		Fields: map[string]any{
			"ad_space_id":    map[string]any{"id": l.AdSpaceID},
			"brand_name":     l.BrandName,
			"project_url":    l.ProjectURL,
			"content_url":    l.ContentURL,
			"blob_id":        l.BlobID,
			"storage_source": src,
			"lease_start":    strconv.FormatInt(l.Start.Unix(), 10),
			"lease_end":      strconv.FormatInt(l.End.Unix(), 10),
			"is_active":      true,
		},
	}}
	return l.ID
}

// SeedBlob stores a blob owned by owner that expires at endEpoch.
func (n *Network) SeedBlob(owner string, data []byte, endEpoch uint64) (model.ObjectID, string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	blobID, err := BlobID(data)
	if err != nil {
		blobID = "invalid"
	}
	id := newObjectID(fmt.Sprintf("blob:seed:%d:%s", n.nextSeq(), blobID))
	n.objects[id] = &entry{visible: blobSnapshot(id, owner, blobID, n.epoch, endEpoch)}
	n.objects[id].visible.Version = 1
	return model.ObjectID(id), blobID
}

// SeedAdSpace stores an ad space with price, created by creator.
func (n *Network) SeedAdSpace(id, creator string, price uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.objects[id] = &entry{visible: model.ObjectSnapshot{
		ID:      id,
		Type:    n.contract.PackageID + "::ad_space::AdSpace",
		Version: 1,
		Fields: map[string]any{
			"creator":      creator,
			"price":        strconv.FormatUint(price, 10),
			"is_available": true,
		},
	}}
}

// SeedFactory stores the factory administered by admin.
func (n *Network) SeedFactory(id, admin string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.objects[id] = &entry{visible: model.ObjectSnapshot{
		ID:      id,
		Type:    n.contract.PackageID + "::factory::Factory",
		Version: 1,
		Fields: map[string]any{
			"admin":     admin,
			"game_devs": []any{},
		},
	}}
}

// BlobEndEpoch returns the newest end epoch of id, ignoring visibility lag.
func (n *Network) BlobEndEpoch(id model.ObjectID) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	obj, ok := n.current(id.String())
	if !ok {
		return 0, false
	}
	return ledger.Fields(obj.Fields).UintAt(ledger.Path{"storage", "fields", "end_epoch"})
}

// Exists reports whether id is present, ignoring visibility lag.
func (n *Network) Exists(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.current(id)
	return ok
}
