package ledger

import (
	"fmt"

	"github.com/adslot/leasekeeper/pkg/errclass"
)

// Contract function names.
const (
	FnPurchaseAdSpace    = "purchase_ad_space"
	FnUpdateAdContent    = "update_ad_content"
	FnRenewLease         = "renew_lease"
	FnUpdateAdSpacePrice = "update_ad_space_price"
	FnRegisterGameDev    = "register_game_dev"
)

// ArgKind distinguishes object references from pure values.
type ArgKind string

const (
	ArgObject  ArgKind = "object"
	ArgPure    ArgKind = "pure"
	ArgPayment ArgKind = "payment" // coin split from gas for Value MIST
)

// Arg is one positional move-call argument.
type Arg struct {
	Kind  ArgKind `json:"kind"`
	Type  string  `json:"type,omitempty"` // u64, string, address for pure args
	Value any     `json:"value"`
}

func object(id string) Arg          { return Arg{Kind: ArgObject, Value: id} }
func pureU64(v uint64) Arg          { return Arg{Kind: ArgPure, Type: "u64", Value: v} }
func pureString(v string) Arg       { return Arg{Kind: ArgPure, Type: "string", Value: v} }
func pureAddress(v string) Arg      { return Arg{Kind: ArgPure, Type: "address", Value: v} }
func payment(amountMist uint64) Arg { return Arg{Kind: ArgPayment, Type: "u64", Value: amountMist} }

// Transaction is a single move call ready for signing.
type Transaction struct {
	Target    string `json:"target"`
	Function  string `json:"function"`
	Arguments []Arg  `json:"arguments"`
}

// Contract addresses the billboard contract deployment.
type Contract struct {
	PackageID string
	Module    string
	FactoryID string
	ClockID   string
}

// Validate reports a deployment that cannot address a call.
func (c Contract) Validate() error {
	if c.PackageID == "" || c.Module == "" {
		return errclass.ErrConfigInvalid.WithMessage("contract package_id and module are required")
	}
	if c.ClockID == "" {
		return errclass.ErrConfigInvalid.WithMessage("contract clock_id is required")
	}
	return nil
}

// Target is the fully qualified move-call target of fn.
func (c Contract) Target(fn string) string {
	return fmt.Sprintf("%s::%s::%s", c.PackageID, c.Module, fn)
}

// LeaseType is the on-ledger type of lease objects.
func (c Contract) LeaseType() string {
	return c.PackageID + "::nft::AdBoardNFT"
}

func (c Contract) call(fn string, args ...Arg) Transaction {
	return Transaction{Target: c.Target(fn), Function: fn, Arguments: args}
}

// MistPerSui converts whole-coin prices to the ledger's base unit.
const MistPerSui = 1_000_000_000

// PriceInMist accepts either a base-unit amount or a whole-coin amount.
// Amounts below one million are taken as whole coins.
func PriceInMist(amount uint64) uint64 {
	if amount < 1_000_000 {
		return amount * MistPerSui
	}
	return amount
}

// RenewLeaseParams describes a lease renewal.
type RenewLeaseParams struct {
	AdSpaceID string
	LeaseID   string
	Price     uint64
	Days      uint64
}

// RenewLease builds renew_lease(factory, ad_space, nft, payment, lease_days, clock).
func (c Contract) RenewLease(p RenewLeaseParams) Transaction {
	return c.call(FnRenewLease,
		object(c.FactoryID),
		object(p.AdSpaceID),
		object(p.LeaseID),
		payment(PriceInMist(p.Price)),
		pureU64(p.Days),
		object(c.ClockID),
	)
}

// UpdateContentParams describes a content change of a lease.
type UpdateContentParams struct {
	LeaseID       string
	ContentURL    string
	BlobID        string
	StorageSource string
}

// UpdateAdContent builds update_ad_content(nft, content_url, blob_id, storage_source, clock).
func (c Contract) UpdateAdContent(p UpdateContentParams) Transaction {
	return c.call(FnUpdateAdContent,
		object(p.LeaseID),
		pureString(p.ContentURL),
		pureString(p.BlobID),
		pureString(storageSource(p.StorageSource)),
		object(c.ClockID),
	)
}

// UpdateAdSpacePrice builds update_ad_space_price(ad_space, price).
func (c Contract) UpdateAdSpacePrice(adSpaceID string, price uint64) Transaction {
	return c.call(FnUpdateAdSpacePrice, object(adSpaceID), pureU64(price))
}

// RegisterGameDev builds register_game_dev(factory, developer).
func (c Contract) RegisterGameDev(factoryID, developer string) Transaction {
	return c.call(FnRegisterGameDev, object(factoryID), pureAddress(developer))
}

// PurchaseParams describes a new lease purchase.
type PurchaseParams struct {
	AdSpaceID     string
	Price         uint64
	BrandName     string
	ContentURL    string
	ProjectURL    string
	Days          uint64
	StartTime     uint64
	BlobID        string
	StorageSource string
}

// PurchaseAdSpace builds purchase_ad_space(factory, ad_space, payment, brand_name,
// content_url, project_url, lease_days, clock, start_time, blob_id, storage_source).
func (c Contract) PurchaseAdSpace(p PurchaseParams) Transaction {
	return c.call(FnPurchaseAdSpace,
		object(c.FactoryID),
		object(p.AdSpaceID),
		payment(p.Price),
		pureString(p.BrandName),
		pureString(p.ContentURL),
		pureString(p.ProjectURL),
		pureU64(p.Days),
		object(c.ClockID),
		pureU64(p.StartTime),
		pureString(p.BlobID),
		pureString(storageSource(p.StorageSource)),
	)
}

func storageSource(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// StringArg returns the i-th argument as a string, for executors.
func (tx Transaction) StringArg(i int) (string, bool) {
	if i < 0 || i >= len(tx.Arguments) {
		return "", false
	}
	s, ok := tx.Arguments[i].Value.(string)
	return s, ok
}

// UintArg returns the i-th argument as a uint64, for executors.
func (tx Transaction) UintArg(i int) (uint64, bool) {
	if i < 0 || i >= len(tx.Arguments) {
		return 0, false
	}
	n, ok := tx.Arguments[i].Value.(uint64)
	return n, ok
}
