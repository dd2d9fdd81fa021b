// Package adspace runs the ad-space administration calls: price changes,
// developer registration and lease purchase. Each call is submitted and
// then polled until the ledger shows its effect.
package adspace

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Result describes a finished admin call.
type Result struct {
	RunID    string         `json:"run_id"`
	Op       string         `json:"op"`
	Outcome  model.Outcome  `json:"outcome"`
	ObjectID string         `json:"object_id"`
	Digest   model.TxDigest `json:"digest,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	// Lease is set by Purchase once confirmed.
	Lease *model.LeaseRecord `json:"lease,omitempty"`
	Err   error              `json:"-"`
}

// Framing is how the result should be presented.
func (r Result) Framing() model.Framing {
	return model.Frame(r.Outcome, r.Err)
}

// Options configures an Admin.
type Options struct {
	Contract    ledger.Contract
	MaxAttempts int
	BaseDelay   time.Duration
	Sink        events.Sink
	Logger      *logging.Logger
	Now         func() time.Time
}

// Admin submits ad-space administration calls.
type Admin struct {
	reader ledger.Reader
	leases *ledger.Leases
	poller *confirm.Poller
	opts   Options
	sink   events.Sink
	log    *logging.Logger
}

// New creates an Admin reading confirmations from reader.
func New(reader ledger.Reader, poller *confirm.Poller, opts Options) *Admin {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Admin{
		reader: reader,
		leases: ledger.NewLeases(reader, opts.Contract),
		poller: poller,
		opts:   opts,
		sink:   events.Or(opts.Sink),
		log:    logging.OrDefault(opts.Logger).Named("adspace"),
	}
}

// UpdatePrice sets the price of adSpaceID. Only the ad space creator may
// do this.
func (a *Admin) UpdatePrice(ctx context.Context, adSpaceID string, price uint64, signer ledger.Signer) (Result, error) {
	res := a.start("update_price", adSpaceID)
	if adSpaceID == "" || price == 0 {
		return a.fail(res, errclass.ErrInvalidRequest.WithMessage("ad space id and a positive price are required"))
	}
	tx := a.opts.Contract.UpdateAdSpacePrice(adSpaceID, price)
	return a.run(ctx, res, signer, tx, func(f ledger.Fields) bool {
		got, ok := f.Uint("price")
		return ok && got == price
	})
}

// RegisterDeveloper adds developer to the factory's game developer list.
func (a *Admin) RegisterDeveloper(ctx context.Context, factoryID, developer string, signer ledger.Signer) (Result, error) {
	if factoryID == "" {
		factoryID = a.opts.Contract.FactoryID
	}
	res := a.start("register_developer", factoryID)
	if factoryID == "" || developer == "" {
		return a.fail(res, errclass.ErrInvalidRequest.WithMessage("factory id and developer address are required"))
	}
	tx := a.opts.Contract.RegisterGameDev(factoryID, developer)
	return a.run(ctx, res, signer, tx, func(f ledger.Fields) bool {
		devs, _ := f.Strings("game_devs")
		return slices.Contains(devs, developer)
	})
}

// Purchase buys a lease on p.AdSpaceID for the signer and waits until the
// signer owns it.
func (a *Admin) Purchase(ctx context.Context, p ledger.PurchaseParams, signer ledger.Signer) (Result, error) {
	res := a.start("purchase", p.AdSpaceID)
	if p.AdSpaceID == "" || p.Days == 0 {
		return a.fail(res, errclass.ErrInvalidRequest.WithMessage("ad space id and positive lease days are required"))
	}
	if err := a.opts.Contract.Validate(); err != nil {
		return a.fail(res, err)
	}
	brand, err := NormalizeBrandName(p.BrandName)
	if err != nil {
		return a.fail(res, err)
	}
	p.BrandName = brand
	if err := ValidateLink("content url", p.ContentURL); err != nil {
		return a.fail(res, err)
	}
	if err := ValidateLink("project url", p.ProjectURL); err != nil {
		return a.fail(res, err)
	}
	p.Price = ledger.PriceInMist(p.Price)

	digest, err := ledger.Submit(ctx, signer, a.opts.Contract.PurchaseAdSpace(p))
	if err != nil {
		return a.fail(res, err)
	}
	res.Digest = digest

	out, err := confirm.Confirm(ctx, a.poller, confirm.Target[model.LeaseRecord]{
		Operation:   res.Op,
		Predicate:   func(model.LeaseRecord) bool { return true },
		MaxAttempts: a.opts.MaxAttempts,
		BaseDelay:   a.opts.BaseDelay,
	}, func(ctx context.Context) (model.LeaseRecord, error) {
		return a.leases.FindByAdSpace(ctx, signer.Address(), p.AdSpaceID)
	})
	res.Attempts = out.Attempts
	if err == nil && out.Confirmed() {
		lease := out.Value
		res.Lease = &lease
	}
	return a.finish(res, out.Confirmed(), out.Waited, err)
}

func (a *Admin) start(op, id string) Result {
	return Result{RunID: uuid.New().String(), Op: op, ObjectID: id}
}

func (a *Admin) run(ctx context.Context, res Result, signer ledger.Signer, tx ledger.Transaction, effect func(ledger.Fields) bool) (Result, error) {
	digest, err := ledger.Submit(ctx, signer, tx)
	if err != nil {
		return a.fail(res, err)
	}
	res.Digest = digest
	a.log.Info("admin call submitted", map[string]any{"op": res.Op, "object_id": res.ObjectID, "digest": string(digest)})

	out, err := confirm.Confirm(ctx, a.poller, confirm.Target[model.ObjectSnapshot]{
		Operation:   res.Op,
		Predicate:   func(s model.ObjectSnapshot) bool { return effect(ledger.Fields(s.Fields)) },
		MaxAttempts: a.opts.MaxAttempts,
		BaseDelay:   a.opts.BaseDelay,
	}, func(ctx context.Context) (model.ObjectSnapshot, error) {
		return a.reader.GetObject(ctx, res.ObjectID)
	})
	res.Attempts = out.Attempts
	return a.finish(res, out.Confirmed(), out.Waited, err)
}

func (a *Admin) finish(res Result, confirmed bool, waited time.Duration, err error) (Result, error) {
	details := map[string]any{"op": res.Op, "attempts": res.Attempts, "waited_seconds": waited.Seconds()}
	if err == nil && confirmed {
		res.Outcome = model.OutcomeConfirmed
		a.emit(res, model.EventAdSpaceConfirmed, details)
		a.log.Info("admin call confirmed", map[string]any{"op": res.Op, "object_id": res.ObjectID})
		return res, nil
	}
	pending := errclass.ErrConfirmationTimedOut.WithMessagef("%s %s not visible after %d attempts", res.Op, res.Digest, res.Attempts)
	if err != nil {
		pending = pending.Wrap(err)
	}
	res.Outcome = model.OutcomePartial
	res.Err = pending
	a.emit(res, model.EventAdSpacePartial, details)
	a.log.Warn("admin call submitted, confirmation pending", map[string]any{"op": res.Op, "digest": string(res.Digest)})
	return res, nil
}

func (a *Admin) fail(res Result, err error) (Result, error) {
	res.Outcome = model.OutcomeFailed
	res.Err = err
	a.emit(res, model.EventAdSpaceFailed, map[string]any{"op": res.Op})
	a.log.WarnErr(fmt.Sprintf("%s failed", res.Op), err, map[string]any{"code": errclass.Code(err)})
	return res, err
}

func (a *Admin) emit(res Result, t model.EventType, details map[string]any) {
	e := model.Event{
		Type:      t,
		Timestamp: a.opts.Now(),
		RunID:     res.RunID,
		Digest:    res.Digest,
		State:     string(res.Outcome),
		Details:   details,
	}
	if res.Lease != nil {
		e.LeaseID = res.Lease.ID
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
		e.ErrorCode = errclass.Code(res.Err)
	}
	a.sink.Emit(e)
}
