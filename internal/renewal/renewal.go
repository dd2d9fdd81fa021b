// Package renewal renews a lease while keeping its stored content alive
// for the whole renewed period.
//
// A run moves through
//
//	Idle → FetchingLatestLease → ExtendingStorage → SubmittingRenewal → Polling
//
// and ends in Confirmed, PartiallyConfirmed or Failed. ExtendingStorage is
// entered only for content held on the storage network; if it fails the
// renewal transaction is never submitted.
package renewal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/lifecycle"
	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// State is a step of a renewal run.
type State string

const (
	StateIdle                State = "Idle"
	StateFetchingLatestLease State = "FetchingLatestLease"
	StateExtendingStorage    State = "ExtendingStorage"
	StateSubmittingRenewal   State = "SubmittingRenewal"
	StatePolling             State = "Polling"
	StateConfirmed           State = State(model.OutcomeConfirmed)
	StatePartiallyConfirmed  State = State(model.OutcomePartial)
	StateFailed              State = State(model.OutcomeFailed)
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StatePartiallyConfirmed || s == StateFailed
}

const day = 24 * time.Hour

// Request asks to extend a lease by Days whole days. Price is the renewal
// payment, in MIST or whole coins.
type Request struct {
	LeaseID string
	Days    uint64
	Price   uint64
}

// Result describes a finished run.
type Result struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`
	// Lease is the confirmed lease when State is Confirmed, otherwise the
	// lease as fetched before submission.
	Lease         model.LeaseRecord    `json:"lease"`
	NewLeaseEnd   time.Time            `json:"new_lease_end,omitempty"`
	Plan          *model.ExtensionPlan `json:"plan,omitempty"`
	StorageDigest model.TxDigest       `json:"storage_digest,omitempty"`
	RenewalDigest model.TxDigest       `json:"renewal_digest,omitempty"`
	Attempts      int                  `json:"attempts,omitempty"`
	Err           error                `json:"-"`
	Transitions   []State              `json:"transitions"`
}

// Outcome maps the terminal state to the shared outcome.
func (r Result) Outcome() model.Outcome {
	switch r.State {
	case StateConfirmed:
		return model.OutcomeConfirmed
	case StatePartiallyConfirmed:
		return model.OutcomePartial
	default:
		return model.OutcomeFailed
	}
}

// Framing is how the result should be presented.
func (r Result) Framing() model.Framing {
	return model.Frame(r.Outcome(), r.Err)
}

// Message is a one-line user-facing summary.
func (r Result) Message() string {
	switch r.State {
	case StateConfirmed:
		return "lease renewed until " + r.Lease.LeaseEnd.UTC().Format(time.RFC3339)
	case StatePartiallyConfirmed:
		return "renewal submitted, confirmation pending"
	}
	if errclass.Informational(r.Err) {
		return "renewal cancelled"
	}
	if r.Err != nil {
		return "renewal failed: " + r.Err.Error()
	}
	return "renewal failed"
}

// LeaseStore receives confirmed leases. It is a read-side copy only.
type LeaseStore interface {
	Put(rec model.LeaseRecord) error
}

// Options configures a Coordinator.
type Options struct {
	Contract    ledger.Contract
	Policy      model.EpochPolicy
	MaxAttempts int
	BaseDelay   time.Duration
	Cache       LeaseStore
	Sink        events.Sink
	Logger      *logging.Logger
	Now         func() time.Time
}

// Coordinator runs renewals. It keeps no per-lease state; callers must not
// run two renewals of the same lease concurrently.
type Coordinator struct {
	leases  *ledger.Leases
	storage *lifecycle.Manager
	poller  *confirm.Poller
	opts    Options
	sink    events.Sink
	log     *logging.Logger
}

// New creates a coordinator.
func New(leases *ledger.Leases, storage *lifecycle.Manager, poller *confirm.Poller, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		leases:  leases,
		storage: storage,
		poller:  poller,
		opts:    opts,
		sink:    events.Or(opts.Sink),
		log:     logging.OrDefault(opts.Logger).Named("renewal"),
	}
}

type run struct {
	c       *Coordinator
	res     Result
	log     *logging.Logger
	leaseID string
}

func (r *run) to(s State) {
	r.res.State = s
	r.res.Transitions = append(r.res.Transitions, s)
	r.c.sink.Emit(model.Event{
		Type:      model.EventRenewalState,
		Timestamp: r.c.opts.Now(),
		RunID:     r.res.RunID,
		LeaseID:   r.leaseID,
		State:     string(s),
	})
	r.log.Debug("renewal state", map[string]any{"state": string(s)})
}

func (r *run) fail(err error) (Result, error) {
	r.res.Err = err
	r.to(StateFailed)
	r.c.sink.Emit(model.Event{
		Type:      model.EventRenewalFailed,
		Timestamp: r.c.opts.Now(),
		RunID:     r.res.RunID,
		LeaseID:   r.leaseID,
		Digest:    r.res.RenewalDigest,
		State:     string(StateFailed),
		Error:     err.Error(),
		ErrorCode: errclass.Code(err),
	})
	if errclass.Informational(err) {
		r.log.Info("renewal cancelled by user", map[string]any{"code": errclass.Code(err)})
	} else {
		r.log.ErrorErr("renewal failed", err, map[string]any{"code": errclass.Code(err)})
	}
	return r.res, err
}

// Renew runs one renewal to a terminal state. The returned error is
// non-nil exactly when the run Failed; PartiallyConfirmed is not an error.
func (c *Coordinator) Renew(ctx context.Context, req Request, signer ledger.Signer) (Result, error) {
	r := &run{
		c:       c,
		res:     Result{RunID: uuid.New().String()},
		leaseID: req.LeaseID,
	}
	r.log = c.log.WithFields(map[string]any{"run_id": r.res.RunID, "lease_id": req.LeaseID})
	r.to(StateIdle)

	if req.LeaseID == "" {
		return r.fail(errclass.ErrInvalidRequest.WithMessage("lease id is required"))
	}
	if req.Days == 0 {
		return r.fail(errclass.ErrInvalidRequest.WithMessage("renewal days must be positive"))
	}
	if err := c.opts.Contract.Validate(); err != nil {
		return r.fail(err)
	}

	r.to(StateFetchingLatestLease)
	lease, err := c.leases.Get(ctx, req.LeaseID)
	if err != nil {
		return r.fail(err)
	}
	r.res.Lease = lease

	now := c.opts.Now()
	if lease.Expired(now) {
		return r.fail(errclass.ErrLeaseExpired.WithMessagef("lease %s ended at %s", lease.ID, lease.LeaseEnd.UTC().Format(time.RFC3339)))
	}

	extension := time.Duration(req.Days) * day
	base := lease.LeaseEnd
	if now.After(base) {
		base = now
	}
	r.res.NewLeaseEnd = base.Add(extension)

	if lease.Content.Decentralized() {
		r.to(StateExtendingStorage)
		id, err := objectid.OfContent(lease.Content)
		if err != nil {
			return r.fail(err)
		}
		cov, err := c.storage.EnsureCoverage(ctx, id, c.opts.Policy, now, r.res.NewLeaseEnd, extension, signer)
		if cov.Plan.ObjectID != "" {
			plan := cov.Plan
			r.res.Plan = &plan
		}
		if err != nil {
			return r.fail(err)
		}
		r.res.StorageDigest = cov.Digest
	}

	r.to(StateSubmittingRenewal)
	tx := c.opts.Contract.RenewLease(ledger.RenewLeaseParams{
		AdSpaceID: lease.AdSpaceID,
		LeaseID:   lease.ID,
		Price:     req.Price,
		Days:      req.Days,
	})
	digest, err := ledger.Submit(ctx, signer, tx)
	if err != nil {
		return r.fail(err)
	}
	r.res.RenewalDigest = digest
	r.log.Info("renewal submitted", map[string]any{"digest": string(digest), "days": req.Days})

	r.to(StatePolling)
	previous := lease.LeaseEnd
	out, err := confirm.Confirm(ctx, c.poller, confirm.Target[model.LeaseRecord]{
		Operation:   "renewal",
		Predicate:   func(l model.LeaseRecord) bool { return l.LeaseEnd.After(previous) },
		MaxAttempts: c.opts.MaxAttempts,
		BaseDelay:   c.opts.BaseDelay,
	}, func(ctx context.Context) (model.LeaseRecord, error) {
		return c.leases.Get(ctx, lease.ID)
	})
	r.res.Attempts = out.Attempts

	if err == nil && out.Confirmed() {
		r.res.Lease = out.Value
		if c.opts.Cache != nil {
			if err := c.opts.Cache.Put(out.Value); err != nil {
				r.log.WarnErr("cache lease", err)
			}
		}
		r.to(StateConfirmed)
		c.sink.Emit(model.Event{
			Type:      model.EventRenewalConfirmed,
			Timestamp: c.opts.Now(),
			RunID:     r.res.RunID,
			LeaseID:   lease.ID,
			Digest:    digest,
			State:     string(StateConfirmed),
			Details: map[string]any{
				"lease_end":      out.Value.LeaseEnd.Unix(),
				"attempts":       out.Attempts,
				"waited_seconds": out.Waited.Seconds(),
			},
		})
		r.log.Info("renewal confirmed", map[string]any{"lease_end": out.Value.LeaseEnd.UTC().Format(time.RFC3339)})
		return r.res, nil
	}

	// Submitted but not observed: either the bound ran out or ctx ended.
	pending := errclass.ErrConfirmationTimedOut.WithMessagef("renewal %s not visible after %d attempts", digest, out.Attempts)
	if err != nil {
		pending = pending.Wrap(err)
	}
	r.res.Err = pending
	r.to(StatePartiallyConfirmed)
	c.sink.Emit(model.Event{
		Type:      model.EventRenewalPartial,
		Timestamp: c.opts.Now(),
		RunID:     r.res.RunID,
		LeaseID:   lease.ID,
		Digest:    digest,
		State:     string(StatePartiallyConfirmed),
		ErrorCode: pending.Code,
		Details: map[string]any{
			"attempts":       out.Attempts,
			"waited_seconds": out.Waited.Seconds(),
		},
	})
	r.log.Warn("renewal submitted, confirmation pending", map[string]any{"digest": string(digest), "attempts": out.Attempts})
	return r.res, nil
}
