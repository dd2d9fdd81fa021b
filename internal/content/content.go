// Package content changes what a lease displays and retires the blob the
// lease no longer references.
package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/lifecycle"
	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

// Request asks to point a lease at new content.
type Request struct {
	LeaseID string
	NewURL  string
	NewKind model.StorageKind
	// NewBlobID is recorded on the lease for decentralized content.
	NewBlobID string
}

// Result describes a finished update.
type Result struct {
	RunID   string            `json:"run_id"`
	Outcome model.Outcome     `json:"outcome"`
	Lease   model.LeaseRecord `json:"lease"`
	Digest  model.TxDigest    `json:"digest,omitempty"`
	// Upload is set when the content was stored by Publish.
	Upload   *walrus.Upload `json:"upload,omitempty"`
	Attempts int            `json:"attempts,omitempty"`
	// Retired is the blob deleted after confirmation, if any.
	Retired      model.ObjectID `json:"retired,omitempty"`
	RetireDigest model.TxDigest `json:"retire_digest,omitempty"`
	// RetireErr does not fail the update.
	RetireErr error `json:"-"`
	Err       error `json:"-"`
}

// Framing is how the result should be presented.
func (r Result) Framing() model.Framing {
	return model.Frame(r.Outcome, r.Err)
}

// LeaseStore receives confirmed leases.
type LeaseStore interface {
	Put(rec model.LeaseRecord) error
}

// Options configures a Coordinator.
type Options struct {
	Contract    ledger.Contract
	MaxAttempts int
	BaseDelay   time.Duration
	Cache       LeaseStore
	Sink        events.Sink
	Logger      *logging.Logger
	Now         func() time.Time
}

// Coordinator runs content updates.
type Coordinator struct {
	leases   *ledger.Leases
	storage  *lifecycle.Manager
	uploader *walrus.Uploader
	poller   *confirm.Poller
	opts     Options
	sink     events.Sink
	log      *logging.Logger
}

// New creates a coordinator. uploader may be nil when Publish is not used.
func New(leases *ledger.Leases, storage *lifecycle.Manager, uploader *walrus.Uploader, poller *confirm.Poller, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		leases:   leases,
		storage:  storage,
		uploader: uploader,
		poller:   poller,
		opts:     opts,
		sink:     events.Or(opts.Sink),
		log:      logging.OrDefault(opts.Logger).Named("content"),
	}
}

// Publish stores data for the rest of the lease and then points the lease
// at it.
func (c *Coordinator) Publish(ctx context.Context, leaseID string, data []byte, signer ledger.Signer) (Result, error) {
	if c.uploader == nil {
		return c.failed(Result{RunID: uuid.New().String()}, leaseID, errclass.ErrInvalidRequest.WithMessage("no uploader configured"))
	}
	lease, err := c.leases.Get(ctx, leaseID)
	if err != nil {
		return c.failed(Result{RunID: uuid.New().String()}, leaseID, err)
	}
	remaining := lease.Remaining(c.opts.Now())
	if remaining <= 0 {
		return c.failed(Result{RunID: uuid.New().String(), Lease: lease}, leaseID, errclass.ErrLeaseExpired.WithMessagef("lease %s has ended", leaseID))
	}

	up, err := c.uploader.Upload(ctx, data, remaining, signer, map[string]string{"lease": leaseID})
	if err != nil {
		return c.failed(Result{RunID: uuid.New().String(), Lease: lease}, leaseID, err)
	}
	res, err := c.Update(ctx, Request{
		LeaseID:   leaseID,
		NewURL:    up.URL,
		NewKind:   model.StorageDecentralized,
		NewBlobID: up.BlobID,
	}, signer)
	res.Upload = &up
	return res, err
}

// Update submits the content change and waits for it to be visible. Once
// confirmed, a decentralized blob the lease stopped referencing is
// deleted; a failed delete is reported in Result.RetireErr only. The
// returned error is non-nil exactly when the outcome is Failed.
func (c *Coordinator) Update(ctx context.Context, req Request, signer ledger.Signer) (Result, error) {
	res := Result{RunID: uuid.New().String()}
	log := c.log.WithFields(map[string]any{"run_id": res.RunID, "lease_id": req.LeaseID})

	if req.LeaseID == "" || req.NewURL == "" {
		return c.failed(res, req.LeaseID, errclass.ErrInvalidRequest.WithMessage("lease id and content url are required"))
	}
	if req.NewKind == "" {
		req.NewKind = model.StorageExternal
	}
	var newID model.ObjectID
	if req.NewKind == model.StorageDecentralized {
		id, err := objectid.MustResolve(req.NewURL)
		if err != nil {
			return c.failed(res, req.LeaseID, err)
		}
		newID = id
	}

	lease, err := c.leases.Get(ctx, req.LeaseID)
	if err != nil {
		return c.failed(res, req.LeaseID, err)
	}
	res.Lease = lease

	tx := c.opts.Contract.UpdateAdContent(ledger.UpdateContentParams{
		LeaseID:       lease.ID,
		ContentURL:    req.NewURL,
		BlobID:        req.NewBlobID,
		StorageSource: string(req.NewKind),
	})
	digest, err := ledger.Submit(ctx, signer, tx)
	if err != nil {
		return c.failed(res, req.LeaseID, err)
	}
	res.Digest = digest
	log.Info("content update submitted", map[string]any{"digest": string(digest), "url": req.NewURL})

	out, err := confirm.Confirm(ctx, c.poller, confirm.Target[model.LeaseRecord]{
		Operation:   "content",
		Predicate:   func(l model.LeaseRecord) bool { return l.Content.URL == req.NewURL },
		MaxAttempts: c.opts.MaxAttempts,
		BaseDelay:   c.opts.BaseDelay,
	}, func(ctx context.Context) (model.LeaseRecord, error) {
		return c.leases.Get(ctx, lease.ID)
	})
	res.Attempts = out.Attempts

	if err != nil || !out.Confirmed() {
		pending := errclass.ErrConfirmationTimedOut.WithMessagef("content update %s not visible after %d attempts", digest, out.Attempts)
		if err != nil {
			pending = pending.Wrap(err)
		}
		res.Outcome = model.OutcomePartial
		res.Err = pending
		c.emit(res, req.LeaseID, model.EventContentPartial, out.Waited)
		log.Warn("content update submitted, confirmation pending", map[string]any{"digest": string(digest)})
		return res, nil
	}

	res.Outcome = model.OutcomeConfirmed
	res.Lease = out.Value
	if c.opts.Cache != nil {
		if err := c.opts.Cache.Put(out.Value); err != nil {
			log.WarnErr("cache lease", err)
		}
	}

	if old, ok := retired(lease.Content, req.NewKind, newID); ok {
		res.Retired = old
		d, err := c.storage.Delete(ctx, old, signer)
		if err != nil {
			res.RetireErr = err
			log.WarnErr("old blob not deleted", err, map[string]any{"object_id": old.String()})
		} else {
			res.RetireDigest = d
		}
	}

	c.emit(res, req.LeaseID, model.EventContentConfirmed, out.Waited)
	log.Info("content update confirmed")
	return res, nil
}

// retired returns the blob previous content leaves unreferenced.
func retired(prev model.ContentRef, kind model.StorageKind, next model.ObjectID) (model.ObjectID, bool) {
	if !prev.Decentralized() || prev.ObjectID == nil {
		return "", false
	}
	if kind == model.StorageDecentralized && *prev.ObjectID == next {
		return "", false
	}
	return *prev.ObjectID, true
}

func (c *Coordinator) failed(res Result, leaseID string, err error) (Result, error) {
	res.Outcome = model.OutcomeFailed
	res.Err = err
	c.emit(res, leaseID, model.EventContentFailed, 0)
	if errclass.Informational(err) {
		c.log.Info("content update cancelled by user", map[string]any{"lease_id": leaseID})
	} else {
		c.log.ErrorErr("content update failed", err, map[string]any{"lease_id": leaseID})
	}
	return res, err
}

func (c *Coordinator) emit(res Result, leaseID string, t model.EventType, waited time.Duration) {
	e := model.Event{
		Type:      t,
		Timestamp: c.opts.Now(),
		RunID:     res.RunID,
		LeaseID:   leaseID,
		ObjectID:  res.Retired,
		Digest:    res.Digest,
		State:     string(res.Outcome),
		Details:   map[string]any{"attempts": res.Attempts},
	}
	if waited > 0 {
		e.Details["waited_seconds"] = waited.Seconds()
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
		e.ErrorCode = errclass.Code(res.Err)
	}
	if res.RetireErr != nil {
		e.Details["retire_error"] = res.RetireErr.Error()
	}
	c.sink.Emit(e)
}
