package leasekeeper

import (
	"context"
	"errors"
	"time"

	"github.com/adslot/leasekeeper/internal/adspace"
	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/content"
	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/internal/inspect"
	"github.com/adslot/leasekeeper/internal/journal"
	"github.com/adslot/leasekeeper/internal/leasecache"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/lifecycle"
	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/internal/renewal"
	"github.com/adslot/leasekeeper/internal/walrus"
	"github.com/adslot/leasekeeper/pkg/config"
	"github.com/adslot/leasekeeper/pkg/errclass"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/metrics"
	"github.com/adslot/leasekeeper/pkg/model"
	"github.com/adslot/leasekeeper/pkg/progress"
	"github.com/adslot/leasekeeper/pkg/webhook"
)

// Types of the coordinators, re-exported for callers outside the module.
type (
	Signer         = ledger.Signer
	LedgerReader   = ledger.Reader
	StorageNetwork = walrus.Network
	RenewRequest   = renewal.Request
	RenewResult    = renewal.Result
	ContentRequest = content.Request
	ContentResult  = content.Result
	AdminResult    = adspace.Result
	PurchaseParams = ledger.PurchaseParams
)

// Backends are the two external systems. Both are required.
type Backends struct {
	Ledger  LedgerReader
	Storage StorageNetwork
}

// Option customises a Client.
type Option func(*settings)

type settings struct {
	logger   *logging.Logger
	sleeper  confirm.Sleeper
	progress progress.Callback
	sinks    []events.Sink
	now      func() time.Time
	metrics  *metrics.Registry
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option { return func(s *settings) { s.logger = l } }

// WithSleeper replaces the poller's sleeper.
func WithSleeper(sl confirm.Sleeper) Option { return func(s *settings) { s.sleeper = sl } }

// WithProgress reports each confirmation attempt to cb.
func WithProgress(cb progress.Callback) Option { return func(s *settings) { s.progress = cb } }

// WithSink adds an event sink next to the configured ones.
func WithSink(sink events.Sink) Option {
	return func(s *settings) { s.sinks = append(s.sinks, sink) }
}

// WithClock sets the wall clock.
func WithClock(now func() time.Time) Option { return func(s *settings) { s.now = now } }

// WithMetrics records events into r.
func WithMetrics(r *metrics.Registry) Option { return func(s *settings) { s.metrics = r } }

// Client wires the coordinators for one configured network.
type Client struct {
	cfg      *config.Config
	contract ledger.Contract
	policy   model.EpochPolicy
	log      *logging.Logger
	sink     events.Sink

	leases   *ledger.Leases
	inspect  *inspect.Inspector
	storage  *lifecycle.Manager
	uploader *walrus.Uploader
	renew    *renewal.Coordinator
	content  *content.Coordinator
	admin    *adspace.Admin

	cache   *leasecache.Cache
	journal *journal.Journal
	hooks   *webhook.Client
	metrics *metrics.Registry
}

// New builds a client from cfg. cfg is validated; the cache and journal
// are opened when their paths are set and webhooks start when enabled.
func New(cfg *config.Config, b Backends, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.Ledger == nil || b.Storage == nil {
		return nil, errors.New("leasekeeper: ledger and storage backends are required")
	}

	s := settings{sleeper: confirm.RealSleeper{}, now: time.Now}
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}

	c := &Client{
		cfg: cfg,
		contract: ledger.Contract{
			PackageID: cfg.Contract.PackageID,
			Module:    cfg.Contract.Module,
			FactoryID: cfg.Contract.FactoryID,
			ClockID:   cfg.Contract.ClockID,
		},
		policy:  cfg.EpochPolicy(),
		log:     s.logger,
		metrics: s.metrics,
	}

	sinks := []events.Sink{events.NewLogSink(s.logger)}
	if c.metrics != nil {
		sinks = append(sinks, c.metrics)
	}
	if cfg.Journal.Path != "" {
		c.journal = journal.Open(cfg.Journal.Path, s.logger, model.EventConfirmAttempt)
		sinks = append(sinks, c.journal)
	}
	if cfg.Webhook.Enabled {
		c.hooks = webhook.NewClient(&cfg.Webhook, s.logger)
		sinks = append(sinks, c.hooks)
	}
	if cfg.Cache.Path != "" {
		cache, err := leasecache.Open(cfg.Cache.Path)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.cache = cache
	}
	c.sink = events.Multi(append(sinks, s.sinks...)...)

	reader := ledger.WithTimeout(b.Ledger, cfg.Request.Timeout)
	storage := walrus.WithTimeout(b.Storage, cfg.Request.Timeout)

	poller := confirm.NewPoller(s.sleeper, s.logger).WithSink(c.sink)
	if s.progress != nil {
		poller = poller.WithProgress(s.progress)
	}

	c.leases = ledger.NewLeases(reader, c.contract)
	c.inspect = inspect.New(storage, reader)
	c.storage = lifecycle.NewManager(storage, c.inspect, c.sink, s.logger)
	c.uploader = walrus.NewUploader(storage, c.policy, cfg.AggregatorURL(), c.sink, s.logger)

	var store renewal.LeaseStore
	if c.cache != nil {
		store = c.cache
	}
	c.renew = renewal.New(c.leases, c.storage, poller, renewal.Options{
		Contract:    c.contract,
		Policy:      c.policy,
		MaxAttempts: cfg.Confirm.MaxAttempts,
		BaseDelay:   cfg.Confirm.BaseDelay,
		Cache:       store,
		Sink:        c.sink,
		Logger:      s.logger,
		Now:         s.now,
	})
	c.content = content.New(c.leases, c.storage, c.uploader, poller, content.Options{
		Contract:    c.contract,
		MaxAttempts: cfg.Confirm.MaxAttempts,
		BaseDelay:   cfg.Confirm.BaseDelay,
		Cache:       store,
		Sink:        c.sink,
		Logger:      s.logger,
		Now:         s.now,
	})
	c.admin = adspace.New(reader, poller, adspace.Options{
		Contract:    c.contract,
		MaxAttempts: cfg.Confirm.MaxAttempts,
		BaseDelay:   cfg.Confirm.BaseDelay,
		Sink:        c.sink,
		Logger:      s.logger,
		Now:         s.now,
	})
	return c, nil
}

// Close stops webhooks and closes the cache.
func (c *Client) Close() error {
	var errs []error
	if c.hooks != nil {
		errs = append(errs, c.hooks.Close())
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	return errors.Join(errs...)
}

// Policy is the epoch policy of the configured network.
func (c *Client) Policy() model.EpochPolicy { return c.policy }

// Renew extends storage as needed and renews the lease.
func (c *Client) Renew(ctx context.Context, req RenewRequest, signer Signer) (RenewResult, error) {
	return c.renew.Renew(ctx, req, signer)
}

// UpdateContent points a lease at new content.
func (c *Client) UpdateContent(ctx context.Context, req ContentRequest, signer Signer) (ContentResult, error) {
	return c.content.Update(ctx, req, signer)
}

// Publish uploads data for the remaining lease time and points the lease
// at it.
func (c *Client) Publish(ctx context.Context, leaseID string, data []byte, signer Signer) (ContentResult, error) {
	return c.content.Publish(ctx, leaseID, data, signer)
}

// UpdatePrice changes an ad space price.
func (c *Client) UpdatePrice(ctx context.Context, adSpaceID string, price uint64, signer Signer) (AdminResult, error) {
	return c.admin.UpdatePrice(ctx, adSpaceID, price, signer)
}

// RegisterDeveloper registers developer on the configured factory.
func (c *Client) RegisterDeveloper(ctx context.Context, developer string, signer Signer) (AdminResult, error) {
	return c.admin.RegisterDeveloper(ctx, "", developer, signer)
}

// Purchase buys a lease.
func (c *Client) Purchase(ctx context.Context, p PurchaseParams, signer Signer) (AdminResult, error) {
	return c.admin.Purchase(ctx, p, signer)
}

// Lease fetches a lease from the ledger.
func (c *Client) Lease(ctx context.Context, id string) (model.LeaseRecord, error) {
	return c.leases.Get(ctx, id)
}

// Leases lists every lease owned by owner.
func (c *Client) Leases(ctx context.Context, owner string) ([]model.LeaseRecord, error) {
	return c.leases.ListOwned(ctx, owner)
}

// Inspect reads a blob's expiration.
func (c *Client) Inspect(ctx context.Context, id model.ObjectID) (model.BlobExpiration, error) {
	return c.inspect.Inspect(ctx, id)
}

// PlanFor returns the extension a renewal of lease by days would need,
// without submitting anything.
func (c *Client) PlanFor(ctx context.Context, lease model.LeaseRecord, days uint64, now time.Time) (model.ExtensionPlan, error) {
	if !lease.Content.Decentralized() {
		return model.ExtensionPlan{}, errclass.ErrInvalidRequest.WithMessagef("lease %s has no stored content", lease.ID)
	}
	id, err := objectid.OfContent(lease.Content)
	if err != nil {
		return model.ExtensionPlan{}, err
	}
	base := lease.LeaseEnd
	if now.After(base) {
		base = now
	}
	extension := time.Duration(days) * 24 * time.Hour
	cov, err := c.storage.Plan(ctx, id, c.policy, now, base.Add(extension), extension)
	return cov.Plan, err
}

// Cached returns the local lease cache, or nil when disabled.
func (c *Client) Cached() *leasecache.Cache { return c.cache }

// JournalPath is the event journal file, or "" when disabled.
func (c *Client) JournalPath() string {
	if c.journal == nil {
		return ""
	}
	return c.journal.Path()
}
