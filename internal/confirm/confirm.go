// Package confirm waits for a submitted transaction to become visible in
// ledger reads. Polling is bounded: the wait before attempt i is
// BaseDelay*i, for at most MaxAttempts attempts.
package confirm

import (
	"context"
	"time"

	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
	"github.com/adslot/leasekeeper/pkg/progress"
)

// Default confirmation bounds. A Target is used as given: zero
// MaxAttempts polls nothing and times out at once.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
)

// Status is the terminal result of polling.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTimedOut  Status = "timed_out"
)

// Target describes what to wait for.
type Target[T any] struct {
	// Operation labels logs, events and progress output.
	Operation   string
	Predicate   func(T) bool
	MaxAttempts int
	BaseDelay   time.Duration
}

func (t Target[T]) attempts() int {
	if t.MaxAttempts < 0 {
		return 0
	}
	return t.MaxAttempts
}

func (t Target[T]) delay() time.Duration {
	if t.BaseDelay < 0 {
		return 0
	}
	return t.BaseDelay
}

// Schedule is the sleep before each attempt of t.
func (t Target[T]) Schedule() []time.Duration {
	return Schedule(t.attempts(), t.delay())
}

// Outcome reports how polling ended. Value is the last successfully
// fetched value; it is the matching value when Status is StatusConfirmed.
type Outcome[T any] struct {
	Status   Status
	Value    T
	HasValue bool
	Attempts int
	Waited   time.Duration
	// LastErr is the most recent fetch error, if any attempt failed.
	LastErr error
}

// Confirmed reports whether the predicate matched.
func (o Outcome[T]) Confirmed() bool { return o.Status == StatusConfirmed }

// Schedule returns the linear backoff schedule: base*1, base*2, ... base*n.
func Schedule(maxAttempts int, base time.Duration) []time.Duration {
	if maxAttempts <= 0 {
		return nil
	}
	out := make([]time.Duration, maxAttempts)
	for i := range out {
		out[i] = base * time.Duration(i+1)
	}
	return out
}

// TotalWait is the longest polling can sleep: base * n(n+1)/2.
func TotalWait(maxAttempts int, base time.Duration) time.Duration {
	var total time.Duration
	for _, d := range Schedule(maxAttempts, base) {
		total += d
	}
	return total
}

// Sleeper pauses between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper sleeps on a timer and returns early with ctx.Err().
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller runs confirmation loops.
type Poller struct {
	sleeper   Sleeper
	onAttempt progress.Callback
	sink      events.Sink
	log       *logging.Logger
	now       func() time.Time
}

// NewPoller creates a poller. A nil sleeper sleeps for real.
func NewPoller(sleeper Sleeper, log *logging.Logger) *Poller {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Poller{
		sleeper:   sleeper,
		onAttempt: progress.Noop,
		sink:      events.Discard,
		log:       logging.OrDefault(log).Named("confirm"),
		now:       time.Now,
	}
}

// WithProgress reports each attempt to cb.
func (p *Poller) WithProgress(cb progress.Callback) *Poller {
	if cb != nil {
		p.onAttempt = cb
	}
	return p
}

// WithSink emits a confirm.attempt event per attempt.
func (p *Poller) WithSink(s events.Sink) *Poller {
	p.sink = events.Or(s)
	return p
}

// Confirm polls fetch until target.Predicate holds or attempts run out.
// A fetch error counts as a failed attempt. Running out of attempts is an
// outcome, not an error; the only error is ctx's.
func Confirm[T any](ctx context.Context, p *Poller, target Target[T], fetch func(context.Context) (T, error)) (Outcome[T], error) {
	var out Outcome[T]
	limit := target.attempts()
	base := target.delay()

	for attempt := 1; attempt <= limit; attempt++ {
		wait := base * time.Duration(attempt)
		p.onAttempt(target.Operation, attempt, limit, "waiting "+wait.String())
		if err := p.sleeper.Sleep(ctx, wait); err != nil {
			return out, err
		}
		out.Waited += wait
		out.Attempts = attempt

		v, err := fetch(ctx)
		matched := false
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.LastErr = err
			p.log.Debug("confirmation fetch failed", map[string]any{
				"operation": target.Operation,
				"attempt":   attempt,
				"error":     err.Error(),
			})
		} else {
			out.Value, out.HasValue = v, true
			matched = target.Predicate(v)
		}
		p.emitAttempt(target.Operation, attempt, wait, matched, err)

		if matched {
			out.Status = StatusConfirmed
			return out, nil
		}
	}

	p.log.Warn("confirmation timed out", map[string]any{
		"operation": target.Operation,
		"attempts":  out.Attempts,
		"waited":    out.Waited.String(),
	})
	out.Status = StatusTimedOut
	return out, nil
}

func (p *Poller) emitAttempt(op string, attempt int, wait time.Duration, matched bool, err error) {
	e := model.Event{
		Type:      model.EventConfirmAttempt,
		Timestamp: p.now(),
		Details: map[string]any{
			"operation": op,
			"attempt":   attempt,
			"delay_ms":  wait.Milliseconds(),
			"matched":   matched,
		},
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.sink.Emit(e)
}
