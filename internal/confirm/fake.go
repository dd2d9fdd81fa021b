package confirm

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested sleeps and returns immediately.
type FakeSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
	// OnSleep, if set, runs after each recorded sleep.
	OnSleep func(d time.Duration)
}

func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.slept = append(f.slept, d)
	hook := f.OnSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Slept returns every recorded sleep in order.
func (f *FakeSleeper) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.slept...)
}

// Total is the sum of recorded sleeps.
func (f *FakeSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range f.Slept() {
		total += d
	}
	return total
}
