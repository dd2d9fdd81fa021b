package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adslot/leasekeeper/internal/events"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

func never(int) bool { return false }

func TestConfirm_TimesOutAfterExactlyMaxAttempts(t *testing.T) {
	sleeper := &FakeSleeper{}
	fetches := 0

	out, err := Confirm(context.Background(), NewPoller(sleeper, logging.Nop()),
		Target[int]{Operation: "renewal", Predicate: never, MaxAttempts: 5, BaseDelay: 2000 * time.Millisecond},
		func(context.Context) (int, error) { fetches++; return fetches, nil })

	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, out.Status)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, fetches)
	assert.Equal(t, []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		6000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
	}, sleeper.Slept())
	assert.Equal(t, 30*time.Second, sleeper.Total())
	assert.Equal(t, 30*time.Second, out.Waited)
	assert.True(t, out.HasValue)
	assert.Equal(t, 5, out.Value)
}

func TestConfirm_StopsOnFirstMatch(t *testing.T) {
	sleeper := &FakeSleeper{}
	n := 0
	out, err := Confirm(context.Background(), NewPoller(sleeper, logging.Nop()),
		Target[int]{Predicate: func(v int) bool { return v >= 3 }, MaxAttempts: 5, BaseDelay: time.Second},
		func(context.Context) (int, error) { n++; return n, nil })

	require.NoError(t, err)
	assert.True(t, out.Confirmed())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, out.Value)
	assert.Equal(t, 6*time.Second, sleeper.Total())
}

func TestConfirm_FetchErrorsCountAsAttempts(t *testing.T) {
	boom := errors.New("rpc timeout")
	n := 0
	out, err := Confirm(context.Background(), NewPoller(&FakeSleeper{}, logging.Nop()),
		Target[int]{Predicate: func(v int) bool { return v == 1 }, MaxAttempts: 3},
		func(context.Context) (int, error) {
			n++
			if n < 3 {
				return 0, boom
			}
			return 1, nil
		})

	require.NoError(t, err)
	assert.True(t, out.Confirmed())
	assert.Equal(t, 3, out.Attempts)
	assert.ErrorIs(t, out.LastErr, boom)
}

func TestConfirm_AllFetchesFail(t *testing.T) {
	out, err := Confirm(context.Background(), NewPoller(&FakeSleeper{}, logging.Nop()),
		Target[string]{Predicate: func(string) bool { return true }, MaxAttempts: 2},
		func(context.Context) (string, error) { return "", errors.New("down") })

	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, out.Status)
	assert.False(t, out.HasValue)
	assert.Equal(t, 2, out.Attempts)
}

func TestConfirm_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := &FakeSleeper{}
	sleeper.OnSleep = func(time.Duration) {
		if len(sleeper.Slept()) == 2 {
			cancel()
		}
	}

	out, err := Confirm(ctx, NewPoller(sleeper, logging.Nop()),
		Target[int]{Predicate: never, MaxAttempts: 5, BaseDelay: time.Second},
		func(context.Context) (int, error) { return 0, nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, out.Attempts)
}

func TestConfirm_ZeroAttemptsTimesOutImmediately(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		sleeper := &FakeSleeper{}
		fetched := 0
		out, err := Confirm(context.Background(), NewPoller(sleeper, logging.Nop()),
			Target[int]{Predicate: func(int) bool { return true }, MaxAttempts: attempts, BaseDelay: 2 * time.Second},
			func(context.Context) (int, error) { fetched++; return 0, nil })
		require.NoError(t, err)
		assert.Equal(t, StatusTimedOut, out.Status)
		assert.Zero(t, out.Attempts)
		assert.Zero(t, out.Waited)
		assert.Zero(t, fetched)
		assert.Empty(t, sleeper.Slept())
	}
}

func TestConfirm_ProgressAndEvents(t *testing.T) {
	rec := &events.Recorder{}
	var seen []int
	p := NewPoller(&FakeSleeper{}, logging.Nop()).
		WithSink(rec).
		WithProgress(func(op string, current, total int, message string) {
			assert.Equal(t, "content", op)
			assert.Equal(t, 3, total)
			seen = append(seen, current)
		})

	n := 0
	_, err := Confirm(context.Background(), p,
		Target[int]{Operation: "content", Predicate: func(v int) bool { return v == 2 }, MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) { n++; return n, nil })
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, seen)
	attempts := rec.Of(model.EventConfirmAttempt)
	require.Len(t, attempts, 2)
	assert.Equal(t, false, attempts[0].Details["matched"])
	assert.Equal(t, true, attempts[1].Details["matched"])
	assert.Equal(t, int64(2), attempts[1].Details["delay_ms"])
}

func TestSchedule(t *testing.T) {
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, Schedule(3, time.Second))
	assert.Nil(t, Schedule(0, time.Second))
	assert.Equal(t, 30*time.Second, TotalWait(5, 2*time.Second))
	assert.Equal(t, Schedule(5, 2*time.Second), Target[int]{MaxAttempts: 5, BaseDelay: 2 * time.Second}.Schedule())
}

// Polling never sleeps more than the schedule allows, whatever the predicate does.
func TestConfirm_TimeBound(t *testing.T) {
	for attempts := 1; attempts <= 8; attempts++ {
		for matchAt := 0; matchAt <= attempts+1; matchAt++ {
			sleeper := &FakeSleeper{}
			n := 0
			out, err := Confirm(context.Background(), NewPoller(sleeper, logging.Nop()),
				Target[int]{Predicate: func(v int) bool { return v == matchAt }, MaxAttempts: attempts, BaseDelay: 250 * time.Millisecond},
				func(context.Context) (int, error) { n++; return n, nil })
			require.NoError(t, err)
			assert.LessOrEqual(t, out.Attempts, attempts)
			assert.LessOrEqual(t, sleeper.Total(), TotalWait(attempts, 250*time.Millisecond))
		}
	}
}

func TestRealSleeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealSleeper{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, RealSleeper{}.Sleep(context.Background(), time.Millisecond))
}
