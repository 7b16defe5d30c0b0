package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
)

func newTestBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker("test", cfg, nil)
	b.Clock = func() time.Time { return clock }
	return b, &clock
}

func failing(err error) Operation {
	return func(ctx context.Context) error { return err }
}

func succeeding() Operation {
	return func(ctx context.Context) error { return nil }
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})
	boom := errors.New("boom")

	require.ErrorIs(t, b.Do(context.Background(), failing(boom)), boom)
	require.Equal(t, StateClosed, b.State())

	require.ErrorIs(t, b.Do(context.Background(), failing(boom)), boom)
	require.Equal(t, StateOpen, b.State())

	// Counters reset on transition.
	stats := b.Stats()
	require.Equal(t, 0, stats.FailureCount)
	require.Equal(t, 0, stats.SuccessCount)
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	require.Error(t, b.Do(context.Background(), failing(errors.New("boom"))))
	require.Equal(t, StateOpen, b.State())

	invoked := false
	err := b.Do(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, core.ErrCircuitOpen)
	require.False(t, invoked)

	*clock = clock.Add(59 * time.Second)
	require.ErrorIs(t, b.Do(context.Background(), succeeding()), core.ErrCircuitOpen)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})
	boom := errors.New("boom")

	require.Error(t, b.Do(context.Background(), failing(boom)))
	require.Error(t, b.Do(context.Background(), failing(boom)))
	require.Equal(t, StateOpen, b.State())

	// After the timeout the next call is admitted as a probe; a
	// failure there reopens immediately.
	*clock = clock.Add(time.Minute)
	require.ErrorIs(t, b.Do(context.Background(), failing(boom)), boom)
	require.Equal(t, StateOpen, b.State())

	// A successful probe closes it (success threshold 1).
	*clock = clock.Add(time.Minute)
	require.NoError(t, b.Do(context.Background(), succeeding()))
	require.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenNeedsSuccessThreshold(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Second,
	})

	require.Error(t, b.Do(context.Background(), failing(errors.New("boom"))))
	*clock = clock.Add(2 * time.Second)

	require.NoError(t, b.Do(context.Background(), succeeding()))
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(context.Background(), succeeding()))
	require.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
	})
	boom := errors.New("boom")

	require.Error(t, b.Do(context.Background(), failing(boom)))
	require.NoError(t, b.Do(context.Background(), succeeding()))
	require.Error(t, b.Do(context.Background(), failing(boom)))

	// The earlier failure was cleared, so one more is still Closed.
	require.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Hour,
	})

	require.Error(t, b.Do(context.Background(), failing(errors.New("boom"))))
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Do(context.Background(), succeeding()))
}

func TestManagerReturnsSameBreaker(t *testing.T) {
	m := NewManager(nil)

	a := m.Get("notifier", BreakerConfig{FailureThreshold: 1})
	b := m.Get("notifier", BreakerConfig{FailureThreshold: 99})
	require.Same(t, a, b)

	other := m.Get("storage", BreakerConfig{})
	require.NotSame(t, a, other)

	require.Len(t, m.Stats(), 2)
}

func TestManagerResetAll(t *testing.T) {
	m := NewManager(nil)

	b := m.Get("notifier", BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour})
	require.Error(t, b.Do(context.Background(), failing(errors.New("boom"))))
	require.Equal(t, StateOpen, b.State())

	m.ResetAll()
	require.Equal(t, StateClosed, b.State())
}
