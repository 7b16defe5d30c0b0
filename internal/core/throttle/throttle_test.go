package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestThrottle(cfg Config) (*Throttle, *time.Time) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	th := New(cfg, nil)
	th.Clock = func() time.Time { return clock }
	return th, &clock
}

func TestThrottleWindowLimit(t *testing.T) {
	th, clock := newTestThrottle(Config{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		require.True(t, th.Allow(42))
	}
	require.False(t, th.Allow(42))

	remaining, blocked := th.BlockTimeRemaining(42)
	require.True(t, blocked)
	require.Equal(t, time.Minute, remaining)

	// The block covers the full window even though the oldest request
	// ages out earlier.
	*clock = clock.Add(30 * time.Second)
	require.False(t, th.Allow(42))

	*clock = clock.Add(31 * time.Second)
	require.True(t, th.Allow(42))
}

func TestThrottleFreshWindowAfterBlock(t *testing.T) {
	th, clock := newTestThrottle(Config{MaxRequests: 2, Window: time.Minute})

	require.True(t, th.Allow(7))
	require.True(t, th.Allow(7))
	require.False(t, th.Allow(7))

	*clock = clock.Add(time.Minute + time.Second)

	// Expired block starts an empty window.
	require.Equal(t, 2, th.Remaining(7))
	require.True(t, th.Allow(7))
	require.Equal(t, 1, th.Remaining(7))
}

func TestThrottleRemainingAndReset(t *testing.T) {
	th, _ := newTestThrottle(Config{MaxRequests: 5, Window: time.Minute})

	require.Equal(t, 5, th.Remaining(1))
	require.True(t, th.Allow(1))
	require.True(t, th.Allow(1))
	require.Equal(t, 3, th.Remaining(1))

	th.Reset(1)
	require.Equal(t, 5, th.Remaining(1))
	_, blocked := th.BlockTimeRemaining(1)
	require.False(t, blocked)
}

func TestThrottleActorsIndependent(t *testing.T) {
	th, _ := newTestThrottle(Config{MaxRequests: 1, Window: time.Minute})

	require.True(t, th.Allow(1))
	require.False(t, th.Allow(1))
	require.True(t, th.Allow(2))
}

func TestThrottleBlockTimeRemainingUnblocked(t *testing.T) {
	th, _ := newTestThrottle(Config{MaxRequests: 1, Window: time.Minute})

	_, blocked := th.BlockTimeRemaining(99)
	require.False(t, blocked)

	require.True(t, th.Allow(99))
	_, blocked = th.BlockTimeRemaining(99)
	require.False(t, blocked)
}

func TestThrottleConcurrentAllow(t *testing.T) {
	const maxRequests = 10
	th := New(Config{MaxRequests: maxRequests, Window: time.Minute}, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for i := 0; i < maxRequests+5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow(123) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, maxRequests, allowed)
}

func TestThrottleStats(t *testing.T) {
	th, _ := newTestThrottle(Config{MaxRequests: 1, Window: time.Minute})

	require.True(t, th.Allow(1))
	require.True(t, th.Allow(2))
	require.False(t, th.Allow(2))

	stats := th.Stats()
	require.Equal(t, 1, stats.ActiveActors)
	require.Equal(t, 1, stats.BlockedActors)
	require.Equal(t, 1, stats.MaxRequests)
	require.Equal(t, time.Minute, stats.Window)
}
