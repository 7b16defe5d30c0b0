// Package throttle provides per-actor sliding window admission control
// with temporary blocking for actors that exceed their request budget.
package throttle

import (
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Config controls the throttle window.
type Config struct {
	// MaxRequests is the number of requests admitted per window.
	MaxRequests int
	// Window is the sliding window duration. An actor that overflows
	// the window is blocked for one full window.
	Window time.Duration
}

// DefaultConfig matches the production bot limits (15 requests/minute).
func DefaultConfig() Config {
	return Config{MaxRequests: 15, Window: time.Minute}
}

type actorState struct {
	requests     []time.Time
	blockedUntil time.Time
}

// Stats summarizes throttle occupancy for reporting.
type Stats struct {
	ActiveActors  int           `json:"active_actors"`
	BlockedActors int           `json:"blocked_actors"`
	MaxRequests   int           `json:"max_requests_per_window"`
	Window        time.Duration `json:"window"`
}

// Throttle admits or rejects requests per actor using a sliding window.
// State is in-memory only; a restart grants every actor a fresh window.
type Throttle struct {
	cfg    Config
	logger *logging.Logger

	mu     sync.Mutex
	actors map[int64]*actorState

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// New creates a throttle with the provided configuration.
func New(cfg Config, logger *logging.Logger) *Throttle {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultConfig().MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Throttle{
		cfg:    cfg,
		logger: logger,
		actors: make(map[int64]*actorState),
	}
}

// Allow reports whether the actor may proceed. A blocked actor is
// rejected without recording anything; an actor that fills its window
// is blocked for one window and rejected.
func (t *Throttle) Allow(actorID int64) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.actors[actorID]
	if !ok {
		state = &actorState{}
		t.actors[actorID] = state
	}

	if !state.blockedUntil.IsZero() {
		if now.Before(state.blockedUntil) {
			return false
		}
		// Block expired: the actor starts from an empty window.
		state.blockedUntil = time.Time{}
		state.requests = state.requests[:0]
	}

	state.requests = pruneBefore(state.requests, now.Add(-t.cfg.Window))

	if len(state.requests) >= t.cfg.MaxRequests {
		state.blockedUntil = now.Add(t.cfg.Window)
		if t.logger != nil {
			t.logger.Warn("Actor blocked by throttle",
				zap.Int64("actor_id", actorID),
				zap.Duration("block_duration", t.cfg.Window))
		}
		return false
	}

	state.requests = append(state.requests, now)
	return true
}

// Remaining returns how many requests the actor may still make in the
// current window. A blocked actor has zero remaining.
func (t *Throttle) Remaining(actorID int64) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.actors[actorID]
	if !ok {
		return t.cfg.MaxRequests
	}
	if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
		return 0
	}

	state.requests = pruneBefore(state.requests, now.Add(-t.cfg.Window))
	remaining := t.cfg.MaxRequests - len(state.requests)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// BlockTimeRemaining returns how long the actor stays blocked. The
// second result is false when the actor is not blocked.
func (t *Throttle) BlockTimeRemaining(actorID int64) (time.Duration, bool) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.actors[actorID]
	if !ok || state.blockedUntil.IsZero() {
		return 0, false
	}

	remaining := state.blockedUntil.Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Reset clears window state and any block for the actor. Used for
// administrative overrides.
func (t *Throttle) Reset(actorID int64) {
	t.mu.Lock()
	delete(t.actors, actorID)
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Info("Throttle reset", zap.Int64("actor_id", actorID))
	}
}

// Stats reports current occupancy. Expired blocks and stale windows
// are evicted as a side effect.
func (t *Throttle) Stats() Stats {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		MaxRequests: t.cfg.MaxRequests,
		Window:      t.cfg.Window,
	}

	for actorID, state := range t.actors {
		if !state.blockedUntil.IsZero() {
			if now.Before(state.blockedUntil) {
				stats.BlockedActors++
				continue
			}
			state.blockedUntil = time.Time{}
			state.requests = state.requests[:0]
		}

		state.requests = pruneBefore(state.requests, now.Add(-t.cfg.Window))
		if len(state.requests) > 0 {
			stats.ActiveActors++
		} else {
			delete(t.actors, actorID)
		}
	}

	return stats
}

func (t *Throttle) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}

// pruneBefore drops timestamps at or before the cutoff, preserving
// order. Timestamps are appended monotonically so a single scan from
// the front suffices.
func pruneBefore(requests []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(requests) && !requests[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return requests
	}
	return append(requests[:0], requests[idx:]...)
}
