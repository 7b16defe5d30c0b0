package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/metrics"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerConfig tunes one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the
	// breaker while Closed.
	FailureThreshold int
	// SuccessThreshold is the success count that closes the breaker
	// while HalfOpen.
	SuccessThreshold int
	// OpenTimeout is how long calls are rejected after opening before
	// a probe call is admitted.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig mirrors the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		OpenTimeout:      time.Minute,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	return c
}

// BreakerStats is a point-in-time snapshot for reporting.
type BreakerStats struct {
	Name             string     `json:"name"`
	State            State      `json:"state"`
	FailureCount     int        `json:"failure_count"`
	SuccessCount     int        `json:"success_count"`
	LastFailureTime  *time.Time `json:"last_failure_time,omitempty"`
	FailureThreshold int        `json:"failure_threshold"`
	SuccessThreshold int        `json:"success_threshold"`
	OpenTimeout      string     `json:"open_timeout"`
}

// Breaker guards one logical dependency. Its counters are reset on
// every state transition.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *logging.Logger

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// NewBreaker creates a breaker in the Closed state.
func NewBreaker(name string, cfg BreakerConfig, logger *logging.Logger) *Breaker {
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: logger,
		state:  StateClosed,
	}
}

// Do runs op through the breaker. While Open and before OpenTimeout
// elapses it returns core.ErrCircuitOpen without invoking op; the
// first call after the timeout is admitted as a HalfOpen probe.
func (b *Breaker) Do(ctx context.Context, op Operation) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) beforeCall() error {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if now.Sub(b.openedAt) < b.cfg.OpenTimeout {
		return core.ErrCircuitOpen
	}

	b.transition(StateHalfOpen)
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		// One failure during the probe phase reopens the breaker.
		b.openedAt = now
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = now
			b.transition(StateOpen)
		}
	}
}

// transition changes state and resets both counters. Callers hold b.mu.
func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	b.failures = 0
	b.successes = 0

	if b.logger != nil {
		b.logger.Warn("Circuit breaker state changed",
			zap.String("breaker", b.name),
			zap.String("from", string(prev)),
			zap.String("to", string(next)))
	}
	metrics.RecordBreakerTransition(b.name, string(prev), string(next))
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to Closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
}

// Stats returns a snapshot for reporting.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := BreakerStats{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failures,
		SuccessCount:     b.successes,
		FailureThreshold: b.cfg.FailureThreshold,
		SuccessThreshold: b.cfg.SuccessThreshold,
		OpenTimeout:      b.cfg.OpenTimeout.String(),
	}
	if !b.lastFailure.IsZero() {
		last := b.lastFailure
		stats.LastFailureTime = &last
	}
	return stats
}

func (b *Breaker) now() time.Time {
	if b.Clock != nil {
		return b.Clock()
	}
	return time.Now().UTC()
}
