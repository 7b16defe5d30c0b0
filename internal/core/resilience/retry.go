// Package resilience provides call-wrapping primitives: a retry
// executor with configurable backoff and a circuit breaker that fails
// fast once a dependency is judged unhealthy.
package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/metrics"
)

// Operation is the unit of work wrapped by the retry executor and the
// circuit breaker.
type Operation func(ctx context.Context) error

// Strategy selects how retry delays grow with the attempt number.
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
	StrategyJittered    Strategy = "jittered"
)

// ParseStrategy maps a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFixed, StrategyLinear, StrategyExponential, StrategyJittered:
		return Strategy(s), nil
	case "":
		return StrategyExponential, nil
	default:
		return "", fmt.Errorf("unknown retry strategy: %q", s)
	}
}

// Policy describes one retry budget. It holds no cross-call state; a
// fresh attempt counter is created per Execute invocation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    Strategy

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy mirrors the production notification retry budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    StrategyExponential,
	}
}

// Delay returns the wait before the attempt following `completed`
// failed attempts. There is no delay before the first attempt.
func (p Policy) Delay(completed int) time.Duration {
	if completed <= 0 {
		return 0
	}

	var delay time.Duration
	switch p.Strategy {
	case StrategyFixed:
		delay = p.BaseDelay
	case StrategyLinear:
		delay = p.BaseDelay * time.Duration(completed)
	case StrategyExponential:
		shift := completed - 1
		if shift > 30 {
			shift = 30 // larger shifts overflow time.Duration
		}
		delay = p.BaseDelay << shift
	case StrategyJittered:
		delay = p.BaseDelay + time.Duration(rand.Int63n(int64(p.BaseDelay)+1))
	default:
		delay = p.BaseDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Executor runs operations under a retry policy.
type Executor struct {
	logger *logging.Logger
}

// NewExecutor creates a retry executor. The logger may be nil.
func NewExecutor(logger *logging.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs op until it succeeds, a non-retryable error occurs, the
// attempt budget is exhausted, or ctx is cancelled. On exhaustion the
// returned error is a *core.RetryExhaustedError unwrapping to the last
// underlying error.
func (e *Executor) Execute(ctx context.Context, policy Policy, op Operation) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := policy.Delay(attempt - 1)
			metrics.RecordRetryAttempt("execute")
			if e.logger != nil {
				e.logger.Warn("Retrying operation",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", policy.MaxAttempts),
					zap.Duration("delay", delay),
					zap.Error(lastErr))
			}
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 && e.logger != nil {
				e.logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}
		lastErr = err
	}

	if e.logger != nil {
		e.logger.Error("Operation failed after all attempts",
			zap.Int("attempts", policy.MaxAttempts),
			zap.Error(lastErr))
	}
	return &core.RetryExhaustedError{Attempts: policy.MaxAttempts, Err: lastErr}
}

// ExecuteValue is Execute for operations that produce a value.
func ExecuteValue[T any](ctx context.Context, e *Executor, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, policy, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
