package core

import (
	"errors"
	"fmt"
	"time"
)

// PassStatus identifies the lifecycle state of a pass.
type PassStatus string

const (
	PassStatusActive    PassStatus = "active"
	PassStatusUsed      PassStatus = "used"
	PassStatusCancelled PassStatus = "cancelled"
)

// Pass represents a vehicle access pass issued to a resident.
type Pass struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CarNumber string     `json:"car_number"`
	Status    PassStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedByID  *int64     `json:"used_by_id,omitempty"`
	Archived  bool       `json:"archived"`
}

// ArchiveStatistics aggregates archive counts for reporting.
type ArchiveStatistics struct {
	TotalPasses   int            `json:"total_passes"`
	ArchivedCount int            `json:"archived_count"`
	ActiveCount   int            `json:"active_count"`
	ByStatus      map[string]int `json:"archived_by_status"`
	ByMonth       map[string]int `json:"archived_by_month"`
}

// Sentinel errors shared across the core packages.
var (
	// ErrThrottled reports that an actor exceeded its request window.
	ErrThrottled = errors.New("request rate limit exceeded")

	// ErrCircuitOpen reports that a circuit breaker rejected the call
	// without invoking the protected operation.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")

	// ErrNotArchived reports a restore attempt on a live record.
	ErrNotArchived = errors.New("pass is not archived")

	// ErrDuplicatePass reports an active pass already covering the car.
	ErrDuplicatePass = errors.New("active pass already exists for car")

	// ErrPassLimit reports that a user reached their active pass quota.
	ErrPassLimit = errors.New("active pass limit reached")

	// ErrInvalidTransition reports a forbidden status change.
	ErrInvalidTransition = errors.New("invalid pass status transition")
)

// RetryExhaustedError wraps the final error after all retry attempts
// failed. Unwrap exposes the underlying error so callers keep the
// original error semantics.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
