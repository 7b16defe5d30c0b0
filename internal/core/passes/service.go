// Package passes implements the pass lifecycle on top of the
// resilience primitives: throttled entry points, cached reads, and
// best-effort notification delivery behind a retry policy and a
// circuit breaker.
package passes

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/cache"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/resilience"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/throttle"
	"github.com/merdocx/easy-pass-bot-sub000/internal/metrics"
	"github.com/merdocx/easy-pass-bot-sub000/internal/notify"
)

// Repository is the storage surface the pass service consumes.
type Repository interface {
	CreatePass(ctx context.Context, userID int64, carNumber string) (*core.Pass, error)
	ByID(ctx context.Context, id int64) (*core.Pass, error)
	MarkUsed(ctx context.Context, id int64, securityID int64) error
	Cancel(ctx context.Context, id int64) error
	CountActiveByUser(ctx context.Context, userID int64) (int, error)
	FindActiveByCar(ctx context.Context, carNumber string) (*core.Pass, error)
	ListByUser(ctx context.Context, userID int64) ([]core.Pass, error)
}

const notifierBreaker = "notifier"

// Service coordinates pass operations for the handler layer.
type Service struct {
	Repo     Repository
	Cache    *cache.Cache
	Throttle *throttle.Throttle
	Breakers *resilience.Manager
	Executor *resilience.Executor
	Notifier notify.Notifier

	RetryPolicy resilience.Policy
	BreakerCfg  resilience.BreakerConfig

	// MaxActivePerUser caps concurrently active passes per resident.
	MaxActivePerUser int

	Logger *logging.Logger
}

// Create issues a new pass after the throttle, duplicate, and quota
// checks. Archived records never count against either check.
func (s *Service) Create(ctx context.Context, userID int64, carNumber string) (*core.Pass, error) {
	if s.Throttle != nil && !s.Throttle.Allow(userID) {
		metrics.RecordThrottleReject("resident")
		return nil, core.ErrThrottled
	}

	existing, err := s.Repo.FindActiveByCar(ctx, carNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("car %s: %w", carNumber, core.ErrDuplicatePass)
	}

	if s.MaxActivePerUser > 0 {
		count, err := s.Repo.CountActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= s.MaxActivePerUser {
			return nil, fmt.Errorf("user %d: %w", userID, core.ErrPassLimit)
		}
	}

	pass, err := s.Repo.CreatePass(ctx, userID, carNumber)
	if err != nil {
		metrics.RecordPassOperation("create", false)
		return nil, err
	}
	metrics.RecordPassOperation("create", true)

	s.invalidateUser(userID)
	s.invalidateCarLookups()
	s.notifyBestEffort(ctx, userID, fmt.Sprintf("Pass created for car %s", pass.CarNumber))

	if s.Logger != nil {
		s.Logger.Info("Pass created",
			zap.Int64("pass_id", pass.ID),
			zap.Int64("user_id", userID),
			zap.String("car_number", pass.CarNumber))
	}
	return pass, nil
}

// MarkUsed records that security staff admitted the car. The
// active→used transition happens exactly once; used_at and used_by are
// stamped together by the repository.
func (s *Service) MarkUsed(ctx context.Context, id int64, securityID int64) error {
	if s.Throttle != nil && !s.Throttle.Allow(securityID) {
		metrics.RecordThrottleReject("security")
		return core.ErrThrottled
	}

	pass, err := s.Repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if pass == nil {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}

	if err := s.Repo.MarkUsed(ctx, id, securityID); err != nil {
		metrics.RecordPassOperation("use", false)
		return err
	}
	metrics.RecordPassOperation("use", true)

	s.invalidateUser(pass.UserID)
	s.invalidateCarLookups()
	s.notifyBestEffort(ctx, pass.UserID, fmt.Sprintf("Pass for car %s was used", pass.CarNumber))

	if s.Logger != nil {
		s.Logger.Info("Pass marked used",
			zap.Int64("pass_id", id),
			zap.Int64("security_id", securityID))
	}
	return nil
}

// Cancel voids an active pass at the owner's request.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) error {
	if s.Throttle != nil && !s.Throttle.Allow(actorID) {
		metrics.RecordThrottleReject("resident")
		return core.ErrThrottled
	}

	pass, err := s.Repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if pass == nil {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}

	if err := s.Repo.Cancel(ctx, id); err != nil {
		metrics.RecordPassOperation("cancel", false)
		return err
	}
	metrics.RecordPassOperation("cancel", true)

	s.invalidateUser(pass.UserID)
	s.invalidateCarLookups()

	if s.Logger != nil {
		s.Logger.Info("Pass cancelled", zap.Int64("pass_id", id))
	}
	return nil
}

// UserPasses returns the user's non-archived passes, served from the
// cache when fresh.
func (s *Service) UserPasses(ctx context.Context, userID int64) ([]core.Pass, error) {
	if s.Cache == nil {
		return s.Repo.ListByUser(ctx, userID)
	}

	value, err := s.Cache.GetOrSet(userPassesKey(userID), 0, func() (any, error) {
		return s.Repo.ListByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	listed, ok := value.([]core.Pass)
	if !ok {
		// Mismatched cache entry: fall through to storage.
		return s.Repo.ListByUser(ctx, userID)
	}
	return listed, nil
}

// FindActiveByCar is the security-side lookup, cached briefly because
// guards often re-scan the same car within seconds.
func (s *Service) FindActiveByCar(ctx context.Context, carNumber string) (*core.Pass, error) {
	if s.Cache == nil {
		return s.Repo.FindActiveByCar(ctx, carNumber)
	}

	value, err := s.Cache.GetOrSet(carLookupKey(carNumber), 30*time.Second, func() (any, error) {
		return s.Repo.FindActiveByCar(ctx, carNumber)
	})
	if err != nil {
		return nil, err
	}

	pass, ok := value.(*core.Pass)
	if !ok {
		return s.Repo.FindActiveByCar(ctx, carNumber)
	}
	return pass, nil
}

func userPassesKey(userID int64) string {
	return fmt.Sprintf("passes:user:%d", userID)
}

func carLookupKey(carNumber string) string {
	return "pass:car:" + carNumber
}

func (s *Service) invalidateUser(userID int64) {
	if s.Cache == nil {
		return
	}
	_, _ = s.Cache.InvalidatePattern(fmt.Sprintf(`^passes:user:%d$`, userID))
}

func (s *Service) invalidateCarLookups() {
	if s.Cache == nil {
		return
	}
	_, _ = s.Cache.InvalidatePattern(`^pass:car:`)
}

// notifyBestEffort delivers a notification behind the notifier breaker
// and the retry policy. Failures are logged and swallowed: delivery
// must never fail the business operation.
func (s *Service) notifyBestEffort(ctx context.Context, recipientID int64, text string) {
	if s.Notifier == nil || s.Breakers == nil || s.Executor == nil {
		return
	}

	msg := notify.Message{RecipientID: recipientID, Text: text}
	breaker := s.Breakers.Get(notifierBreaker, s.BreakerCfg)

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return s.Executor.Execute(ctx, s.RetryPolicy, func(ctx context.Context) error {
			return s.Notifier.Send(ctx, msg)
		})
	})
	if err != nil && s.Logger != nil {
		s.Logger.Warn("Notification delivery failed",
			zap.Int64("recipient_id", recipientID),
			zap.Error(err))
	}
}
