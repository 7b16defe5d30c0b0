// Package archive moves aged pass records out of the active working
// set. A background loop periodically archives stale records; archived
// records stay queryable and restorable until explicitly purged.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/metrics"
)

// PassRepository is the storage surface the archivist needs.
type PassRepository interface {
	// PassesForArchiving returns exactly the records eligible for
	// archiving under the configured retention thresholds.
	PassesForArchiving(ctx context.Context) ([]core.Pass, error)
	// ArchivePass sets the archived flag on one record.
	ArchivePass(ctx context.Context, id int64) error
	All(ctx context.Context) ([]core.Pass, error)
	ByID(ctx context.Context, id int64) (*core.Pass, error)
	Update(ctx context.Context, pass *core.Pass) error
	Delete(ctx context.Context, id int64) error
}

// Config controls the archival loop.
type Config struct {
	// Interval between archival cycles.
	Interval time.Duration
	// Cooldown before the next cycle after one fails wholesale.
	Cooldown time.Duration
}

// DefaultConfig matches the production cadence: a cycle every six
// hours, one hour cooldown after a failed cycle.
func DefaultConfig() Config {
	return Config{Interval: 6 * time.Hour, Cooldown: time.Hour}
}

// Archivist owns the background archival loop and the administrative
// archive operations.
type Archivist struct {
	repo   PassRepository
	cfg    Config
	logger *logging.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// New creates an archivist. The loop is not running until Start.
func New(repo PassRepository, cfg Config, logger *logging.Logger) *Archivist {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Archivist{repo: repo, cfg: cfg, logger: logger}
}

// Start launches the archival loop. Calling Start more than once is a
// no-op; the loop stops when Stop is called or ctx is cancelled.
func (a *Archivist) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		a.done = make(chan struct{})
		go a.loop(loopCtx)
	})
}

// Stop cancels the loop and waits for it to exit.
func (a *Archivist) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

// loop runs archival cycles forever. A failed cycle is logged and the
// loop backs off for the cooldown instead of the full interval; it
// never terminates except through cancellation.
func (a *Archivist) loop(ctx context.Context) {
	defer close(a.done)

	for {
		wait := a.cfg.Interval
		started := a.now()
		archived, err := a.ArchiveOldPasses(ctx)
		metrics.RecordArchiveCycle(err == nil, archived, time.Since(started))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if a.logger != nil {
				a.logger.Error("Archival cycle failed", zap.Error(err))
			}
			wait = a.cfg.Cooldown
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// ArchiveOldPasses archives every record the repository reports as
// eligible and returns how many were archived. A failure on one record
// is logged and skipped; only a wholesale repository failure is an
// error.
func (a *Archivist) ArchiveOldPasses(ctx context.Context) (int, error) {
	eligible, err := a.repo.PassesForArchiving(ctx)
	if err != nil {
		return 0, fmt.Errorf("list passes for archiving: %w", err)
	}

	archived := 0
	for _, pass := range eligible {
		if err := a.repo.ArchivePass(ctx, pass.ID); err != nil {
			if a.logger != nil {
				a.logger.Error("Failed to archive pass",
					zap.Int64("pass_id", pass.ID),
					zap.Error(err))
			}
			continue
		}
		archived++
		if a.logger != nil {
			a.logger.Info("Archived pass",
				zap.Int64("pass_id", pass.ID),
				zap.String("car_number", pass.CarNumber),
				zap.String("status", string(pass.Status)))
		}
	}

	if archived > 0 && a.logger != nil {
		a.logger.Info("Archival cycle complete", zap.Int("archived", archived))
	}
	return archived, nil
}

// ArchivedPasses returns up to limit archived records, newest first.
func (a *Archivist) ArchivedPasses(ctx context.Context, limit int) ([]core.Pass, error) {
	all, err := a.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}

	archived := make([]core.Pass, 0)
	for _, pass := range all {
		if pass.Archived {
			archived = append(archived, pass)
		}
	}

	sort.Slice(archived, func(i, j int) bool {
		return archived[i].CreatedAt.After(archived[j].CreatedAt)
	})

	if limit > 0 && len(archived) > limit {
		archived = archived[:limit]
	}
	return archived, nil
}

// Statistics aggregates archive totals and per-status/per-month counts
// of archived records.
func (a *Archivist) Statistics(ctx context.Context) (*core.ArchiveStatistics, error) {
	all, err := a.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}

	stats := &core.ArchiveStatistics{
		TotalPasses: len(all),
		ByStatus:    make(map[string]int),
		ByMonth:     make(map[string]int),
	}

	for _, pass := range all {
		if !pass.Archived {
			stats.ActiveCount++
			continue
		}
		stats.ArchivedCount++
		stats.ByStatus[string(pass.Status)]++
		if !pass.CreatedAt.IsZero() {
			stats.ByMonth[pass.CreatedAt.Format("2006-01")]++
		}
	}
	return stats, nil
}

// Restore clears the archived flag on one record. Status is left
// untouched. Restoring a live record fails with core.ErrNotArchived.
func (a *Archivist) Restore(ctx context.Context, id int64) error {
	pass, err := a.repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if pass == nil {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotFound)
	}
	if !pass.Archived {
		return fmt.Errorf("pass %d: %w", id, core.ErrNotArchived)
	}

	pass.Archived = false
	if err := a.repo.Update(ctx, pass); err != nil {
		return fmt.Errorf("restore pass %d: %w", id, err)
	}

	if a.logger != nil {
		a.logger.Info("Restored pass from archive", zap.Int64("pass_id", id))
	}
	return nil
}

// PurgeArchived permanently deletes archived records created before
// now-olderThan. Retention enforcement only; it is never invoked by
// the background loop.
func (a *Archivist) PurgeArchived(ctx context.Context, olderThan time.Duration) (int, error) {
	all, err := a.repo.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list passes: %w", err)
	}

	cutoff := a.now().Add(-olderThan)
	deleted := 0
	for _, pass := range all {
		if !pass.Archived || !pass.CreatedAt.Before(cutoff) {
			continue
		}
		if err := a.repo.Delete(ctx, pass.ID); err != nil {
			if a.logger != nil {
				a.logger.Error("Failed to delete archived pass",
					zap.Int64("pass_id", pass.ID),
					zap.Error(err))
			}
			continue
		}
		deleted++
	}

	if deleted > 0 && a.logger != nil {
		a.logger.Info("Purged archived passes", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (a *Archivist) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}
