package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
)

type memoryRepo struct {
	mu     sync.Mutex
	passes map[int64]*core.Pass

	usedRetention   time.Duration
	activeRetention time.Duration
	now             time.Time

	listErr    error
	archiveErr map[int64]error
}

func newMemoryRepo(now time.Time) *memoryRepo {
	return &memoryRepo{
		passes:          make(map[int64]*core.Pass),
		usedRetention:   24 * time.Hour,
		activeRetention: 7 * 24 * time.Hour,
		now:             now,
	}
}

func (m *memoryRepo) add(pass core.Pass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := pass
	m.passes[pass.ID] = &copied
}

func (m *memoryRepo) PassesForArchiving(ctx context.Context) ([]core.Pass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	eligible := make([]core.Pass, 0)
	for _, pass := range m.passes {
		if pass.Archived {
			continue
		}
		switch {
		case pass.Status == core.PassStatusUsed && pass.UsedAt != nil && m.now.Sub(*pass.UsedAt) > m.usedRetention:
			eligible = append(eligible, *pass)
		case pass.Status == core.PassStatusActive && m.now.Sub(pass.CreatedAt) > m.activeRetention:
			eligible = append(eligible, *pass)
		}
	}
	return eligible, nil
}

func (m *memoryRepo) ArchivePass(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.archiveErr[id]; err != nil {
		return err
	}
	pass, ok := m.passes[id]
	if !ok {
		return core.ErrNotFound
	}
	pass.Archived = true
	return nil
}

func (m *memoryRepo) All(ctx context.Context) ([]core.Pass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	all := make([]core.Pass, 0, len(m.passes))
	for _, pass := range m.passes {
		all = append(all, *pass)
	}
	return all, nil
}

func (m *memoryRepo) ByID(ctx context.Context, id int64) (*core.Pass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pass, ok := m.passes[id]
	if !ok {
		return nil, nil
	}
	copied := *pass
	return &copied, nil
}

func (m *memoryRepo) Update(ctx context.Context, pass *core.Pass) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.passes[pass.ID]; !ok {
		return core.ErrNotFound
	}
	copied := *pass
	m.passes[pass.ID] = &copied
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.passes[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.passes, id)
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }

func TestArchiveOldPasses(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)

	// Used 25 hours ago: eligible.
	repo.add(core.Pass{
		ID: 1, UserID: 10, CarNumber: "A123BC", Status: core.PassStatusUsed,
		CreatedAt: now.Add(-48 * time.Hour), UsedAt: timePtr(now.Add(-25 * time.Hour)),
	})
	// Active, created 8 days ago: eligible.
	repo.add(core.Pass{
		ID: 2, UserID: 11, CarNumber: "B456DE", Status: core.PassStatusActive,
		CreatedAt: now.Add(-8 * 24 * time.Hour),
	})
	// Active, created an hour ago: untouched.
	repo.add(core.Pass{
		ID: 3, UserID: 12, CarNumber: "C789FG", Status: core.PassStatusActive,
		CreatedAt: now.Add(-time.Hour),
	})

	a := New(repo, DefaultConfig(), nil)
	archived, err := a.ArchiveOldPasses(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, archived)

	pass, err := repo.ByID(context.Background(), 3)
	require.NoError(t, err)
	require.False(t, pass.Archived)

	stats, err := a.Statistics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.ArchivedCount)
	require.Equal(t, 1, stats.ActiveCount)
}

func TestArchiveOldPassesSkipsFailedRecord(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)
	repo.archiveErr = map[int64]error{1: errors.New("disk full")}

	repo.add(core.Pass{
		ID: 1, Status: core.PassStatusActive, CreatedAt: now.Add(-8 * 24 * time.Hour),
	})
	repo.add(core.Pass{
		ID: 2, Status: core.PassStatusActive, CreatedAt: now.Add(-9 * 24 * time.Hour),
	})

	a := New(repo, DefaultConfig(), nil)
	archived, err := a.ArchiveOldPasses(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, archived)
}

func TestArchiveOldPassesRepositoryFailure(t *testing.T) {
	repo := newMemoryRepo(time.Now().UTC())
	repo.listErr = errors.New("storage unreachable")

	a := New(repo, DefaultConfig(), nil)
	_, err := a.ArchiveOldPasses(context.Background())
	require.Error(t, err)
}

func TestArchivedPassesSortedAndLimited(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)

	repo.add(core.Pass{ID: 1, Archived: true, CreatedAt: now.Add(-3 * time.Hour)})
	repo.add(core.Pass{ID: 2, Archived: true, CreatedAt: now.Add(-time.Hour)})
	repo.add(core.Pass{ID: 3, Archived: true, CreatedAt: now.Add(-2 * time.Hour)})
	repo.add(core.Pass{ID: 4, Archived: false, CreatedAt: now})

	a := New(repo, DefaultConfig(), nil)
	archived, err := a.ArchivedPasses(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, archived, 2)
	require.Equal(t, int64(2), archived[0].ID)
	require.Equal(t, int64(3), archived[1].ID)
}

func TestStatisticsByStatusAndMonth(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)

	repo.add(core.Pass{
		ID: 1, Archived: true, Status: core.PassStatusUsed,
		CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	repo.add(core.Pass{
		ID: 2, Archived: true, Status: core.PassStatusUsed,
		CreatedAt: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
	})
	repo.add(core.Pass{
		ID: 3, Archived: true, Status: core.PassStatusCancelled,
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	a := New(repo, DefaultConfig(), nil)
	stats, err := a.Statistics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalPasses)
	require.Equal(t, 2, stats.ByStatus["used"])
	require.Equal(t, 1, stats.ByStatus["cancelled"])
	require.Equal(t, 2, stats.ByMonth["2025-05"])
	require.Equal(t, 1, stats.ByMonth["2025-06"])
}

func TestRestore(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)
	repo.add(core.Pass{ID: 1, Archived: true, Status: core.PassStatusUsed, CreatedAt: now})
	repo.add(core.Pass{ID: 2, Archived: false, Status: core.PassStatusActive, CreatedAt: now})

	a := New(repo, DefaultConfig(), nil)

	require.NoError(t, a.Restore(context.Background(), 1))
	pass, err := repo.ByID(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, pass.Archived)
	// Restore toggles only the archived flag.
	require.Equal(t, core.PassStatusUsed, pass.Status)

	require.ErrorIs(t, a.Restore(context.Background(), 2), core.ErrNotArchived)
	require.ErrorIs(t, a.Restore(context.Background(), 99), core.ErrNotFound)
}

func TestPurgeArchived(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMemoryRepo(now)

	repo.add(core.Pass{ID: 1, Archived: true, CreatedAt: now.Add(-100 * 24 * time.Hour)})
	repo.add(core.Pass{ID: 2, Archived: true, CreatedAt: now.Add(-10 * 24 * time.Hour)})
	repo.add(core.Pass{ID: 3, Archived: false, CreatedAt: now.Add(-100 * 24 * time.Hour)})

	a := New(repo, DefaultConfig(), nil)
	a.Clock = func() time.Time { return now }

	deleted, err := a.PurgeArchived(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	remaining, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestLoopStopsCleanly(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryRepo(now)

	a := New(repo, Config{Interval: 5 * time.Millisecond, Cooldown: 5 * time.Millisecond}, nil)
	a.Start(context.Background())
	a.Start(context.Background()) // idempotent

	time.Sleep(20 * time.Millisecond)
	a.Stop()
}

func TestLoopSurvivesCycleFailure(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryRepo(now)
	repo.listErr = errors.New("storage unreachable")

	a := New(repo, Config{Interval: 5 * time.Millisecond, Cooldown: time.Millisecond}, nil)
	a.Start(context.Background())

	time.Sleep(20 * time.Millisecond)

	// The loop kept retrying instead of terminating; once storage
	// recovers the next cycle succeeds.
	repo.mu.Lock()
	repo.listErr = nil
	repo.mu.Unlock()
	repo.add(core.Pass{ID: 1, Status: core.PassStatusActive, CreatedAt: now.Add(-8 * 24 * time.Hour)})

	require.Eventually(t, func() bool {
		pass, err := repo.ByID(context.Background(), 1)
		return err == nil && pass != nil && pass.Archived
	}, time.Second, 5*time.Millisecond)

	a.Stop()
}
