//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merdocx/easy-pass-bot-sub000/internal/config"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"},
		config.ArchiveConfig{UsedRetention: 24 * time.Hour, ActiveRetention: 7 * 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndFetchPass(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	created, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, core.PassStatusActive, created.Status)

	fetched, err := db.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, int64(10), fetched.UserID)
	require.Equal(t, "A123BC", fetched.CarNumber)
	require.False(t, fetched.Archived)
	require.Nil(t, fetched.UsedAt)
	require.Nil(t, fetched.UsedByID)

	missing, err := db.ByID(ctx, 9999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMarkUsedTransition(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	created, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)

	require.NoError(t, db.MarkUsed(ctx, created.ID, 77))

	used, err := db.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, core.PassStatusUsed, used.Status)
	require.NotNil(t, used.UsedAt)
	require.NotNil(t, used.UsedByID)
	require.Equal(t, int64(77), *used.UsedByID)

	// A second transition is rejected: used_at/used_by are set exactly once.
	err = db.MarkUsed(ctx, created.ID, 78)
	require.ErrorIs(t, err, core.ErrInvalidTransition)

	err = db.MarkUsed(ctx, 9999, 77)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCancelTransition(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	created, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)

	require.NoError(t, db.Cancel(ctx, created.ID))

	cancelled, err := db.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, core.PassStatusCancelled, cancelled.Status)

	require.ErrorIs(t, db.Cancel(ctx, created.ID), core.ErrInvalidTransition)
	require.ErrorIs(t, db.MarkUsed(ctx, created.ID, 77), core.ErrInvalidTransition)
}

func TestArchivedExcludedFromActiveQueries(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	first, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)
	second, err := db.CreatePass(ctx, 10, "B456DE")
	require.NoError(t, err)

	require.NoError(t, db.ArchivePass(ctx, first.ID))

	count, err := db.CountActiveByUser(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	listed, err := db.ListByUser(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, second.ID, listed[0].ID)

	found, err := db.FindActiveByCar(ctx, "A123BC")
	require.NoError(t, err)
	require.Nil(t, found)

	// Archived records still show up in All.
	all, err := db.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestFindActiveByCar(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	created, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)

	found, err := db.FindActiveByCar(ctx, "A123BC")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)

	require.NoError(t, db.Cancel(ctx, created.ID))
	found, err = db.FindActiveByCar(ctx, "A123BC")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestPassesForArchiving(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	// Used 25 hours ago.
	stale, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)
	usedAt := time.Now().UTC().Add(-25 * time.Hour)
	stalePass, err := db.ByID(ctx, stale.ID)
	require.NoError(t, err)
	stalePass.Status = core.PassStatusUsed
	stalePass.UsedAt = &usedAt
	require.NoError(t, db.Update(ctx, stalePass))

	// Active created 8 days ago.
	aged, err := db.CreatePass(ctx, 11, "B456DE")
	require.NoError(t, err)
	agedPass, err := db.ByID(ctx, aged.ID)
	require.NoError(t, err)
	agedPass.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	_, err = db.DB.ExecContext(ctx, `UPDATE passes SET created_at = ? WHERE id = ?`,
		agedPass.CreatedAt.Unix(), aged.ID)
	require.NoError(t, err)

	// Fresh pass, ineligible.
	_, err = db.CreatePass(ctx, 12, "C789FG")
	require.NoError(t, err)

	eligible, err := db.PassesForArchiving(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 2)

	ids := []int64{eligible[0].ID, eligible[1].ID}
	require.Contains(t, ids, stale.ID)
	require.Contains(t, ids, aged.ID)
}

func TestUpdateAndDelete(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	created, err := db.CreatePass(ctx, 10, "A123BC")
	require.NoError(t, err)

	created.Archived = true
	require.NoError(t, db.Update(ctx, created))

	fetched, err := db.ByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, fetched.Archived)

	require.NoError(t, db.Delete(ctx, created.ID))
	require.ErrorIs(t, db.Delete(ctx, created.ID), core.ErrNotFound)

	missing := &core.Pass{ID: 9999, Status: core.PassStatusActive}
	require.ErrorIs(t, db.Update(ctx, missing), core.ErrNotFound)
}
