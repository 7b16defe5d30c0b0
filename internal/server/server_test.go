package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/archive"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/cache"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/passes"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/resilience"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/throttle"
	apperrors "github.com/merdocx/easy-pass-bot-sub000/internal/errors"
	"github.com/merdocx/easy-pass-bot-sub000/internal/server/handlers"
)

type stubRepo struct {
	archived []core.Pass
}

func (r *stubRepo) PassesForArchiving(ctx context.Context) ([]core.Pass, error) { return nil, nil }
func (r *stubRepo) ArchivePass(ctx context.Context, id int64) error             { return nil }
func (r *stubRepo) All(ctx context.Context) ([]core.Pass, error)                { return r.archived, nil }
func (r *stubRepo) Delete(ctx context.Context, id int64) error                  { return nil }
func (r *stubRepo) Update(ctx context.Context, pass *core.Pass) error           { return nil }

func (r *stubRepo) ByID(ctx context.Context, id int64) (*core.Pass, error) {
	for i := range r.archived {
		if r.archived[i].ID == id {
			return &r.archived[i], nil
		}
	}
	return nil, nil
}

func newTestServer(repo *stubRepo) *Server {
	ops := &handlers.Ops{
		Archivist: archive.New(repo, archive.Config{}, nil),
		Throttle:  throttle.New(throttle.DefaultConfig(), nil),
		Breakers:  resilience.NewManager(nil),
		Cache:     cache.New(cache.DefaultConfig(), nil),
	}
	return New("127.0.0.1", 0, ops, nil)
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServerThrottleEndpoints(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/throttle/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats throttle.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Equal(t, 0, stats.ActiveActors)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/throttle/42/reset", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerThrottleResetRejectsBadActor(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/throttle/abc/reset", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerBreakerEndpoint(t *testing.T) {
	srv := newTestServer(&stubRepo{})
	srv.ops.Breakers.Get("notifier", resilience.BreakerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/breakers", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Breakers []resilience.BreakerStats `json:"breakers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Breakers, 1)
	require.Equal(t, "notifier", body.Breakers[0].Name)
}

func TestServerArchiveEndpoints(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		archived: []core.Pass{
			{ID: 1, UserID: 7, CarNumber: "A123BC", Status: core.PassStatusUsed, CreatedAt: now, Archived: true},
		},
	}
	srv := newTestServer(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/archive/passes", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, 1, body.Count)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/archive/passes?limit=bogus", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/archive/stats", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

type passRepo struct {
	nextID int64
	byID   map[int64]*core.Pass
}

func newPassRepo() *passRepo {
	return &passRepo{nextID: 1, byID: map[int64]*core.Pass{}}
}

func (r *passRepo) CreatePass(ctx context.Context, userID int64, carNumber string) (*core.Pass, error) {
	pass := &core.Pass{ID: r.nextID, UserID: userID, CarNumber: carNumber, Status: core.PassStatusActive, CreatedAt: time.Now()}
	r.nextID++
	r.byID[pass.ID] = pass
	return pass, nil
}

func (r *passRepo) ByID(ctx context.Context, id int64) (*core.Pass, error) {
	return r.byID[id], nil
}

func (r *passRepo) MarkUsed(ctx context.Context, id int64, securityID int64) error {
	pass, ok := r.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	if pass.Status != core.PassStatusActive {
		return core.ErrInvalidTransition
	}
	now := time.Now()
	pass.Status = core.PassStatusUsed
	pass.UsedAt = &now
	pass.UsedByID = &securityID
	return nil
}

func (r *passRepo) Cancel(ctx context.Context, id int64) error {
	pass, ok := r.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	pass.Status = core.PassStatusCancelled
	return nil
}

func (r *passRepo) CountActiveByUser(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, pass := range r.byID {
		if pass.UserID == userID && pass.Status == core.PassStatusActive {
			count++
		}
	}
	return count, nil
}

func (r *passRepo) FindActiveByCar(ctx context.Context, carNumber string) (*core.Pass, error) {
	for _, pass := range r.byID {
		if pass.CarNumber == carNumber && pass.Status == core.PassStatusActive {
			return pass, nil
		}
	}
	return nil, nil
}

func (r *passRepo) ListByUser(ctx context.Context, userID int64) ([]core.Pass, error) {
	var out []core.Pass
	for _, pass := range r.byID {
		if pass.UserID == userID {
			out = append(out, *pass)
		}
	}
	return out, nil
}

func TestServerPassLifecycle(t *testing.T) {
	svc := &passes.Service{
		Repo:     newPassRepo(),
		Breakers: resilience.NewManager(nil),
		Executor: resilience.NewExecutor(nil),
	}
	srv := New("127.0.0.1", 0, nil, &handlers.Passes{Service: svc})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/passes", strings.NewReader(`{"user_id":7,"car_number":"A123BC"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created core.Pass
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.Equal(t, core.PassStatusActive, created.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/passes/lookup?car=A123BC", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/passes/1/use", strings.NewReader(`{"security_id":99}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// Using the same pass again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/passes/1/use", strings.NewReader(`{"security_id":99}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServerArchiveRestoreNotFound(t *testing.T) {
	srv := newTestServer(&stubRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/archive/passes/404/restore", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
