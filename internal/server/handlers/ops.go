package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/archive"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/cache"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/resilience"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/throttle"
	apperrors "github.com/merdocx/easy-pass-bot-sub000/internal/errors"
)

const defaultArchiveListLimit = 50

// Ops exposes the operational API: archive inspection, breaker and
// throttle state.
type Ops struct {
	Archivist *archive.Archivist
	Throttle  *throttle.Throttle
	Breakers  *resilience.Manager
	Cache     *cache.Cache
}

// ArchiveStats handles GET /api/v1/archive/stats
func (o *Ops) ArchiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := o.Archivist.Statistics(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ArchiveList handles GET /api/v1/archive/passes
func (o *Ops) ArchiveList(w http.ResponseWriter, r *http.Request) {
	limit := defaultArchiveListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, r, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	passes, err := o.Archivist.ArchivedPasses(r.Context(), limit)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}
	if passes == nil {
		passes = []core.Pass{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"passes": passes,
		"count":  len(passes),
	})
}

// ArchiveRestore handles POST /api/v1/archive/passes/{id}/restore
func (o *Ops) ArchiveRestore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("pass id must be an integer"))
		return
	}

	if err := o.Archivist.Restore(r.Context(), id); err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restored": id,
	})
}

// BreakerStats handles GET /api/v1/breakers
func (o *Ops) BreakerStats(w http.ResponseWriter, r *http.Request) {
	stats := o.Breakers.Stats()
	if stats == nil {
		stats = []resilience.BreakerStats{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"breakers": stats,
	})
}

// ThrottleStats handles GET /api/v1/throttle/stats
func (o *Ops) ThrottleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, o.Throttle.Stats())
}

// ThrottleReset handles POST /api/v1/throttle/{actor}/reset
func (o *Ops) ThrottleReset(w http.ResponseWriter, r *http.Request) {
	actor, err := strconv.ParseInt(chi.URLParam(r, "actor"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("actor id must be an integer"))
		return
	}

	o.Throttle.Reset(actor)

	writeJSON(w, http.StatusOK, map[string]any{
		"reset": actor,
	})
}

// CacheStats handles GET /api/v1/cache/stats
func (o *Ops) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, o.Cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
