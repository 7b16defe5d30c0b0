package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/merdocx/easy-pass-bot-sub000/internal/core"
	"github.com/merdocx/easy-pass-bot-sub000/internal/core/passes"
	apperrors "github.com/merdocx/easy-pass-bot-sub000/internal/errors"
)

// Passes exposes the pass lifecycle over HTTP.
type Passes struct {
	Service *passes.Service
}

type createPassRequest struct {
	UserID    int64  `json:"user_id"`
	CarNumber string `json:"car_number"`
}

type usePassRequest struct {
	SecurityID int64 `json:"security_id"`
}

type cancelPassRequest struct {
	ActorID int64 `json:"actor_id"`
}

// Create handles POST /api/v1/passes
func (p *Passes) Create(w http.ResponseWriter, r *http.Request) {
	var req createPassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be JSON with user_id and car_number"))
		return
	}

	req.CarNumber = strings.TrimSpace(req.CarNumber)
	if req.UserID <= 0 || req.CarNumber == "" {
		respondWithError(w, r, apperrors.NewValidationError("user_id and car_number are required"))
		return
	}

	pass, err := p.Service.Create(r.Context(), req.UserID, req.CarNumber)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusCreated, pass)
}

// List handles GET /api/v1/passes?user_id=N
func (p *Passes) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("user_id must be a positive integer"))
		return
	}

	listed, err := p.Service.UserPasses(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}
	if listed == nil {
		listed = []core.Pass{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"passes": listed,
		"count":  len(listed),
	})
}

// Lookup handles GET /api/v1/passes/lookup?car=X
func (p *Passes) Lookup(w http.ResponseWriter, r *http.Request) {
	car := strings.TrimSpace(r.URL.Query().Get("car"))
	if car == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("car query parameter is required"))
		return
	}

	pass, err := p.Service.FindActiveByCar(r.Context(), car)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}
	if pass == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("no active pass for this car"))
		return
	}

	writeJSON(w, http.StatusOK, pass)
}

// Use handles POST /api/v1/passes/{id}/use
func (p *Passes) Use(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("pass id must be an integer"))
		return
	}

	var req usePassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SecurityID <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be JSON with security_id"))
		return
	}

	if err := p.Service.MarkUsed(r.Context(), id, req.SecurityID); err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"used": id})
}

// Cancel handles POST /api/v1/passes/{id}/cancel
func (p *Passes) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("pass id must be an integer"))
		return
	}

	var req cancelPassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be JSON with actor_id"))
		return
	}

	if err := p.Service.Cancel(r.Context(), id, req.ActorID); err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cancelled": id})
}
