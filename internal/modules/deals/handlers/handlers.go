// Package handlers provides HTTP handlers for deals.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// DealRepository is the subset of deals.Repository the handlers use
type DealRepository interface {
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)
	Upsert(ctx context.Context, deal *domain.Deal) error
	ListByUser(ctx context.Context, userID string) ([]domain.Deal, error)
}

// Handler handles deal HTTP requests
type Handler struct {
	repo DealRepository
	log  zerolog.Logger
}

// NewHandler creates a new deal handler
func NewHandler(repo DealRepository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "deals").Logger(),
	}
}

// RegisterRoutes registers deal routes. Flat routes leave /api/deals/{dealID}/evaluations
// free for the evaluation handlers.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/deals", h.HandleUpsert)
	r.Get("/api/deals", h.HandleList)
	r.Get("/api/deals/{dealID}", h.HandleGet)
}

// HandleUpsert handles POST /api/deals
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var deal domain.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.repo.Upsert(r.Context(), &deal); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("deal_id", deal.ID).Msg("Failed to store deal")
		h.writeError(w, http.StatusInternalServerError, "Failed to store deal")
		return
	}

	stored, err := h.repo.GetDeal(r.Context(), deal.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, stored)
}

// HandleGet handles GET /api/deals/{dealID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	deal, err := h.repo.GetDeal(r.Context(), chi.URLParam(r, "dealID"))
	if errors.Is(err, domain.ErrDealNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}

// HandleList handles GET /api/deals?user_id=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	deals, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deals == nil {
		deals = []domain.Deal{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deals": deals,
		"count": len(deals),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
