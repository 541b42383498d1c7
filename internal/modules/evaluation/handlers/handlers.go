// Package handlers provides HTTP handlers for deal evaluations.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aristath/dealeval/internal/domain"
	"github.com/aristath/dealeval/internal/modules/evaluation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles evaluation HTTP requests
type Handler struct {
	service *evaluation.Service
	log     zerolog.Logger
}

// NewHandler creates a new evaluation handler
func NewHandler(service *evaluation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "evaluation").Logger(),
	}
}

type startRequest struct {
	UserID string `json:"user_id"`
}

type processRequest struct {
	Answers map[string]any `json:"answers"`
}

// HandleStart handles POST /api/deals/{dealID}/evaluations
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	dealID := chi.URLParam(r, "dealID")

	var request startRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, created, err := h.service.Start(r.Context(), request.UserID, dealID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, rec)
}

// HandleProcessStep handles POST /api/deals/{dealID}/evaluations/{evaluationID}/steps
func (h *Handler) HandleProcessStep(w http.ResponseWriter, r *http.Request) {
	var request processRequest

	// An empty body means "no answers"
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	startTime := time.Now()
	resp, err := h.service.ProcessStep(r.Context(), evaluation.ProcessRequest{
		EvaluationID: chi.URLParam(r, "evaluationID"),
		DealID:       chi.URLParam(r, "dealID"),
		Answers:      request.Answers,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.log.Debug().
		Str("evaluation_id", resp.EvaluationID).
		Str("step", string(resp.StepResult.Step)).
		Bool("completed", resp.StepResult.Completed).
		Dur("elapsed", time.Since(startTime)).
		Msg("Evaluation step processed")

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/deals/{dealID}/evaluations/{evaluationID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "dealID"), chi.URLParam(r, "evaluationID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleList handles GET /api/deals/{dealID}/evaluations
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListByDeal(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []*evaluation.Record{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"evaluations": records,
		"count":       len(records),
	})
}

// HandleDelete handles DELETE /api/deals/{dealID}/evaluations/{evaluationID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "dealID"), chi.URLParam(r, "evaluationID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEvaluationNotFound), errors.Is(err, domain.ErrDealNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrDealMismatch),
		errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Evaluation request failed")
	}
	h.writeError(w, status, err.Error())
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
