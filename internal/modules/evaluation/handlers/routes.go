package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers all evaluation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/deals/{dealID}/evaluations", func(r chi.Router) {
		// AI-assisted steps wait on the assessment provider
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/", h.HandleStart)
		r.Get("/", h.HandleList)

		r.Route("/{evaluationID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Post("/steps", h.HandleProcessStep)
		})
	})
}
