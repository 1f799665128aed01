package errsim

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the error-simulation routes behind the
// environment gate: outside allowed environments every route answers
// 403 without touching the store.
func RegisterRoutes(r chi.Router, h *Handler, gate func(http.Handler) http.Handler) {
	r.Route("/api/errors", func(r chi.Router) {
		r.Use(gate)
		r.Post("/simulate/{errorCode}", h.Simulate)
		r.Delete("/simulate/{errorCode}", h.Unsimulate)
		r.Get("/simulations", h.ListSimulations)
		r.Get("/codes", h.ListCodes)
		r.Get("/occurrences", h.ListOccurrences)
	})
}
