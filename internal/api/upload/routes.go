package upload

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers upload routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/api/uploads", func(r chi.Router) {
		r.Get("/config", h.Config)
		r.Get("/limits", h.Limits)
		r.Get("/status/{fileId}", h.Status)
		r.Post("/{uploadType}", h.Upload)
	})
}
