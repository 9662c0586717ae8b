package setup

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/bizora/internal/http/middleware"
)

// RegisterRoutes registers the setup wizard routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity())
		r.Patch("/api/org/settings", h.UpdateSettings)
		r.Post("/api/org/setup/complete", h.CompleteSetup)
	})
}
