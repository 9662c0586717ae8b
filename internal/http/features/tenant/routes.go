package tenant

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers tenant routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tenant", h.Current)
}
