package session

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/callback", h.Callback)
}
