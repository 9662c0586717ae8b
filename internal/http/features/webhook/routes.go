package webhook

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the webhook route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/stripe/webhook", h.Receive)
}
