package contact

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the contact route behind the given limiter.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/api/contact", h.Submit)
}
