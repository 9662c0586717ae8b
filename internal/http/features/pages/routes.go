package pages

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the application shell pages.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/login", h.Login)
	r.Get("/setup", h.Setup)
	r.Get("/dashboard", h.Dashboard)
	r.Get("/dashboard/*", h.Dashboard)
}
