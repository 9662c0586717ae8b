package org

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/bizora/internal/http/middleware"
)

// RegisterRoutes registers the organization summary route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireIdentity()).Get("/api/org", h.Get)
}
