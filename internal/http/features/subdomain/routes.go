package subdomain

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/bizora/internal/http/middleware"
)

// RegisterRoutes registers the subdomain routes. claimLimit throttles claims
// per caller.
func (h *Handler) RegisterRoutes(r chi.Router, claimLimit func(http.Handler) http.Handler) {
	r.Get("/api/org/subdomain", h.Check)
	r.With(middleware.RequireIdentity(), claimLimit).Post("/api/org/subdomain", h.Claim)
}
