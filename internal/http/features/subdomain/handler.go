package subdomain

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/domain"
	"github.com/tendant/bizora/pkg/subdomain"
)

// Registry checks and claims subdomains.
type Registry interface {
	CheckAvailability(ctx context.Context, candidate string) (subdomain.Availability, error)
	Claim(ctx context.Context, orgID, profileID uuid.UUID, candidate string) (*subdomain.ClaimResult, error)
}

// ProfileResolver maps the authenticated caller to a profile.
type ProfileResolver interface {
	ResolveForIdentity(ctx context.Context, authUserID uuid.UUID, email string) (*domain.Profile, error)
}

// ClaimRecorder counts claim outcomes.
type ClaimRecorder interface {
	RecordClaim(outcome string)
}

// Handler handles subdomain endpoints.
type Handler struct {
	logger   *slog.Logger
	registry Registry
	profiles ProfileResolver
	metrics  ClaimRecorder
}

// NewHandler creates a new subdomain handler.
func NewHandler(logger *slog.Logger, registry Registry, profiles ProfileResolver, metrics ClaimRecorder) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		profiles: profiles,
		metrics:  metrics,
	}
}

// CheckResponse is the availability answer.
type CheckResponse struct {
	OK        bool   `json:"ok"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ClaimRequest represents a subdomain claim.
type ClaimRequest struct {
	OrgID     string `json:"orgId"`
	Subdomain string `json:"subdomain"`
}

// ClaimResponse is the claim answer. Rejections that the caller can fix by
// choosing another name are reported with ok=false and status 200.
type ClaimResponse struct {
	OK        bool   `json:"ok"`
	Subdomain string `json:"subdomain,omitempty"`
	Error     string `json:"error,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Check reports whether a candidate subdomain is available.
// GET /api/org/subdomain?candidate=
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	candidate := strings.TrimSpace(r.URL.Query().Get("candidate"))
	if candidate == "" {
		httputil.Error(w, http.StatusBadRequest, "missing_candidate")
		return
	}

	result, err := h.registry.CheckAvailability(r.Context(), candidate)
	if err != nil {
		h.logger.Error("subdomain availability check failed", "candidate", candidate, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	httputil.JSON(w, http.StatusOK, CheckResponse{
		OK:        true,
		Available: result.Available,
		Reason:    string(result.Reason),
	})
}

// Claim assigns a subdomain to the caller's organization.
// POST /api/org/subdomain
// Requires authentication
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if httputil.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		h.reject(w, http.StatusBadRequest, "missing_params")
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(req.OrgID))
	if err != nil || strings.TrimSpace(req.Subdomain) == "" {
		h.reject(w, http.StatusBadRequest, "missing_params")
		return
	}

	profile, err := h.profiles.ResolveForIdentity(r.Context(), id.UserID, id.Email)
	if errors.Is(err, domain.ErrProfileNotFound) {
		h.reject(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve profile", "user_id", id.UserID, "error", err)
		h.metrics.RecordClaim("error")
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	result, err := h.registry.Claim(r.Context(), orgID, profile.ID, req.Subdomain)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidSubdomain):
		h.reject(w, http.StatusBadRequest, string(subdomain.ReasonInvalidFormat))
		return
	case errors.Is(err, domain.ErrReservedSubdomain):
		h.reject(w, http.StatusOK, string(subdomain.ReasonReserved))
		return
	case errors.Is(err, domain.ErrSubdomainTaken):
		h.reject(w, http.StatusOK, string(subdomain.ReasonTaken))
		return
	case errors.Is(err, domain.ErrSubdomainLocked):
		h.reject(w, http.StatusConflict, "subdomain_locked")
		return
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrOrganizationNotFound):
		h.reject(w, http.StatusForbidden, "forbidden")
		return
	default:
		h.logger.Error("subdomain claim failed", "org_id", orgID, "subdomain", req.Subdomain, "error", err)
		h.metrics.RecordClaim("error")
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	outcome := "ok"
	if result.Warning != "" {
		outcome = "ok_with_warning"
	}
	h.metrics.RecordClaim(outcome)
	httputil.JSON(w, http.StatusOK, ClaimResponse{
		OK:        true,
		Subdomain: result.Subdomain,
		Warning:   result.Warning,
	})
}

func (h *Handler) reject(w http.ResponseWriter, status int, code string) {
	h.metrics.RecordClaim(code)
	httputil.JSON(w, status, ClaimResponse{Error: code})
}
