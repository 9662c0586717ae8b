package org

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/domain"
)

// ProfileResolver maps the authenticated caller to a profile.
type ProfileResolver interface {
	ResolveForIdentity(ctx context.Context, authUserID uuid.UUID, email string) (*domain.Profile, error)
}

// MembershipLookup finds the caller's organization.
type MembershipLookup interface {
	FirstForProfile(ctx context.Context, profileID uuid.UUID) (*domain.Membership, error)
}

// OrganizationLookup loads an organization.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
}

// SubscriptionLookup loads the billing mirror of an organization.
type SubscriptionLookup interface {
	GetByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error)
}

// Handler serves the caller's organization summary.
type Handler struct {
	logger        *slog.Logger
	profiles      ProfileResolver
	memberships   MembershipLookup
	organizations OrganizationLookup
	subscriptions SubscriptionLookup
}

// NewHandler creates a new organization handler.
func NewHandler(logger *slog.Logger, profiles ProfileResolver, memberships MembershipLookup, organizations OrganizationLookup, subscriptions SubscriptionLookup) *Handler {
	return &Handler{
		logger:        logger,
		profiles:      profiles,
		memberships:   memberships,
		organizations: organizations,
		subscriptions: subscriptions,
	}
}

// OrgResponse is what the dashboard needs to render plan and billing state.
// SubscriptionStatus is empty until the first billing event is mirrored.
type OrgResponse struct {
	OK                 bool    `json:"ok"`
	OrgID              string  `json:"orgId"`
	Name               string  `json:"name"`
	Subdomain          *string `json:"subdomain"`
	Role               string  `json:"role"`
	SetupComplete      bool    `json:"setupComplete"`
	Plan               string  `json:"plan"`
	SeatLimit          *int    `json:"seatLimit"`
	Status             string  `json:"status"`
	SubscriptionStatus string  `json:"subscriptionStatus,omitempty"`
	CanWrite           bool    `json:"canWrite"`
}

// Get returns the caller's first organization with its billing state.
// GET /api/org
// Requires authentication
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profiles.ResolveForIdentity(r.Context(), id.UserID, id.Email)
	if errors.Is(err, domain.ErrProfileNotFound) {
		httputil.Error(w, http.StatusNotFound, "no_membership")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve profile", "user_id", id.UserID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	m, err := h.memberships.FirstForProfile(r.Context(), profile.ID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		httputil.Error(w, http.StatusNotFound, "no_membership")
		return
	}
	if err != nil {
		h.logger.Error("failed to load membership", "profile_id", profile.ID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	org, err := h.organizations.GetByID(r.Context(), m.OrganizationID)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		httputil.Error(w, http.StatusNotFound, "no_membership")
		return
	}
	if err != nil {
		h.logger.Error("failed to load organization", "org_id", m.OrganizationID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	resp := OrgResponse{
		OK:            true,
		OrgID:         org.ID.String(),
		Name:          org.Name,
		Subdomain:     org.Subdomain,
		Role:          string(m.Role),
		SetupComplete: org.SetupComplete,
		Plan:          string(org.Plan),
		SeatLimit:     org.SeatLimit,
		Status:        string(org.Status),
	}

	sub, err := h.subscriptions.GetByOrganizationID(r.Context(), org.ID)
	switch {
	case err == nil:
		resp.SubscriptionStatus = string(sub.Status)
		resp.CanWrite = sub.AllowsWrites()
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		// Checkout completed but no subscription event is mirrored yet.
		resp.CanWrite = org.Status == domain.OrganizationStatusTrialing || org.Status == domain.OrganizationStatusActive
	default:
		h.logger.Error("failed to load subscription", "org_id", org.ID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}
