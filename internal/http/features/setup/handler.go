package setup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/domain"
)

// locales maps the wizard's language choice to a stored locale.
var locales = map[string]string{
	"nl": "nl-NL",
	"en": "en-GB",
}

// ProfileResolver maps the authenticated caller to a profile.
type ProfileResolver interface {
	ResolveForIdentity(ctx context.Context, authUserID uuid.UUID, email string) (*domain.Profile, error)
}

// AdminChecker reports whether a profile administers an organization.
type AdminChecker interface {
	IsAdmin(ctx context.Context, orgID, profileID uuid.UUID) (bool, error)
}

// OrganizationStore persists wizard changes.
type OrganizationStore interface {
	UpdateSettings(ctx context.Context, id uuid.UUID, s domain.OrganizationSettings) (*domain.Organization, error)
	CompleteSetup(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
}

// Handler handles the onboarding wizard endpoints.
type Handler struct {
	logger        *slog.Logger
	profiles      ProfileResolver
	memberships   AdminChecker
	organizations OrganizationStore
	validate      *validator.Validate
}

// NewHandler creates a new setup handler.
func NewHandler(logger *slog.Logger, profiles ProfileResolver, memberships AdminChecker, organizations OrganizationStore) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Handler{
		logger:        logger,
		profiles:      profiles,
		memberships:   memberships,
		organizations: organizations,
		validate:      v,
	}
}

// SettingsRequest carries a partial settings update. Omitted fields are
// left unchanged.
type SettingsRequest struct {
	OrgID                string  `json:"orgId" validate:"required,uuid"`
	CompanyType          *string `json:"companyType" validate:"omitempty,oneof=zzp kleinbedrijf mkb anders"`
	AccountingBasis      *string `json:"accountingBasis" validate:"omitempty,oneof=cash accrual"`
	FiscalYearStartMonth *int    `json:"fiscalYearStartMonth" validate:"omitempty,min=1,max=12"`
	Language             *string `json:"language" validate:"omitempty,oneof=nl en"`
	Currency             *string `json:"currency" validate:"omitempty,oneof=EUR"`
	LogoURL              *string `json:"logoUrl" validate:"omitempty,url"`
	AccentColor          *string `json:"accentColor" validate:"omitempty,hexcolor"`
	VATID                *string `json:"vatId" validate:"omitempty,max=32"`
}

// CompleteRequest names the organization to finish.
type CompleteRequest struct {
	OrgID string `json:"orgId"`
}

// SettingsResponse echoes the stored wizard state.
type SettingsResponse struct {
	OK            bool   `json:"ok"`
	OrgID         string `json:"orgId"`
	SetupComplete bool   `json:"setupComplete"`
}

// UpdateSettings saves wizard preferences.
// PATCH /api/org/settings
// Requires authentication and the admin role
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			httputil.ErrorDetails(w, http.StatusUnprocessableEntity, "validation_error", fields)
			return
		}
		httputil.InternalError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	orgID := uuid.MustParse(req.OrgID)
	if !h.authorize(w, r, orgID) {
		return
	}

	org, err := h.organizations.UpdateSettings(r.Context(), orgID, req.settings())
	if err != nil {
		h.writeStoreError(w, orgID, err)
		return
	}

	httputil.JSON(w, http.StatusOK, SettingsResponse{OK: true, OrgID: org.ID.String(), SetupComplete: org.SetupComplete})
}

// CompleteSetup marks onboarding as finished.
// POST /api/org/setup/complete
// Requires authentication and the admin role
func (h *Handler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}
	orgID, err := uuid.Parse(strings.TrimSpace(req.OrgID))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "missing_params")
		return
	}
	if !h.authorize(w, r, orgID) {
		return
	}

	org, err := h.organizations.CompleteSetup(r.Context(), orgID)
	if errors.Is(err, domain.ErrSubdomainRequired) {
		httputil.ErrorMessage(w, http.StatusConflict, "subdomain_required", "Kies eerst een subdomein.")
		return
	}
	if err != nil {
		h.writeStoreError(w, orgID, err)
		return
	}

	h.logger.Info("organization setup completed", "org_id", orgID)
	httputil.JSON(w, http.StatusOK, SettingsResponse{OK: true, OrgID: org.ID.String(), SetupComplete: org.SetupComplete})
}

// authorize writes an error response and returns false unless the caller
// administers orgID.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) bool {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return false
	}

	profile, err := h.profiles.ResolveForIdentity(r.Context(), id.UserID, id.Email)
	if errors.Is(err, domain.ErrProfileNotFound) {
		httputil.Error(w, http.StatusForbidden, "forbidden")
		return false
	}
	if err != nil {
		h.logger.Error("failed to resolve profile", "user_id", id.UserID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return false
	}

	admin, err := h.memberships.IsAdmin(r.Context(), orgID, profile.ID)
	if err != nil {
		h.logger.Error("failed to check admin role", "org_id", orgID, "profile_id", profile.ID, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return false
	}
	if !admin {
		httputil.Error(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, orgID uuid.UUID, err error) {
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		httputil.Error(w, http.StatusNotFound, "not_found")
		return
	}
	h.logger.Error("failed to update organization", "org_id", orgID, "error", err)
	httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
}

func (req *SettingsRequest) settings() domain.OrganizationSettings {
	s := domain.OrganizationSettings{
		CompanyType:          req.CompanyType,
		FiscalYearStartMonth: req.FiscalYearStartMonth,
		Currency:             req.Currency,
		LogoURL:              req.LogoURL,
		AccentColor:          req.AccentColor,
		VATID:                req.VATID,
	}
	if req.AccountingBasis != nil {
		basis := domain.AccountingBasis(*req.AccountingBasis)
		s.AccountingBasis = &basis
	}
	if req.Language != nil {
		locale := locales[*req.Language]
		s.Locale = &locale
	}
	return s
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if httputil.IsBodyTooLarge(err) {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}
	httputil.Error(w, http.StatusBadRequest, "invalid_request")
}
