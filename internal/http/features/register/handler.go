package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/domain"
	"github.com/tendant/bizora/pkg/registration"
)

// Registrar runs the registration pipeline.
type Registrar interface {
	Register(ctx context.Context, raw []byte, remoteIP string) (*registration.Result, error)
}

// OutcomeRecorder counts registration outcomes.
type OutcomeRecorder interface {
	RecordRegistration(outcome string)
}

// Handler handles the public signup endpoint.
type Handler struct {
	logger    *slog.Logger
	registrar Registrar
	metrics   OutcomeRecorder
}

// NewHandler creates a new registration handler.
func NewHandler(logger *slog.Logger, registrar Registrar, metrics OutcomeRecorder) *Handler {
	return &Handler{logger: logger, registrar: registrar, metrics: metrics}
}

// RegisterResponse is returned for an accepted registration.
type RegisterResponse struct {
	OK             bool   `json:"ok"`
	RegistrationID string `json:"registrationId"`
	CheckoutURL    string `json:"checkoutUrl"`
}

// Register validates a signup form and starts checkout.
// POST /api/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		if httputil.IsBodyTooLarge(err) {
			h.metrics.RecordRegistration("payload_too_large")
			httputil.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := h.registrar.Register(r.Context(), raw, httputil.ClientIP(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordRegistration("ok")
	httputil.JSON(w, http.StatusOK, RegisterResponse{
		OK:             true,
		RegistrationID: result.RegistrationID.String(),
		CheckoutURL:    result.CheckoutURL,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *registration.ValidationError

	switch {
	case errors.As(err, &verr):
		h.metrics.RecordRegistration("validation_error")
		httputil.ErrorDetails(w, http.StatusUnprocessableEntity, "validation_error", verr.Fields)

	case errors.Is(err, domain.ErrDisposableEmail):
		h.metrics.RecordRegistration("disposable_email")
		httputil.ErrorMessage(w, http.StatusBadRequest, "disposable_email",
			"Gebruik een zakelijk of persoonlijk e-mailadres, geen wegwerpadres.")

	case errors.Is(err, domain.ErrCaptchaFailed):
		h.metrics.RecordRegistration("captcha_failed")
		httputil.ErrorMessage(w, http.StatusBadRequest, "captcha_failed",
			"De beveiligingscontrole is mislukt. Probeer het opnieuw.")

	case errors.Is(err, domain.ErrPlanNotConfigured):
		h.metrics.RecordRegistration("plan_not_configured")
		httputil.Error(w, http.StatusInternalServerError, "plan_not_configured")

	case errors.Is(err, registration.ErrStorage):
		h.metrics.RecordRegistration("db_error")
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)

	default:
		h.logger.Error("registration failed", "error", err)
		h.metrics.RecordRegistration("internal_error")
		httputil.InternalError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
