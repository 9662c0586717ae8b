package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/reconcile"
)

// SignatureHeader carries the provider's HMAC signature.
const SignatureHeader = "Stripe-Signature"

// EventParser verifies and decodes a raw webhook delivery.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*billing.Event, error)
}

// EventHandler applies a verified event.
type EventHandler interface {
	Handle(ctx context.Context, ev *billing.Event) (reconcile.Outcome, error)
}

// EventRecorder counts processed webhook events.
type EventRecorder interface {
	RecordWebhookEvent(eventType, outcome string, start time.Time)
}

// Handler receives billing provider webhooks.
type Handler struct {
	logger  *slog.Logger
	parser  EventParser
	handler EventHandler
	metrics EventRecorder
}

// NewHandler creates a new webhook handler.
func NewHandler(logger *slog.Logger, parser EventParser, handler EventHandler, metrics EventRecorder) *Handler {
	return &Handler{logger: logger, parser: parser, handler: handler, metrics: metrics}
}

// Receive verifies a delivery and reconciles it.
// POST /api/stripe/webhook
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		if httputil.IsBodyTooLarge(err) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	ev, err := h.parser.ParseEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			h.logger.Warn("webhook signature rejected", "error", err)
			h.metrics.RecordWebhookEvent("unknown", "invalid_signature", start)
			httputil.Error(w, http.StatusBadRequest, "invalid_signature")
			return
		}
		h.logger.Error("webhook decode failed", "error", err)
		h.metrics.RecordWebhookEvent("unknown", "error", start)
		httputil.InternalError(w, http.StatusInternalServerError, "handler_error", err)
		return
	}

	outcome, err := h.handler.Handle(r.Context(), ev)
	if err != nil {
		h.logger.Error("webhook handling failed", "event_id", ev.ID, "event_type", ev.Type, "error", err)
		h.metrics.RecordWebhookEvent(ev.Type, "error", start)
		httputil.InternalError(w, http.StatusInternalServerError, "handler_error", err)
		return
	}

	h.metrics.RecordWebhookEvent(ev.Type, string(outcome), start)
	httputil.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
