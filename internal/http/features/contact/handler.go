package contact

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/internal/notification"
	"github.com/tendant/bizora/pkg/auth"
	"github.com/tendant/bizora/pkg/repository"
)

const (
	requiredFieldsMessage = "Naam, e-mail en bericht zijn verplicht."

	maxLineLength    = 200
	maxMessageLength = 5000
)

// MessageStore persists contact form submissions.
type MessageStore interface {
	Create(ctx context.Context, msg *repository.ContactMessage) error
}

// Mailer forwards submissions to the support inbox.
type Mailer interface {
	SendContactMessage(ctx context.Context, m notification.ContactMessage) error
}

// Handler handles the public contact form.
type Handler struct {
	logger *slog.Logger
	store  MessageStore
	mailer Mailer
}

// NewHandler creates a new contact handler. mailer may be nil when no
// SMTP server is configured.
func NewHandler(logger *slog.Logger, store MessageStore, mailer Mailer) *Handler {
	return &Handler{logger: logger, store: store, mailer: mailer}
}

// ContactRequest is the contact form body.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Submit accepts a contact form submission. Storage and mail failures are
// logged but never surface to the visitor.
// POST /api/contact
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && httputil.IsBodyTooLarge(err) {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "payload_too_large")
		return
	}

	name := auth.CleanLine(req.Name, maxLineLength)
	email := auth.NormalizeEmail(req.Email)
	subject := auth.CleanLine(req.Subject, maxLineLength)
	message := auth.CleanText(req.Message, maxMessageLength)

	if name == "" || email == "" || message == "" {
		httputil.ErrorMessage(w, http.StatusBadRequest, "missing_fields", requiredFieldsMessage)
		return
	}

	msg := &repository.ContactMessage{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Message:   message,
		Meta:      map[string]string{"ua": r.UserAgent()},
		CreatedAt: time.Now().UTC(),
	}
	if subject != "" {
		msg.Subject = &subject
	}

	if err := h.store.Create(r.Context(), msg); err != nil {
		h.logger.Error("failed to store contact message", "error", err)
	}

	if h.mailer != nil {
		err := h.mailer.SendContactMessage(r.Context(), notification.ContactMessage{
			Name:    name,
			Email:   email,
			Subject: subject,
			Message: message,
		})
		if err != nil {
			h.logger.Error("failed to forward contact message", "error", err)
		}
	}

	h.logger.Info("contact message received", "message_id", msg.ID, "email", email)
	httputil.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
