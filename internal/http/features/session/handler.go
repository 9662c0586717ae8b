package session

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
)

// Auth state change events sent by the browser client.
const (
	EventSignedIn       = "SIGNED_IN"
	EventTokenRefreshed = "TOKEN_REFRESHED"
	EventSignedOut      = "SIGNED_OUT"
)

const (
	defaultAccessTTL = time.Hour
	refreshTTL       = 30 * 24 * time.Hour
)

// Handler mirrors the browser's auth session into HttpOnly cookies so that
// server-side route gating can see it.
type Handler struct {
	logger       *slog.Logger
	verifier     middleware.TokenVerifier
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, verifier middleware.TokenVerifier, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		verifier:     verifier,
		cookieConfig: cookieConfig,
	}
}

// CallbackRequest is an auth state change.
type CallbackRequest struct {
	Event   string       `json:"event"`
	Session *SessionData `json:"session"`
}

// SessionData is the subset of the provider session kept in cookies.
type SessionData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Callback stores or clears the session cookies.
// POST /auth/callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Unparseable bodies are treated as an unknown event.
		httputil.JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	switch req.Event {
	case EventSignedIn, EventTokenRefreshed:
		if req.Session == nil || req.Session.AccessToken == "" || req.Session.RefreshToken == "" {
			break
		}
		id, err := h.verifier.ValidateAccessToken(req.Session.AccessToken)
		if err != nil {
			h.logger.Warn("rejected session callback", "event", req.Event, "error", err)
			httputil.Error(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		accessTTL := defaultAccessTTL
		if req.Session.ExpiresIn > 0 {
			accessTTL = time.Duration(req.Session.ExpiresIn) * time.Second
		}
		httputil.SetAuthCookies(w, req.Session.AccessToken, req.Session.RefreshToken, accessTTL, refreshTTL, h.cookieConfig)
		h.logger.Debug("session cookies set", "event", req.Event, "user_id", id.UserID)

	case EventSignedOut:
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
