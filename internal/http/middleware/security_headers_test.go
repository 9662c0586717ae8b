package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/bizora/internal/config"
)

func serveHeaders(cfg config.SecurityHeadersConfig) http.Header {
	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	return w.Header()
}

func TestSecurityHeaders(t *testing.T) {
	cfg := config.SecurityHeadersConfig{
		Enabled:            true,
		CSP:                "default-src 'self'",
		HSTSMaxAge:         31536000,
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		PermissionsPolicy:  "geolocation=()",
	}

	got := serveHeaders(cfg)

	want := map[string]string{
		"Content-Security-Policy":   cfg.CSP,
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           cfg.FrameOptions,
		"X-Content-Type-Options":    cfg.ContentTypeOptions,
		"Referrer-Policy":           cfg.ReferrerPolicy,
		"Permissions-Policy":        cfg.PermissionsPolicy,
	}
	for name, value := range want {
		if got.Get(name) != value {
			t.Errorf("%s = %q, want %q", name, got.Get(name), value)
		}
	}
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	got := serveHeaders(config.SecurityHeadersConfig{
		Enabled: false,
		CSP:     "default-src 'self'",
	})

	if v := got.Get("Content-Security-Policy"); v != "" {
		t.Errorf("CSP header should not be set when disabled, got %v", v)
	}
}

func TestSecurityHeaders_EmptyValues(t *testing.T) {
	got := serveHeaders(config.SecurityHeadersConfig{
		Enabled:      true,
		FrameOptions: "SAMEORIGIN",
	})

	if v := got.Get("Content-Security-Policy"); v != "" {
		t.Errorf("CSP header should not be set when empty, got %v", v)
	}
	if v := got.Get("Strict-Transport-Security"); v != "" {
		t.Errorf("HSTS header should not be set when max age is 0, got %v", v)
	}
	if v := got.Get("X-Frame-Options"); v != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q, want SAMEORIGIN", v)
	}
}
