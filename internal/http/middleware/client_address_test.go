package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/bizora/internal/httputil"
)

func TestClientAddress(t *testing.T) {
	tests := []struct {
		name      string
		trusted   bool
		realIP    string
		forwarded string
		want      string
	}{
		{name: "untrusted ignores x-forwarded-for", forwarded: "203.0.113.9", want: "192.0.2.1"},
		{name: "untrusted ignores x-real-ip", realIP: "203.0.113.7", want: "192.0.2.1"},
		{name: "trusted uses x-real-ip", trusted: true, realIP: "203.0.113.7", want: "203.0.113.7"},
		{name: "trusted uses first forwarded entry", trusted: true, forwarded: "203.0.113.9, 10.0.0.1", want: "203.0.113.9"},
		{name: "trusted without headers keeps peer", trusted: true, want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := ClientAddress(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = httputil.ClientIP(r)
			}))

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "192.0.2.1:51234"
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("client address = %q, want %q", got, tt.want)
			}
		})
	}
}
