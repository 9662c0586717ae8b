package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ClientAddress rewrites RemoteAddr from X-Forwarded-For and X-Real-IP when
// the service runs behind a trusted proxy. Otherwise the headers are left
// alone and the connection's peer address stays authoritative.
func ClientAddress(trustedProxy bool) func(http.Handler) http.Handler {
	if trustedProxy {
		return chimw.RealIP
	}
	return func(next http.Handler) http.Handler {
		return next
	}
}
