package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of the request's remote address. Behind a
// trusted proxy the router rewrites RemoteAddr from the forwarding headers
// before this runs; the headers themselves are never read here.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
