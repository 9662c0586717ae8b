package middleware

import (
	"context"
	"net/http"

	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/auth"
)

type contextKey string

// IdentityKey is the context key for the authenticated caller.
const IdentityKey contextKey = "identity"

// TokenVerifier validates access tokens issued by the auth provider.
type TokenVerifier interface {
	ValidateAccessToken(token string) (*auth.Identity, error)
}

// Identity resolves the caller from the Authorization header, falling back
// to the access token cookie for browser requests. Requests without a valid
// token continue anonymously.
func Identity(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token, _ = httputil.GetAccessTokenFromCookie(r)
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.ValidateAccessToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity rejects anonymous requests. Must be used after Identity.
func RequireIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r.Context()); !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity extracts the caller from the request context.
func GetIdentity(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*auth.Identity)
	return id, ok && id != nil
}
