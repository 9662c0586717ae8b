package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/repository"
)

// Paths the route gate guards or redirects to.
const (
	LoginPath     = "/login"
	SetupPath     = "/setup"
	DashboardPath = "/dashboard"
)

// GateState is what the route gate knows about the caller.
type GateState int

const (
	GateUnauthenticated GateState = iota
	// GateNoMembership covers callers without any active organization.
	GateNoMembership
	GateSetupIncomplete
	GateSetupComplete
)

func (s GateState) String() string {
	switch s {
	case GateUnauthenticated:
		return "unauthenticated"
	case GateNoMembership:
		return "no_membership"
	case GateSetupIncomplete:
		return "setup_incomplete"
	case GateSetupComplete:
		return "setup_complete"
	}
	return "unknown"
}

// GateRedirect returns the path a request for path should be redirected
// to, or "" to let it through.
func GateRedirect(state GateState, path string) string {
	dashboard := underPath(path, DashboardPath)
	setup := underPath(path, SetupPath)
	if !dashboard && !setup {
		return ""
	}

	switch state {
	case GateUnauthenticated:
		return LoginPath
	case GateNoMembership, GateSetupIncomplete:
		if dashboard {
			return SetupPath
		}
	case GateSetupComplete:
		if setup {
			return DashboardPath
		}
	}
	return ""
}

// Gated reports whether path is subject to the route gate.
func Gated(path string) bool {
	return underPath(path, DashboardPath) || underPath(path, SetupPath)
}

func underPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// OnboardingLookup loads the caller's first organization membership.
type OnboardingLookup interface {
	OnboardingState(ctx context.Context, authUserID uuid.UUID, email string) (repository.OnboardingState, error)
}

// RouteGate redirects callers between login, setup and the dashboard
// depending on their onboarding progress. Must be used after Identity.
func RouteGate(lookup OnboardingLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Gated(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			state := GateUnauthenticated
			if id, ok := GetIdentity(r.Context()); ok {
				onboarding, err := lookup.OnboardingState(r.Context(), id.UserID, id.Email)
				if err != nil {
					logger.Error("route gate lookup failed",
						"user_id", id.UserID,
						"path", r.URL.Path,
						"error", err,
					)
					next.ServeHTTP(w, r)
					return
				}
				switch {
				case !onboarding.HasMembership:
					state = GateNoMembership
				case onboarding.SetupComplete:
					state = GateSetupComplete
				default:
					state = GateSetupIncomplete
				}
			}

			if target := GateRedirect(state, r.URL.Path); target != "" {
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
