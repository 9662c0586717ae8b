package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/bizora/internal/config"
	"github.com/tendant/bizora/internal/http/features/contact"
	"github.com/tendant/bizora/internal/http/features/org"
	"github.com/tendant/bizora/internal/http/features/pages"
	"github.com/tendant/bizora/internal/http/features/register"
	"github.com/tendant/bizora/internal/http/features/session"
	"github.com/tendant/bizora/internal/http/features/setup"
	"github.com/tendant/bizora/internal/http/features/subdomain"
	"github.com/tendant/bizora/internal/http/features/tenant"
	"github.com/tendant/bizora/internal/http/features/webhook"
	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/internal/metrics"
	"github.com/tendant/bizora/pkg/repository"
)

const healthTimeout = 2 * time.Second

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Store           *repository.Store
	Verifier        middleware.TokenVerifier
	Registrar       register.Registrar
	Registry        subdomain.Registry
	EventParser     webhook.EventParser
	Reconciler      webhook.EventHandler
	Mailer          contact.Mailer // nil when SMTP is not configured
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	RateCounters    middleware.CounterFactory // nil for in-memory counting
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	MarketingHosts  []string
	CookieSecure    bool
	TrustedProxy    bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.ClientAddress(cfg.TrustedProxy))
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
	r.Use(middleware.Identity(cfg.Verifier))
	r.Use(middleware.RouteGate(cfg.Store.Organizations, cfg.Logger))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := cfg.Store.Ping(ctx); err != nil {
			cfg.Logger.Warn("health check failed", "error", err)
			httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.RateCounters, cfg.Logger)

	// Signup and billing
	register.NewHandler(cfg.Logger, cfg.Registrar, cfg.Metrics).
		RegisterRoutes(r, rateLimiters["register"])
	webhook.NewHandler(cfg.Logger, cfg.EventParser, cfg.Reconciler, cfg.Metrics).
		RegisterRoutes(r)

	// Onboarding
	subdomain.NewHandler(cfg.Logger, cfg.Registry, cfg.Store.Profiles, cfg.Metrics).
		RegisterRoutes(r, rateLimiters["claim"])
	setup.NewHandler(cfg.Logger, cfg.Store.Profiles, cfg.Store.Memberships, cfg.Store.Organizations).
		RegisterRoutes(r)
	org.NewHandler(cfg.Logger, cfg.Store.Profiles, cfg.Store.Memberships, cfg.Store.Organizations, cfg.Store.Subscriptions).
		RegisterRoutes(r)

	// Public site
	contact.NewHandler(cfg.Logger, cfg.Store.ContactMessages, cfg.Mailer).
		RegisterRoutes(r, rateLimiters["contact"])
	tenant.NewHandler(cfg.Logger, cfg.Store.Organizations, cfg.MarketingHosts).
		RegisterRoutes(r)

	// Browser session
	session.NewHandler(cfg.Logger, cfg.Verifier, httputil.DefaultCookieConfig(cfg.CookieSecure)).
		RegisterRoutes(r)

	pagesHandler, err := pages.NewHandler(cfg.Logger)
	if err != nil {
		cfg.Logger.Error("failed to load page templates", "error", err)
	} else {
		pagesHandler.RegisterRoutes(r)
	}

	return r
}
