package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/bizora/internal/config"
	"github.com/tendant/bizora/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// KeyFunc defaults to the client IP.
	KeyFunc httprate.KeyFunc
	// Counter defaults to httprate's in-memory counter.
	Counter httprate.LimitCounter
	Logger  *slog.Logger
}

// RateLimit creates a rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByClientIP
	}

	opts := []httprate.Option{
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", httputil.ClientIP(r),
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "too_many_requests")
		}),
	}
	if cfg.Counter != nil {
		opts = append(opts, httprate.WithLimitCounter(cfg.Counter))
	}

	return httprate.Limit(cfg.Requests, cfg.Window, opts...)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// KeyByClientIP keys requests by the client address.
func KeyByClientIP(r *http.Request) (string, error) {
	return "ip:" + httputil.ClientIP(r), nil
}

// KeyByIdentity keys requests by the authenticated caller, falling back to
// the client address for anonymous requests.
func KeyByIdentity(r *http.Request) (string, error) {
	if id, ok := GetIdentity(r.Context()); ok {
		return "user:" + id.UserID.String(), nil
	}
	return KeyByClientIP(r)
}

// CounterFactory returns a fresh counter for the named limiter.
type CounterFactory func(scope string) httprate.LimitCounter

// CreateRateLimiters creates rate limiting middleware functions based on
// configuration. counters may be nil for in-memory counting.
func CreateRateLimiters(cfg config.RateLimitConfig, counters CounterFactory, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			"register": noOp,
			"claim":    noOp,
			"contact":  noOp,
		}
	}

	counter := func(scope string) httprate.LimitCounter {
		if counters == nil {
			return nil
		}
		return counters(scope)
	}

	return map[string]func(http.Handler) http.Handler{
		"register": RateLimit(RateLimitConfig{
			Requests: cfg.RegisterRequests,
			Window:   cfg.RegisterWindow,
			Counter:  counter("register"),
			Logger:   logger,
		}),
		"claim": RateLimit(RateLimitConfig{
			Requests: cfg.ClaimRequests,
			Window:   cfg.ClaimWindow,
			KeyFunc:  KeyByIdentity,
			Counter:  counter("claim"),
			Logger:   logger,
		}),
		"contact": RateLimit(RateLimitConfig{
			Requests: cfg.ContactRequests,
			Window:   cfg.ContactWindow,
			Counter:  counter("contact"),
			Logger:   logger,
		}),
	}
}
