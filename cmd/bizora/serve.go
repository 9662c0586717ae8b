package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/bizora/internal/config"
	httpserver "github.com/tendant/bizora/internal/http"
	"github.com/tendant/bizora/internal/http/features/contact"
	"github.com/tendant/bizora/internal/http/middleware"
	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/internal/metrics"
	"github.com/tendant/bizora/internal/notification"
	"github.com/tendant/bizora/pkg/auth"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/captcha"
	"github.com/tendant/bizora/pkg/reconcile"
	"github.com/tendant/bizora/pkg/registration"
	"github.com/tendant/bizora/pkg/repository"
	"github.com/tendant/bizora/pkg/subdomain"
)

const (
	pruneInterval        = time.Hour
	webhookRetentionDays = 90
)

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"Graceful shutdown timeout." default:"30s" env:"SHUTDOWN_TIMEOUT"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	logger := globals.Logger

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	httputil.SetDebugErrors(cfg.DebugErrors)

	// Connect to database
	db, err := repository.NewDB(repository.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db, logger); err != nil {
			return err
		}
	}

	store := repository.NewStore(db)

	// Initialize services
	prices := billing.NewPriceTable(cfg.StripePrices)
	if unpriced := prices.Unpriced(); len(unpriced) > 0 {
		logger.Warn("plans without a configured price cannot be purchased", "plans", unpriced)
	}
	stripeClient := billing.NewStripeClient(billing.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Prices:        prices,
		TrialDays:     int64(cfg.TrialDays),
	}, logger)

	if !cfg.HasCaptcha() {
		logger.Warn("HCAPTCHA_SECRET is not set; registrations will be rejected")
	}
	captchaClient := captcha.NewClient(captcha.Config{Secret: cfg.HCaptchaSecret})

	registrationService := registration.NewService(
		store.Registrations,
		captchaClient,
		stripeClient,
		stripeClient.Prices(),
		cfg.AppURL,
		logger,
	)
	subdomains := subdomain.NewRegistry(store.Organizations, store.Memberships, stripeClient, logger)

	// Initialize email service if configured
	var (
		mailer   contact.Mailer
		notifier reconcile.Notifier
	)
	if cfg.HasSMTP() {
		emailService := notification.NewEmailService(notification.EmailConfig{
			Host:         cfg.SMTPHost,
			Port:         cfg.SMTPPort,
			User:         cfg.SMTPUser,
			Password:     cfg.SMTPPassword,
			From:         cfg.SMTPFrom,
			FromName:     cfg.SMTPFromName,
			ContactInbox: cfg.ContactInbox,
		})
		mailer = emailService
		notifier = emailService
		logger.Info("email service enabled")
	}

	reconciler := reconcile.New(reconcile.NewPostgresStore(store), stripeClient, notifier, logger)

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry, cfg.MetricsPrefix)

	// Rate limit counters
	var (
		counters   middleware.CounterFactory
		pgCounters []*repository.RateLimitCounter
	)
	if cfg.RateLimit.Store == "postgres" {
		counters = func(scope string) httprate.LimitCounter {
			c := repository.NewRateLimitCounter(db, scope)
			pgCounters = append(pgCounters, c)
			return c
		}
		logger.Info("rate limiting backed by postgres")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Store:           store,
		Verifier:        auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTAudience),
		Registrar:       registrationService,
		Registry:        subdomains,
		EventParser:     stripeClient,
		Reconciler:      reconciler,
		Mailer:          mailer,
		Metrics:         m,
		Gatherer:        promRegistry,
		RateCounters:    counters,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		MarketingHosts:  cfg.MarketingHosts,
		CookieSecure:    cfg.CookieSecure,
		TrustedProxy:    cfg.TrustedProxy,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go prune(ctx, store, pgCounters, cfg.RateLimit, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "version", globals.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// prune periodically removes expired rate limit windows and old webhook
// ledger entries until ctx is cancelled.
func prune(ctx context.Context, store *repository.Store, counters []*repository.RateLimitCounter, cfg config.RateLimitConfig, logger *slog.Logger) {
	maxWindow := max(cfg.RegisterWindow, cfg.ClaimWindow, cfg.ContactWindow)

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// The table is shared by every scope. Limiters read the previous
		// window, so two are kept.
		if len(counters) > 0 {
			if _, err := counters[0].Prune(ctx, 2*maxWindow); err != nil {
				logger.Warn("failed to prune rate limit counters", "error", err)
			}
		}

		n, err := store.WebhookEvents.DeleteOlderThan(ctx, webhookRetentionDays)
		if err != nil {
			logger.Warn("failed to prune webhook events", "error", err)
			continue
		}
		if n > 0 {
			logger.Info("pruned webhook events", "count", n)
		}
	}
}
