package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/auth"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/domain"
)

var (
	// ErrStorage wraps failures to persist the registration.
	ErrStorage = errors.New("registration storage failed")
	// ErrCheckout wraps failures to create the hosted checkout.
	ErrCheckout = errors.New("checkout session failed")
)

// Store persists registrations.
type Store interface {
	Create(ctx context.Context, reg *domain.Registration) error
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
}

// CaptchaVerifier checks CAPTCHA tokens out of band.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// CheckoutCreator starts hosted checkouts.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error)
}

// Service runs the registration pipeline.
type Service struct {
	store    Store
	captcha  CaptchaVerifier
	checkout CheckoutCreator
	prices   billing.PriceTable
	appURL   string
	logger   *slog.Logger
}

// NewService creates a registration service. appURL is the public base URL
// checkout redirects back to.
func NewService(store Store, captcha CaptchaVerifier, checkout CheckoutCreator, prices billing.PriceTable, appURL string, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		captcha:  captcha,
		checkout: checkout,
		prices:   prices,
		appURL:   strings.TrimRight(appURL, "/"),
		logger:   logger,
	}
}

// Result is returned for an accepted registration.
type Result struct {
	RegistrationID uuid.UUID
	CheckoutURL    string
}

// Register validates a raw signup form and starts checkout for it. Each
// step gates the next:
//
//  1. schema validation (*ValidationError)
//  2. disposable email screen (domain.ErrDisposableEmail)
//  3. CAPTCHA verification (domain.ErrCaptchaFailed)
//  4. plan price lookup (domain.ErrPlanNotConfigured)
//  5. pending registration insert (ErrStorage)
//  6. checkout session creation (ErrCheckout)
//
// Recording the session id on the registration afterwards is best effort.
func (s *Service) Register(ctx context.Context, raw []byte, remoteIP string) (*Result, error) {
	app, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	email := app.Email()
	if auth.IsDisposableEmail(email) {
		return nil, domain.ErrDisposableEmail
	}

	if err := s.captcha.Verify(ctx, app.HCaptchaToken, remoteIP); err != nil {
		s.logger.Info("captcha verification failed", "email_domain", auth.EmailDomain(email), "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptchaFailed, err)
	}

	plan := app.SelectedPlan()
	priceID, ok := s.prices.PriceFor(plan)
	if !ok {
		s.logger.Error("no price configured for plan", "plan", plan)
		return nil, domain.ErrPlanNotConfigured
	}

	payload, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	now := time.Now()
	reg := &domain.Registration{
		ID:        uuid.New(),
		Email:     email,
		Plan:      plan,
		Payload:   payload,
		Status:    domain.RegistrationStatusPreStripe,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, reg); err != nil {
		s.logger.Error("failed to create registration", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rid := reg.ID.String()
	sess, err := s.checkout.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		RegistrationID: reg.ID,
		Plan:           plan,
		PriceID:        priceID,
		Email:          email,
		SuccessURL:     s.appURL + "/register/success?rid=" + rid,
		CancelURL:      s.appURL + "/register/cancel?rid=" + rid,
	})
	if err != nil {
		s.logger.Error("failed to create checkout session", "registration_id", reg.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCheckout, err)
	}

	if err := s.store.SetCheckoutSession(ctx, reg.ID, sess.ID); err != nil {
		s.logger.Warn("failed to store checkout session id",
			"registration_id", reg.ID,
			"session_id", sess.ID,
			"error", err,
		)
	}

	s.logger.Info("registration created", "registration_id", reg.ID, "plan", plan)

	return &Result{RegistrationID: reg.ID, CheckoutURL: sess.URL}, nil
}
