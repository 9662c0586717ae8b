package registration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/bizora/pkg/billing"
	"github.com/tendant/bizora/pkg/domain"
)

type memStore struct {
	created    []*domain.Registration
	sessions   map[uuid.UUID]string
	createErr  error
	sessionErr error
}

func (m *memStore) Create(ctx context.Context, reg *domain.Registration) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, reg)
	return nil
}

func (m *memStore) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	if m.sessionErr != nil {
		return m.sessionErr
	}
	if m.sessions == nil {
		m.sessions = map[uuid.UUID]string{}
	}
	m.sessions[id] = sessionID
	return nil
}

type fakeCaptcha struct {
	err   error
	calls int
}

func (f *fakeCaptcha) Verify(ctx context.Context, token, remoteIP string) error {
	f.calls++
	return f.err
}

type fakeCheckout struct {
	err  error
	reqs []billing.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

type fixture struct {
	store    *memStore
	captcha  *fakeCaptcha
	checkout *fakeCheckout
	svc      *Service
}

func newFixture(prices billing.PriceTable) *fixture {
	f := &fixture{store: &memStore{}, captcha: &fakeCaptcha{}, checkout: &fakeCheckout{}}
	f.svc = NewService(f.store, f.captcha, f.checkout, prices, "https://bizora.nl/",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

var allPrices = billing.PriceTable{
	domain.PlanStart:      "price_start",
	domain.PlanFlow:       "price_flow",
	domain.PlanPro:        "price_pro",
	domain.PlanEnterprise: "price_enterprise",
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(allPrices)

	res, err := f.svc.Register(context.Background(), encode(t, validForm()), "203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.CheckoutURL)

	require.Len(t, f.store.created, 1)
	reg := f.store.created[0]
	assert.Equal(t, res.RegistrationID, reg.ID)
	assert.Equal(t, "jan@acme.nl", reg.Email)
	assert.Equal(t, domain.PlanPro, reg.Plan)
	assert.Equal(t, domain.RegistrationStatusPreStripe, reg.Status)

	stored, err := DecodeApplication(reg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Acme BV", stored.Company.CompanyName)

	require.Len(t, f.checkout.reqs, 1)
	req := f.checkout.reqs[0]
	assert.Equal(t, reg.ID, req.RegistrationID)
	assert.Equal(t, "price_pro", req.PriceID)
	assert.Equal(t, "jan@acme.nl", req.Email)
	assert.Equal(t, "https://bizora.nl/register/success?rid="+reg.ID.String(), req.SuccessURL)
	assert.Equal(t, "https://bizora.nl/register/cancel?rid="+reg.ID.String(), req.CancelURL)

	assert.Equal(t, "cs_test_1", f.store.sessions[reg.ID])
}

func TestRegister_Gates(t *testing.T) {
	tests := []struct {
		name         string
		form         func() map[string]any
		prices       billing.PriceTable
		captchaErr   error
		createErr    error
		checkoutErr  error
		wantErr      error
		wantCaptcha  int
		wantPersists int
	}{
		{
			name: "terms not accepted",
			form: func() map[string]any {
				f := validForm()
				section(f, "legal")["acceptTerms"] = false
				return f
			},
			prices:  allPrices,
			wantErr: domain.ErrInvalidApplication,
		},
		{
			name: "disposable email",
			form: func() map[string]any {
				f := validForm()
				section(f, "account")["email"] = "user@mailinator.com"
				return f
			},
			prices:  allPrices,
			wantErr: domain.ErrDisposableEmail,
		},
		{
			name:        "captcha rejected",
			form:        validForm,
			prices:      allPrices,
			captchaErr:  errors.New("invalid-input-response"),
			wantErr:     domain.ErrCaptchaFailed,
			wantCaptcha: 1,
		},
		{
			name:        "plan without price",
			form:        validForm,
			prices:      billing.PriceTable{domain.PlanStart: "price_start"},
			wantErr:     domain.ErrPlanNotConfigured,
			wantCaptcha: 1,
		},
		{
			name:        "storage failure",
			form:        validForm,
			prices:      allPrices,
			createErr:   errors.New("connection reset"),
			wantErr:     ErrStorage,
			wantCaptcha: 1,
		},
		{
			name:         "checkout failure",
			form:         validForm,
			prices:       allPrices,
			checkoutErr:  errors.New("stripe unavailable"),
			wantErr:      ErrCheckout,
			wantCaptcha:  1,
			wantPersists: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.prices)
			f.captcha.err = tt.captchaErr
			f.store.createErr = tt.createErr
			f.checkout.err = tt.checkoutErr

			_, err := f.svc.Register(context.Background(), encode(t, tt.form()), "203.0.113.1")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCaptcha, f.captcha.calls)
			assert.Len(t, f.store.created, tt.wantPersists)
		})
	}
}

func TestRegister_SessionIDStoreFailureIsNotFatal(t *testing.T) {
	f := newFixture(allPrices)
	f.store.sessionErr = errors.New("timeout")

	res, err := f.svc.Register(context.Background(), encode(t, validForm()), "203.0.113.1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.CheckoutURL, "https://checkout.stripe.com/"))
}
