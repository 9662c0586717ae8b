package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tendant/bizora/pkg/domain"
)

// ErrInvalidSignature is returned for webhook payloads that fail signature
// verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// StripeConfig holds payment provider settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Prices        PriceTable
	TrialDays     int64
	MaxRetries    uint
}

// StripeClient talks to Stripe.
type StripeClient struct {
	api    *client.API
	cfg    StripeConfig
	logger *slog.Logger
}

// NewStripeClient creates a client for the configured account.
func NewStripeClient(cfg StripeConfig, logger *slog.Logger) *StripeClient {
	if cfg.TrialDays == 0 {
		cfg.TrialDays = 30
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeClient{api: api, cfg: cfg, logger: logger}
}

// Prices returns the configured plan price table.
func (c *StripeClient) Prices() PriceTable {
	return c.cfg.Prices
}

// CheckoutRequest describes a subscription checkout for one registration.
type CheckoutRequest struct {
	RegistrationID uuid.UUID
	Plan           domain.Plan
	PriceID        string
	Email          string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession starts a subscription checkout with a trial. The
// registration id travels in the session and subscription metadata and as
// the client reference so the webhook can find the registration again.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	rid := req.RegistrationID.String()
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodCollection:  stripe.String(string(stripe.CheckoutSessionPaymentMethodCollectionAlways)),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		AllowPromotionCodes:      stripe.Bool(true),
		SuccessURL:               stripe.String(req.SuccessURL),
		CancelURL:                stripe.String(req.CancelURL),
		CustomerEmail:            stripe.String(req.Email),
		ClientReferenceID:        stripe.String(rid),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(c.cfg.TrialDays),
			TrialSettings: &stripe.CheckoutSessionSubscriptionDataTrialSettingsParams{
				EndBehavior: &stripe.CheckoutSessionSubscriptionDataTrialSettingsEndBehaviorParams{
					MissingPaymentMethod: stripe.String("pause"),
				},
			},
			Metadata: map[string]string{
				MetadataRegistrationID: rid,
				MetadataPlan:           string(req.Plan),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataRegistrationID, rid)
	params.AddMetadata(MetadataPlan, string(req.Plan))
	params.AddMetadata(MetadataEmail, req.Email)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetSubscription fetches a subscription, retrying transient failures.
func (c *StripeClient) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	operation := func() (*stripe.Subscription, error) {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		sub, err := c.api.Subscriptions.Get(id, params)
		if err != nil && !isRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return sub, err
	}

	sub, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.cfg.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}
	return subscriptionFromStripe(sub, c.cfg.Prices), nil
}

// SetCustomerSubdomain records the tenant subdomain in customer metadata.
func (c *StripeClient) SetCustomerSubdomain(ctx context.Context, customerID, subdomain string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddMetadata(MetadataSubdomain, subdomain)
	if _, err := c.api.Customers.Update(customerID, params); err != nil {
		return fmt.Errorf("failed to update customer metadata: %w", err)
	}
	return nil
}

// ParseEvent verifies a webhook payload against its Stripe-Signature
// header and decodes it.
func (c *StripeClient) ParseEvent(payload []byte, signature string) (*Event, error) {
	return ParseEvent(payload, signature, c.cfg.WebhookSecret, c.cfg.Prices)
}

// ParseEvent verifies and decodes a webhook payload signed with secret.
func ParseEvent(payload []byte, signature, secret string, prices PriceTable) (*Event, error) {
	if signature == "" || secret == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(evt, prices)
}

func decodeEvent(evt stripe.Event, prices PriceTable) (*Event, error) {
	out := &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
	}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out.Checkout = checkoutFromStripe(&s)

	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventSubscriptionTrialWillEnd:
		var s stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		out.Subscription = subscriptionFromStripe(&s, prices)

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		out.Invoice = invoiceFromStripe(&inv)
	}

	return out, nil
}

func checkoutFromStripe(s *stripe.CheckoutSession) *Checkout {
	out := &Checkout{
		SessionID:      s.ID,
		RegistrationID: s.Metadata[MetadataRegistrationID],
		Plan:           s.Metadata[MetadataPlan],
		Email:          s.Metadata[MetadataEmail],
	}
	if out.RegistrationID == "" {
		out.RegistrationID = s.ClientReferenceID
	}
	if out.Email == "" && s.CustomerDetails != nil {
		out.Email = s.CustomerDetails.Email
	}
	if out.Email == "" {
		out.Email = s.CustomerEmail
	}
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func subscriptionFromStripe(s *stripe.Subscription, prices PriceTable) *Subscription {
	out := &Subscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		CurrentPeriodStart: unixTime(s.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(s.CurrentPeriodEnd),
		TrialEnd:           unixTime(s.TrialEnd),
		CancelAt:           unixTime(s.CancelAt),
		CanceledAt:         unixTime(s.CanceledAt),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	// The price is current after upgrades; the metadata only records the
	// plan chosen at checkout.
	out.Plan = prices.PlanForPrice(out.PriceID)
	if out.Plan == "" {
		if p := s.Metadata[MetadataPlan]; p != "" {
			out.Plan = domain.ParsePlan(p)
		}
	}
	return out
}

func invoiceFromStripe(inv *stripe.Invoice) *Invoice {
	out := &Invoice{ID: inv.ID}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	return out
}

func isRetryable(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == 0 ||
			stripeErr.HTTPStatusCode == 429 ||
			stripeErr.HTTPStatusCode >= 500
	}
	return true
}
