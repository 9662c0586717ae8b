// Package billing adapts the payment provider to the service's own types.
package billing

import (
	"time"

	"github.com/tendant/bizora/pkg/domain"
)

// Provider event types the reconciler understands.
const (
	EventCheckoutCompleted        = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventSubscriptionTrialWillEnd = "customer.subscription.trial_will_end"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Metadata keys attached to checkout sessions and subscriptions.
const (
	MetadataRegistrationID = "registration_id"
	MetadataPlan           = "plan"
	MetadataEmail          = "email"
	MetadataSubdomain      = "subdomain"
)

// Event is a verified provider event. Exactly one of Checkout, Subscription
// and Invoice is set for known event types; all are nil otherwise.
type Event struct {
	ID           string
	Type         string
	Created      time.Time
	Checkout     *Checkout
	Subscription *Subscription
	Invoice      *Invoice
}

// Checkout is a completed hosted checkout session.
type Checkout struct {
	SessionID      string
	RegistrationID string
	Plan           string
	Email          string
	CustomerID     string
	SubscriptionID string
}

// Subscription is the provider's subscription state.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Plan               domain.Plan
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialEnd           *time.Time
	CancelAt           *time.Time
	CanceledAt         *time.Time
}

// Invoice is the part of an invoice the reconciler needs.
type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// MapStatus maps a provider subscription status onto the application's
// gating status. Statuses without a direct counterpart (incomplete,
// unpaid, paused, ...) become read_only.
func MapStatus(providerStatus string) domain.SubscriptionStatus {
	switch providerStatus {
	case "trialing":
		return domain.SubscriptionStatusTrialing
	case "active":
		return domain.SubscriptionStatusActive
	case "past_due":
		return domain.SubscriptionStatusPastDue
	case "canceled":
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusReadOnly
	}
}

// PriceTable maps plans to provider price ids.
type PriceTable map[domain.Plan]string

// NewPriceTable builds a table from price ids keyed by plan name. Names that
// are not plans and empty ids are dropped.
func NewPriceTable(byName map[string]string) PriceTable {
	t := PriceTable{}
	for _, plan := range domain.Plans {
		if id := byName[string(plan)]; id != "" {
			t[plan] = id
		}
	}
	return t
}

// Unpriced lists the plans without a configured price, cheapest first.
func (t PriceTable) Unpriced() []domain.Plan {
	var out []domain.Plan
	for _, plan := range domain.Plans {
		if _, ok := t.PriceFor(plan); !ok {
			out = append(out, plan)
		}
	}
	return out
}

// PriceFor returns the price id configured for plan.
func (t PriceTable) PriceFor(plan domain.Plan) (string, bool) {
	id, ok := t[plan]
	return id, ok && id != ""
}

// PlanForPrice returns the plan whose price is priceID, or "" when none is.
func (t PriceTable) PlanForPrice(priceID string) domain.Plan {
	if priceID == "" {
		return ""
	}
	for plan, id := range t {
		if id == priceID {
			return plan
		}
	}
	return ""
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
