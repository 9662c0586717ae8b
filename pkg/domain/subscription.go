package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the application-level billing gating status.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusReadOnly SubscriptionStatus = "read_only"
)

// Subscription mirrors the payment provider's subscription for one
// organization. It is the source of truth for billing gating.
type Subscription struct {
	OrganizationID       uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	Plan                 Plan
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialEnd             *time.Time
	CancelAt             *time.Time
	CanceledAt           *time.Time
	UpdatedAt            time.Time
}

// AllowsWrites reports whether users of the organization may use paid
// functionality.
func (s *Subscription) AllowsWrites() bool {
	return s.Status == SubscriptionStatusTrialing || s.Status == SubscriptionStatusActive
}
