package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus tracks one signup attempt through checkout.
type RegistrationStatus string

const (
	RegistrationStatusPreStripe RegistrationStatus = "pre_stripe"
	RegistrationStatusConverted RegistrationStatus = "converted"
)

// Registration is the record of a single signup attempt. Payload holds the
// validated application snapshot so the reconciler can rebuild organization
// and profile fields after checkout.
type Registration struct {
	ID                      uuid.UUID
	Email                   string
	Plan                    Plan
	Payload                 json.RawMessage
	Status                  RegistrationStatus
	StripeCheckoutSessionID *string
	StripeCustomerID        *string
	StripeSubscriptionID    *string
	OrganizationID          *uuid.UUID
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsConverted returns true once checkout completed and an organization was
// provisioned for this registration.
func (r *Registration) IsConverted() bool {
	return r.Status == RegistrationStatusConverted && r.OrganizationID != nil
}
