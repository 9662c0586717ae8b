package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationStatus is the coarse, UI-facing lifecycle status of a tenant.
type OrganizationStatus string

const (
	OrganizationStatusTrialing  OrganizationStatus = "trialing"
	OrganizationStatusActive    OrganizationStatus = "active"
	OrganizationStatusPastDue   OrganizationStatus = "past_due"
	OrganizationStatusCanceled  OrganizationStatus = "canceled"
	OrganizationStatusSuspended OrganizationStatus = "suspended"
	OrganizationStatusReadOnly  OrganizationStatus = "read_only"
)

// AccountingBasis is the bookkeeping basis of an organization.
type AccountingBasis string

const (
	AccountingBasisCash    AccountingBasis = "cash"
	AccountingBasisAccrual AccountingBasis = "accrual"
)

// Organization is the tenant root entity.
type Organization struct {
	ID                   uuid.UUID
	Name                 string
	Subdomain            *string
	Plan                 Plan
	Status               OrganizationStatus
	SeatLimit            *int
	TrialEnd             *time.Time
	StripeCustomerID     *string
	StripeSubscriptionID *string
	Locale               string
	Currency             string
	Timezone             string
	FiscalYearStartMonth int
	AccountingBasis      AccountingBasis
	CompanyType          *string
	LogoURL              *string
	AccentColor          *string
	VATID                *string
	SetupComplete        bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasSubdomain returns true once a subdomain has been claimed.
func (o *Organization) HasSubdomain() bool {
	return o.Subdomain != nil && *o.Subdomain != ""
}

// OrganizationSettings holds the preferences edited by the setup wizard.
// Nil fields are left unchanged.
type OrganizationSettings struct {
	CompanyType          *string
	AccountingBasis      *AccountingBasis
	FiscalYearStartMonth *int
	Locale               *string
	Currency             *string
	LogoURL              *string
	AccentColor          *string
	VATID                *string
}
