// Package registration turns an applicant's signup form into a pending
// registration and a hosted checkout.
package registration

import (
	"strings"

	"github.com/tendant/bizora/pkg/auth"
	"github.com/tendant/bizora/pkg/domain"
)

// DefaultOrganizationName is used when a registration carries no company name.
const DefaultOrganizationName = "Nieuw bedrijf"

// Application is a validated signup form. It is stored verbatim as the
// registration payload.
type Application struct {
	Plan          string      `json:"plan" validate:"required,oneof=start flow pro enterprise"`
	Personal      Personal    `json:"personal"`
	Account       Account     `json:"account"`
	Company       Company     `json:"company"`
	Address       Address     `json:"address"`
	Preferences   Preferences `json:"preferences"`
	Legal         Legal       `json:"legal"`
	HCaptchaToken string      `json:"hcaptchaToken" validate:"required,min=10"`
}

type Personal struct {
	FirstName string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string  `json:"lastName" validate:"required,min=2,max=50"`
	RoleTitle *string `json:"roleTitle,omitempty" validate:"omitempty,max=80"`
	Phone     string  `json:"phone" validate:"required,phone"`
}

type Account struct {
	Email               string `json:"email" validate:"required,email,max=254"`
	CommunicationsOptIn bool   `json:"communicationsOptIn"`
}

type Company struct {
	CompanyName string  `json:"companyName" validate:"required,min=2"`
	KVK         *string `json:"kvk,omitempty" validate:"omitempty,min=4,max=16"`
	VAT         *string `json:"vat,omitempty" validate:"omitempty,max=32"`
	Industry    *string `json:"industry,omitempty" validate:"omitempty,max=60"`
	CompanySize *string `json:"companySize,omitempty" validate:"omitempty,max=40"`
}

// Address is the company's visiting address. InvoiceAddress must be given
// when InvoiceAddressDifferent is set.
type Address struct {
	Street                  string          `json:"street" validate:"required,min=2"`
	HouseNumber             string          `json:"houseNumber" validate:"required,min=1"`
	HouseNumberAddition     *string         `json:"houseNumberAddition,omitempty"`
	Postcode                *string         `json:"postcode,omitempty" validate:"omitempty,nl_postcode"`
	City                    string          `json:"city" validate:"required,min=2"`
	Country                 string          `json:"country" validate:"required,min=2"`
	InvoiceAddressDifferent bool            `json:"invoiceAddressDifferent"`
	InvoiceAddress          *InvoiceAddress `json:"invoiceAddress,omitempty" validate:"required_if=InvoiceAddressDifferent true"`
}

type InvoiceAddress struct {
	Street              string  `json:"street" validate:"required,min=2"`
	HouseNumber         string  `json:"houseNumber" validate:"required,min=1"`
	HouseNumberAddition *string `json:"houseNumberAddition,omitempty"`
	Postcode            string  `json:"postcode" validate:"required,nl_postcode"`
	City                string  `json:"city" validate:"required,min=2"`
	Country             string  `json:"country" validate:"required,min=2"`
}

type Preferences struct {
	Language             string `json:"language" validate:"required,oneof=nl en"`
	Currency             string `json:"currency" validate:"required,oneof=EUR"`
	Timezone             string `json:"timezone" validate:"required,timezone"`
	FiscalYearStartMonth int    `json:"fiscalYearStartMonth" validate:"min=1,max=12"`
	AccountingBasis      string `json:"accountingBasis" validate:"required,oneof=cash accrual"`
}

// Legal consents. Both acceptances must be literally true.
type Legal struct {
	AcceptTerms     bool `json:"acceptTerms" validate:"eq=true"`
	AcceptPrivacy   bool `json:"acceptPrivacy" validate:"eq=true"`
	GDPRLabelShown  bool `json:"gdprLabelShown"`
	NewsletterOptIn bool `json:"newsletterOptIn"`
}

func defaultApplication() Application {
	return Application{
		Plan:    string(domain.PlanStart),
		Address: Address{Country: "NL"},
		Preferences: Preferences{
			Language:             "nl",
			Currency:             "EUR",
			Timezone:             "Europe/Amsterdam",
			FiscalYearStartMonth: 1,
			AccountingBasis:      string(domain.AccountingBasisAccrual),
		},
		Legal: Legal{GDPRLabelShown: true},
	}
}

func (a *Application) normalize() {
	a.Plan = strings.ToLower(strings.TrimSpace(a.Plan))
	a.Account.Email = auth.NormalizeEmail(a.Account.Email)
	a.Personal.FirstName = auth.CleanLine(a.Personal.FirstName, 0)
	a.Personal.LastName = auth.CleanLine(a.Personal.LastName, 0)
	a.Personal.Phone = strings.Join(strings.Fields(a.Personal.Phone), "")
	a.Company.CompanyName = auth.CleanLine(a.Company.CompanyName, 0)
	a.Address.Country = strings.ToUpper(strings.TrimSpace(a.Address.Country))
	if a.Address.InvoiceAddress != nil {
		a.Address.InvoiceAddress.Country = strings.ToUpper(strings.TrimSpace(a.Address.InvoiceAddress.Country))
	}
}

// Email returns the applicant's normalized account email.
func (a *Application) Email() string {
	return a.Account.Email
}

// SelectedPlan returns the chosen plan.
func (a *Application) SelectedPlan() domain.Plan {
	return domain.ParsePlan(a.Plan)
}

// Provisioning holds the organization and profile fields derived from a
// converted registration.
type Provisioning struct {
	OrganizationName     string
	Currency             string
	Timezone             string
	FiscalYearStartMonth int
	AccountingBasis      domain.AccountingBasis
	FirstName            *string
	LastName             *string
	Phone                *string
	ProfileLocale        string
}

// DefaultProvisioning is used when no application is available, e.g. a
// checkout that cannot be linked to a registration.
func DefaultProvisioning() Provisioning {
	return Provisioning{
		OrganizationName:     DefaultOrganizationName,
		Currency:             "EUR",
		Timezone:             "Europe/Amsterdam",
		FiscalYearStartMonth: 1,
		AccountingBasis:      domain.AccountingBasisAccrual,
		ProfileLocale:        "nl-NL",
	}
}

// Provisioning derives the provisioning fields from a validated application.
func (a *Application) Provisioning() Provisioning {
	p := DefaultProvisioning()
	if a.Company.CompanyName != "" {
		p.OrganizationName = a.Company.CompanyName
	}
	p.Currency = a.Preferences.Currency
	p.Timezone = a.Preferences.Timezone
	p.FiscalYearStartMonth = a.Preferences.FiscalYearStartMonth
	p.AccountingBasis = domain.AccountingBasis(a.Preferences.AccountingBasis)
	p.FirstName = nonEmpty(a.Personal.FirstName)
	p.LastName = nonEmpty(a.Personal.LastName)
	p.Phone = nonEmpty(a.Personal.Phone)
	if a.Preferences.Language == "en" {
		p.ProfileLocale = "en-GB"
	}
	return p
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
