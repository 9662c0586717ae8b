// Package subdomain validates and claims tenant subdomains.
package subdomain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// Pattern is the accepted subdomain format: 3 to 32 characters of lowercase
// letters, digits and hyphens, starting and ending with a letter or digit.
var Pattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,30})[a-z0-9]$`)

var reserved = map[string]bool{
	"www": true, "app": true, "api": true, "admin": true, "administrator": true,
	"auth": true, "login": true, "logout": true, "register": true, "signup": true,
	"setup": true, "dashboard": true, "account": true, "accounts": true, "billing": true,
	"invoice": true, "invoices": true, "pay": true, "payments": true, "checkout": true,
	"mail": true, "email": true, "smtp": true, "imap": true, "pop": true, "webmail": true,
	"mx": true, "ns1": true, "ns2": true, "dns": true, "ftp": true, "sftp": true,
	"cdn": true, "static": true, "assets": true, "media": true, "img": true, "files": true,
	"docs": true, "help": true, "support": true, "status": true, "blog": true, "news": true,
	"about": true, "contact": true, "pricing": true, "faq": true, "knowledge-base": true,
	"dev": true, "test": true, "staging": true, "demo": true, "sandbox": true, "beta": true,
	"internal": true, "root": true, "system": true, "security": true, "abuse": true,
	"postmaster": true, "hostmaster": true, "webmaster": true, "bizora": true,
}

// Reason explains why a candidate is unavailable.
type Reason string

const (
	ReasonInvalidFormat Reason = "invalid_format"
	ReasonReserved      Reason = "reserved"
	ReasonTaken         Reason = "taken"
)

// WarningMetadataSyncFailed is reported when the subdomain was claimed but
// the billing customer could not be tagged with it.
const WarningMetadataSyncFailed = "stripe_metadata_update_failed"

// Normalize lowercases and trims a candidate.
func Normalize(candidate string) string {
	return strings.ToLower(strings.TrimSpace(candidate))
}

// ValidFormat reports whether a normalized candidate matches Pattern.
func ValidFormat(candidate string) bool {
	return Pattern.MatchString(candidate)
}

// IsReserved reports whether a normalized candidate is withheld from tenants.
func IsReserved(candidate string) bool {
	return reserved[candidate]
}

// Store is the organization storage the registry needs.
type Store interface {
	SubdomainOwner(ctx context.Context, subdomain string) (uuid.UUID, bool, error)
	ClaimSubdomain(ctx context.Context, orgID uuid.UUID, subdomain string) (*domain.Organization, error)
}

// AdminChecker answers whether a profile is an admin of one organization.
type AdminChecker interface {
	IsAdmin(ctx context.Context, orgID, profileID uuid.UUID) (bool, error)
}

// CustomerTagger records the claimed subdomain on the billing customer.
type CustomerTagger interface {
	SetCustomerSubdomain(ctx context.Context, customerID, subdomain string) error
}

// Registry checks and claims subdomains.
type Registry struct {
	store   Store
	admins  AdminChecker
	billing CustomerTagger
	logger  *slog.Logger
}

// NewRegistry creates a registry. billing may be nil.
func NewRegistry(store Store, admins AdminChecker, billing CustomerTagger, logger *slog.Logger) *Registry {
	return &Registry{store: store, admins: admins, billing: billing, logger: logger}
}

// Availability is the result of CheckAvailability.
type Availability struct {
	Candidate string
	Available bool
	Reason    Reason
}

// CheckAvailability reports whether candidate can be claimed. Format and
// reservation are decided before storage is consulted.
func (r *Registry) CheckAvailability(ctx context.Context, candidate string) (Availability, error) {
	candidate = Normalize(candidate)
	result := Availability{Candidate: candidate}

	if !ValidFormat(candidate) {
		result.Reason = ReasonInvalidFormat
		return result, nil
	}
	if IsReserved(candidate) {
		result.Reason = ReasonReserved
		return result, nil
	}

	_, taken, err := r.store.SubdomainOwner(ctx, candidate)
	if err != nil {
		return result, fmt.Errorf("failed to check subdomain availability: %w", err)
	}
	if taken {
		result.Reason = ReasonTaken
		return result, nil
	}

	result.Available = true
	return result, nil
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Subdomain string
	Warning   string
}

// Claim assigns candidate to orgID on behalf of profileID, who must be an
// admin of that organization. Rejected claims return one of
// domain.ErrInvalidSubdomain, domain.ErrReservedSubdomain, domain.ErrForbidden,
// domain.ErrSubdomainTaken or, once setup is complete, domain.ErrSubdomainLocked.
// Claiming the subdomain the organization already holds succeeds without a
// write.
func (r *Registry) Claim(ctx context.Context, orgID, profileID uuid.UUID, candidate string) (*ClaimResult, error) {
	candidate = Normalize(candidate)

	if !ValidFormat(candidate) {
		return nil, domain.ErrInvalidSubdomain
	}
	if IsReserved(candidate) {
		return nil, domain.ErrReservedSubdomain
	}

	isAdmin, err := r.admins.IsAdmin(ctx, orgID, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin membership: %w", err)
	}
	if !isAdmin {
		return nil, domain.ErrForbidden
	}

	owner, taken, err := r.store.SubdomainOwner(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to check subdomain owner: %w", err)
	}
	if taken {
		if owner == orgID {
			return &ClaimResult{Subdomain: candidate}, nil
		}
		return nil, domain.ErrSubdomainTaken
	}

	// The pre-check above is advisory; the unique constraint decides races.
	org, err := r.store.ClaimSubdomain(ctx, orgID, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrSubdomainTaken) || errors.Is(err, domain.ErrInvalidSubdomain) ||
			errors.Is(err, domain.ErrSubdomainLocked) || errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim subdomain: %w", err)
	}

	r.logger.Info("subdomain claimed", "org_id", orgID, "subdomain", candidate, "profile_id", profileID)

	result := &ClaimResult{Subdomain: candidate}
	if r.billing != nil && org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		if err := r.billing.SetCustomerSubdomain(ctx, *org.StripeCustomerID, candidate); err != nil {
			r.logger.Warn("failed to sync subdomain to billing customer",
				"org_id", orgID,
				"customer_id", *org.StripeCustomerID,
				"error", err,
			)
			result.Warning = WarningMetadataSyncFailed
		}
	}

	return result, nil
}
