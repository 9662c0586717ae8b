package domain

import "errors"

// Tenant errors
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrMembershipExists     = errors.New("membership already exists")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrForbidden            = errors.New("caller is not an admin of this organization")
)

// Subdomain errors
var (
	ErrInvalidSubdomain  = errors.New("invalid subdomain format")
	ErrReservedSubdomain = errors.New("subdomain is reserved")
	ErrSubdomainTaken    = errors.New("subdomain already taken")
	ErrSubdomainRequired = errors.New("subdomain must be claimed first")
	ErrSubdomainLocked   = errors.New("subdomain cannot change after setup is complete")
)

// Registration errors
var (
	ErrDisposableEmail    = errors.New("disposable email addresses are not allowed")
	ErrCaptchaFailed      = errors.New("captcha verification failed")
	ErrPlanNotConfigured  = errors.New("plan has no configured price")
	ErrInvalidApplication = errors.New("invalid application")
)
