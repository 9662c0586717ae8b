package auth

import "strings"

// Disposable email domains rejected at registration.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"tempmail.com":      true,
	"yopmail.com":       true,
	"trashmail.com":     true,
	"sharklasers.com":   true,
	"getnada.com":       true,
	"dispostable.com":   true,
	"maildrop.cc":       true,
	"mintemail.com":     true,
	"throwawaymail.com": true,
	"throwaway.email":   true,
}

// IsDisposableEmail reports whether the address belongs to a known
// throwaway mailbox provider. Subdomains of a listed domain match too.
func IsDisposableEmail(email string) bool {
	domain := EmailDomain(NormalizeEmail(email))
	for domain != "" {
		if disposableDomains[domain] {
			return true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}
	return false
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain extracts the domain from an email address.
func EmailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}
