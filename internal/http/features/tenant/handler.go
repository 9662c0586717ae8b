package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/tendant/bizora/internal/httputil"
	"github.com/tendant/bizora/pkg/domain"
	"github.com/tendant/bizora/pkg/subdomain"
)

// OrganizationFinder looks up tenants by subdomain.
type OrganizationFinder interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Organization, error)
}

// Handler exposes public tenant information for workspace hosts.
type Handler struct {
	logger        *slog.Logger
	organizations OrganizationFinder
	marketing     map[string]bool
}

// NewHandler creates a new tenant handler. Requests for any of the
// marketing hosts never resolve to a tenant.
func NewHandler(logger *slog.Logger, organizations OrganizationFinder, marketingHosts []string) *Handler {
	marketing := make(map[string]bool, len(marketingHosts))
	for _, h := range marketingHosts {
		marketing[strings.ToLower(h)] = true
	}
	return &Handler{logger: logger, organizations: organizations, marketing: marketing}
}

// TenantResponse is the public view of an organization.
type TenantResponse struct {
	OK        bool   `json:"ok"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Status    string `json:"status"`
}

// Current returns the tenant addressed by the request host.
// GET /api/tenant
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	label, ok := h.SubdomainFromHost(r.Host)
	if !ok {
		httputil.Error(w, http.StatusNotFound, "tenant_not_found")
		return
	}

	org, err := h.organizations.GetBySubdomain(r.Context(), label)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		httputil.Error(w, http.StatusNotFound, "tenant_not_found")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve tenant", "subdomain", label, "error", err)
		httputil.InternalError(w, http.StatusInternalServerError, "db_error", err)
		return
	}

	httputil.JSON(w, http.StatusOK, TenantResponse{
		OK:        true,
		Name:      org.Name,
		Subdomain: label,
		Status:    string(org.Status),
	})
}

// SubdomainFromHost extracts the tenant label from a Host header value:
// "acme.bizora.nl:443" yields "acme". Marketing hosts, IP addresses,
// single-label hosts and reserved labels yield false.
func (h *Handler) SubdomainFromHost(host string) (string, bool) {
	hostname := strings.ToLower(strings.TrimSpace(host))
	if hn, _, err := net.SplitHostPort(hostname); err == nil {
		hostname = hn
	}
	hostname = strings.TrimSuffix(hostname, ".")

	if hostname == "" || h.marketing[hostname] || net.ParseIP(hostname) != nil {
		return "", false
	}

	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return "", false
	}

	label := parts[0]
	if !subdomain.ValidFormat(label) || subdomain.IsReserved(label) {
		return "", false
	}
	return label, true
}
