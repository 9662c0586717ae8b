package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// OrganizationsRepository handles organization persistence.
type OrganizationsRepository struct {
	db *sql.DB
}

// NewOrganizationsRepository creates a new organizations repository.
func NewOrganizationsRepository(db *sql.DB) *OrganizationsRepository {
	return &OrganizationsRepository{db: db}
}

const organizationColumns = `
	id, name, subdomain, plan, status, seat_limit, trial_end,
	stripe_customer_id, stripe_subscription_id,
	locale, currency, timezone, fiscal_year_start_month, accounting_basis,
	company_type, logo_url, accent_color, vat_id, setup_complete,
	created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	var org domain.Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Subdomain, &org.Plan, &org.Status, &org.SeatLimit, &org.TrialEnd,
		&org.StripeCustomerID, &org.StripeSubscriptionID,
		&org.Locale, &org.Currency, &org.Timezone, &org.FiscalYearStartMonth, &org.AccountingBasis,
		&org.CompanyType, &org.LogoURL, &org.AccentColor, &org.VATID, &org.SetupComplete,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateTx creates a new organization within a transaction.
func (r *OrganizationsRepository) CreateTx(ctx context.Context, q Querier, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, subdomain, plan, status, seat_limit, trial_end,
			stripe_customer_id, stripe_subscription_id,
			locale, currency, timezone, fiscal_year_start_month, accounting_basis,
			setup_complete, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := q.ExecContext(ctx, query,
		org.ID, org.Name, org.Subdomain, org.Plan, org.Status, org.SeatLimit, org.TrialEnd,
		org.StripeCustomerID, org.StripeSubscriptionID,
		org.Locale, org.Currency, org.Timezone, org.FiscalYearStartMonth, org.AccountingBasis,
		org.SetupComplete, org.CreatedAt, org.UpdatedAt,
	)
	return mapError(err)
}

// GetByID retrieves an organization by ID.
func (r *OrganizationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return r.getByIDTx(ctx, r.db, id)
}

func (r *OrganizationsRepository) getByIDTx(ctx context.Context, q Querier, id uuid.UUID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(q.QueryRowContext(ctx, query, id))
}

// GetBySubdomain retrieves an organization by its claimed subdomain.
func (r *OrganizationsRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE subdomain = $1`
	return scanOrganization(r.db.QueryRowContext(ctx, query, subdomain))
}

// GetBySubscriptionIDTx retrieves the organization that stores the given
// billing subscription reference.
func (r *OrganizationsRepository) GetBySubscriptionIDTx(ctx context.Context, q Querier, subscriptionID string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE stripe_subscription_id = $1`
	return scanOrganization(q.QueryRowContext(ctx, query, subscriptionID))
}

// SubdomainOwner returns the organization holding subdomain, if any.
func (r *OrganizationsRepository) SubdomainOwner(ctx context.Context, subdomain string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM organizations WHERE subdomain = $1`, subdomain,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up subdomain: %w", err)
	}
	return id, true, nil
}

// ClaimSubdomain sets the subdomain of an organization. The unique
// constraint on organizations.subdomain makes concurrent claims of the same
// value fail with domain.ErrSubdomainTaken for all but one caller. Once
// setup is complete the subdomain is fixed and a claim returns
// domain.ErrSubdomainLocked.
func (r *OrganizationsRepository) ClaimSubdomain(ctx context.Context, orgID uuid.UUID, subdomain string) (*domain.Organization, error) {
	query := `
		UPDATE organizations
		SET subdomain = $2, updated_at = NOW()
		WHERE id = $1 AND (subdomain IS NULL OR setup_complete = FALSE)
		RETURNING ` + organizationColumns
	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, orgID, subdomain))
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		if _, getErr := r.GetByID(ctx, orgID); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrSubdomainLocked
	}
	if err != nil {
		return nil, mapError(err)
	}
	return org, nil
}

// UpdateStatusTx sets the lifecycle status of an organization.
func (r *OrganizationsRepository) UpdateStatusTx(ctx context.Context, q Querier, id uuid.UUID, status domain.OrganizationStatus) error {
	result, err := q.ExecContext(ctx,
		`UPDATE organizations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

// UpdatePlanTx moves an organization to plan and resets its seat limit to
// the plan's allowance.
func (r *OrganizationsRepository) UpdatePlanTx(ctx context.Context, q Querier, id uuid.UUID, plan domain.Plan) error {
	result, err := q.ExecContext(ctx,
		`UPDATE organizations SET plan = $2, seat_limit = $3, updated_at = NOW() WHERE id = $1`,
		id, plan, domain.SeatLimitForPlan(plan),
	)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

// UpdateSettings applies the non-nil fields of settings.
func (r *OrganizationsRepository) UpdateSettings(ctx context.Context, id uuid.UUID, s domain.OrganizationSettings) (*domain.Organization, error) {
	query := `
		UPDATE organizations SET
			company_type            = COALESCE($2, company_type),
			accounting_basis        = COALESCE($3, accounting_basis),
			fiscal_year_start_month = COALESCE($4, fiscal_year_start_month),
			locale                  = COALESCE($5, locale),
			currency                = COALESCE($6, currency),
			logo_url                = COALESCE($7, logo_url),
			accent_color            = COALESCE($8, accent_color),
			vat_id                  = COALESCE($9, vat_id),
			updated_at              = NOW()
		WHERE id = $1
		RETURNING ` + organizationColumns

	var basis *string
	if s.AccountingBasis != nil {
		b := string(*s.AccountingBasis)
		basis = &b
	}

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query,
		id, s.CompanyType, basis, s.FiscalYearStartMonth, s.Locale, s.Currency,
		s.LogoURL, s.AccentColor, s.VATID,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return org, nil
}

// CompleteSetup marks onboarding as finished. It refuses organizations that
// have not claimed a subdomain yet.
func (r *OrganizationsRepository) CompleteSetup(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	query := `
		UPDATE organizations
		SET setup_complete = TRUE, updated_at = NOW()
		WHERE id = $1 AND subdomain IS NOT NULL
		RETURNING ` + organizationColumns
	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrSubdomainRequired
	}
	if err != nil {
		return nil, mapError(err)
	}
	return org, nil
}

// OnboardingState is the route gate's view of a caller's first organization.
type OnboardingState struct {
	HasMembership  bool
	OrganizationID uuid.UUID
	SetupComplete  bool
}

// OnboardingState looks up the caller's first membership and the setup
// flag of its organization in a single query. Profiles are matched by auth
// user id, or by email while the profile has not been linked yet.
func (r *OrganizationsRepository) OnboardingState(ctx context.Context, authUserID uuid.UUID, email string) (OnboardingState, error) {
	query := `
		SELECT o.id, o.setup_complete
		FROM profiles p
		INNER JOIN memberships m ON m.profile_id = p.id
		INNER JOIN organizations o ON o.id = m.organization_id
		WHERE (p.auth_user_id = $1 OR (p.auth_user_id IS NULL AND p.email = LOWER($2)))
			AND m.status = 'active'
		ORDER BY m.created_at ASC
		LIMIT 1
	`
	var state OnboardingState
	err := r.db.QueryRowContext(ctx, query, authUserID, email).Scan(&state.OrganizationID, &state.SetupComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return OnboardingState{}, nil
	}
	if err != nil {
		return OnboardingState{}, fmt.Errorf("failed to load onboarding state: %w", err)
	}
	state.HasMembership = true
	return state, nil
}
