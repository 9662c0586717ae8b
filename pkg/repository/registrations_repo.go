package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// RegistrationsRepository handles signup attempt persistence.
type RegistrationsRepository struct {
	db *sql.DB
}

// NewRegistrationsRepository creates a new registrations repository.
func NewRegistrationsRepository(db *sql.DB) *RegistrationsRepository {
	return &RegistrationsRepository{db: db}
}

const registrationColumns = `
	id, email, plan, payload, status,
	stripe_checkout_session_id, stripe_customer_id, stripe_subscription_id,
	organization_id, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*domain.Registration, error) {
	var reg domain.Registration
	var payload []byte
	err := row.Scan(
		&reg.ID, &reg.Email, &reg.Plan, &payload, &reg.Status,
		&reg.StripeCheckoutSessionID, &reg.StripeCustomerID, &reg.StripeSubscriptionID,
		&reg.OrganizationID, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	reg.Payload = payload
	return &reg, nil
}

// Create inserts a new registration.
func (r *RegistrationsRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (id, email, plan, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		reg.ID,
		reg.Email,
		reg.Plan,
		[]byte(reg.Payload),
		reg.Status,
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	return mapError(err)
}

// GetByID retrieves a registration by ID.
func (r *RegistrationsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return scanRegistration(r.db.QueryRowContext(ctx, query, id))
}

// SetCheckoutSession records the checkout session created for a registration.
func (r *RegistrationsRepository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET stripe_checkout_session_id = $2, updated_at = NOW() WHERE id = $1`,
		id, sessionID,
	)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// LockTx loads a registration and holds a row lock on it until the
// transaction ends, serializing concurrent deliveries for the same signup.
func (r *RegistrationsRepository) LockTx(ctx context.Context, q Querier, id uuid.UUID) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`
	return scanRegistration(q.QueryRowContext(ctx, query, id))
}

// MarkConvertedTx links a registration to the organization created from it.
func (r *RegistrationsRepository) MarkConvertedTx(ctx context.Context, q Querier, id, orgID uuid.UUID, customerID, subscriptionID string) error {
	query := `
		UPDATE registrations
		SET status = $2,
			organization_id = $3,
			stripe_customer_id = NULLIF($4, ''),
			stripe_subscription_id = NULLIF($5, ''),
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, id, domain.RegistrationStatusConverted, orgID, customerID, subscriptionID)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}
