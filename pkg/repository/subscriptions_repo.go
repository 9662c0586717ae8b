package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// SubscriptionsRepository maintains the local mirror of billing subscriptions.
type SubscriptionsRepository struct {
	db *sql.DB
}

// NewSubscriptionsRepository creates a new subscriptions repository.
func NewSubscriptionsRepository(db *sql.DB) *SubscriptionsRepository {
	return &SubscriptionsRepository{db: db}
}

const subscriptionColumns = `
	organization_id, stripe_customer_id, stripe_subscription_id, plan, status,
	current_period_start, current_period_end, trial_end, cancel_at, canceled_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.OrganizationID, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.Plan, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.TrialEnd, &s.CancelAt, &s.CanceledAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertTx writes the mirror row for sub.OrganizationID. An empty sub.Plan
// keeps the stored plan (new rows default to start). Rows last written by
// an event newer than eventAt are left untouched; applied reports whether
// the write happened.
func (r *SubscriptionsRepository) UpsertTx(ctx context.Context, q Querier, sub *domain.Subscription, eventAt time.Time) (applied bool, err error) {
	var plan *string
	if sub.Plan != "" {
		p := string(sub.Plan)
		plan = &p
	}

	query := `
		INSERT INTO subscriptions (
			organization_id, stripe_customer_id, stripe_subscription_id, plan, status,
			current_period_start, current_period_end, trial_end, cancel_at, canceled_at,
			source_event_at, updated_at
		) VALUES ($1, $2, $3, COALESCE($4::text, 'start'), $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			stripe_customer_id     = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			plan                   = COALESCE($4::text, subscriptions.plan),
			status                 = EXCLUDED.status,
			current_period_start   = EXCLUDED.current_period_start,
			current_period_end     = EXCLUDED.current_period_end,
			trial_end              = EXCLUDED.trial_end,
			cancel_at              = EXCLUDED.cancel_at,
			canceled_at            = EXCLUDED.canceled_at,
			source_event_at        = EXCLUDED.source_event_at,
			updated_at             = NOW()
		WHERE subscriptions.source_event_at IS NULL
			OR subscriptions.source_event_at <= EXCLUDED.source_event_at
		RETURNING organization_id
	`
	var orgID uuid.UUID
	err = q.QueryRowContext(ctx, query,
		sub.OrganizationID, sub.StripeCustomerID, sub.StripeSubscriptionID, plan, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEnd, sub.CancelAt, sub.CanceledAt,
		eventAt,
	).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err)
	}
	return true, nil
}

// GetByStripeID retrieves the mirror row for a billing subscription id.
func (r *SubscriptionsRepository) GetByStripeID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return r.getByStripeIDTx(ctx, r.db, subscriptionID)
}

func (r *SubscriptionsRepository) getByStripeIDTx(ctx context.Context, q Querier, subscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	return scanSubscription(q.QueryRowContext(ctx, query, subscriptionID))
}

// GetByOrganizationID retrieves the mirror row of an organization.
func (r *SubscriptionsRepository) GetByOrganizationID(ctx context.Context, orgID uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE organization_id = $1`
	return scanSubscription(r.db.QueryRowContext(ctx, query, orgID))
}

// FindOrganizationIDTx locates the organization owning a billing
// subscription: the mirror first, then the reference stored on the
// organization itself.
func (r *SubscriptionsRepository) FindOrganizationIDTx(ctx context.Context, q Querier, subscriptionID string) (uuid.UUID, bool, error) {
	query := `
		SELECT organization_id FROM subscriptions WHERE stripe_subscription_id = $1
		UNION ALL
		SELECT id FROM organizations WHERE stripe_subscription_id = $1
		LIMIT 1
	`
	var orgID uuid.UUID
	err := q.QueryRowContext(ctx, query, subscriptionID).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to locate organization for subscription: %w", err)
	}
	return orgID, true, nil
}
