package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// Store groups the repositories over one connection pool.
type Store struct {
	db *sql.DB

	Organizations   *OrganizationsRepository
	Profiles        *ProfilesRepository
	Memberships     *MembershipsRepository
	Registrations   *RegistrationsRepository
	Subscriptions   *SubscriptionsRepository
	WebhookEvents   *WebhookEventsRepository
	ContactMessages *ContactMessagesRepository
}

// NewStore creates a Store for db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:              db,
		Organizations:   NewOrganizationsRepository(db),
		Profiles:        NewProfilesRepository(db),
		Memberships:     NewMembershipsRepository(db),
		Registrations:   NewRegistrationsRepository(db),
		Subscriptions:   NewSubscriptionsRepository(db),
		WebhookEvents:   NewWebhookEventsRepository(db),
		ContactMessages: NewContactMessagesRepository(db),
	}
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, s: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Tx exposes the repository operations used while applying a billing
// event, bound to one transaction.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// RecordEvent marks a billing event as processed. It returns false for an
// event id that was already recorded.
func (t *Tx) RecordEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	return t.s.WebhookEvents.RecordTx(ctx, t.tx, eventID, eventType)
}

// LockRegistration loads and row-locks a registration.
func (t *Tx) LockRegistration(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	return t.s.Registrations.LockTx(ctx, t.tx, id)
}

// GetOrganizationBySubscriptionID returns the organization storing the
// billing subscription reference.
func (t *Tx) GetOrganizationBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Organization, error) {
	return t.s.Organizations.GetBySubscriptionIDTx(ctx, t.tx, subscriptionID)
}

// GetOrganization returns an organization by id.
func (t *Tx) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return t.s.Organizations.getByIDTx(ctx, t.tx, id)
}

// CreateOrganization inserts an organization.
func (t *Tx) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return t.s.Organizations.CreateTx(ctx, t.tx, org)
}

// FindOrCreateProfile returns the profile for p.Email, creating it if needed.
func (t *Tx) FindOrCreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	return t.s.Profiles.FindOrCreateTx(ctx, t.tx, p)
}

// CreateMembership inserts a membership.
func (t *Tx) CreateMembership(ctx context.Context, m *domain.Membership) error {
	return t.s.Memberships.CreateTx(ctx, t.tx, m)
}

// MarkRegistrationConverted links a registration to its organization.
func (t *Tx) MarkRegistrationConverted(ctx context.Context, id, orgID uuid.UUID, customerID, subscriptionID string) error {
	return t.s.Registrations.MarkConvertedTx(ctx, t.tx, id, orgID, customerID, subscriptionID)
}

// UpsertSubscription writes the subscription mirror unless a newer event
// already did.
func (t *Tx) UpsertSubscription(ctx context.Context, sub *domain.Subscription, eventAt time.Time) (bool, error) {
	return t.s.Subscriptions.UpsertTx(ctx, t.tx, sub, eventAt)
}

// FindOrganizationIDForSubscription locates the organization owning a
// billing subscription.
func (t *Tx) FindOrganizationIDForSubscription(ctx context.Context, subscriptionID string) (uuid.UUID, bool, error) {
	return t.s.Subscriptions.FindOrganizationIDTx(ctx, t.tx, subscriptionID)
}

// GetSubscriptionByStripeID returns the mirror row for a billing subscription.
func (t *Tx) GetSubscriptionByStripeID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return t.s.Subscriptions.getByStripeIDTx(ctx, t.tx, subscriptionID)
}

// UpdateOrganizationStatus sets an organization's status.
func (t *Tx) UpdateOrganizationStatus(ctx context.Context, orgID uuid.UUID, status domain.OrganizationStatus) error {
	return t.s.Organizations.UpdateStatusTx(ctx, t.tx, orgID, status)
}

// UpdateOrganizationPlan sets an organization's plan and seat limit.
func (t *Tx) UpdateOrganizationPlan(ctx context.Context, orgID uuid.UUID, plan domain.Plan) error {
	return t.s.Organizations.UpdatePlanTx(ctx, t.tx, orgID, plan)
}

// ListAdminEmails returns the organization's admin addresses.
func (t *Tx) ListAdminEmails(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	return t.s.Memberships.ListAdminEmailsTx(ctx, t.tx, orgID)
}
