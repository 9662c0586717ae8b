package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// Create creates a new membership.
func (r *MembershipsRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return r.CreateTx(ctx, r.db, membership)
}

// CreateTx creates a new membership within a transaction. A second
// membership for the same pair fails with domain.ErrMembershipExists.
func (r *MembershipsRepository) CreateTx(ctx context.Context, q Querier, membership *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, organization_id, profile_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		membership.ID,
		membership.OrganizationID,
		membership.ProfileID,
		membership.Role,
		membership.Status,
		membership.CreatedAt,
		membership.UpdatedAt,
	)
	return mapError(err)
}

// GetByProfileAndOrganization retrieves a membership for a profile in an organization.
func (r *MembershipsRepository) GetByProfileAndOrganization(ctx context.Context, profileID, orgID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT id, organization_id, profile_id, role, status, created_at, updated_at
		FROM memberships
		WHERE profile_id = $1 AND organization_id = $2
	`

	var m domain.Membership
	err := r.db.QueryRowContext(ctx, query, profileID, orgID).Scan(
		&m.ID,
		&m.OrganizationID,
		&m.ProfileID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	return &m, nil
}

// IsAdmin reports whether profileID holds an active admin membership in orgID.
func (r *MembershipsRepository) IsAdmin(ctx context.Context, orgID, profileID uuid.UUID) (bool, error) {
	m, err := r.GetByProfileAndOrganization(ctx, profileID, orgID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsAdmin(), nil
}

// FirstForProfile returns the profile's oldest active membership.
func (r *MembershipsRepository) FirstForProfile(ctx context.Context, profileID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT id, organization_id, profile_id, role, status, created_at, updated_at
		FROM memberships
		WHERE profile_id = $1 AND status = 'active'
		ORDER BY created_at ASC
		LIMIT 1
	`

	var m domain.Membership
	err := r.db.QueryRowContext(ctx, query, profileID).Scan(
		&m.ID,
		&m.OrganizationID,
		&m.ProfileID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	return &m, nil
}

// ListAdminEmailsTx returns the email addresses of the organization's
// active admins.
func (r *MembershipsRepository) ListAdminEmailsTx(ctx context.Context, q Querier, orgID uuid.UUID) ([]string, error) {
	query := `
		SELECT p.email
		FROM memberships m
		INNER JOIN profiles p ON p.id = m.profile_id
		WHERE m.organization_id = $1 AND m.role = 'admin' AND m.status = 'active'
		ORDER BY m.created_at ASC
	`

	rows, err := q.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
