package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/bizora/pkg/domain"
)

// ProfilesRepository handles profile persistence.
type ProfilesRepository struct {
	db *sql.DB
}

// NewProfilesRepository creates a new profiles repository.
func NewProfilesRepository(db *sql.DB) *ProfilesRepository {
	return &ProfilesRepository{db: db}
}

const profileColumns = `id, auth_user_id, email, first_name, last_name, phone, locale, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.AuthUserID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Locale, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOrCreateTx returns the profile for p.Email, inserting p when none
// exists. Name and phone fill gaps on an existing profile but never
// overwrite values that are already set.
func (r *ProfilesRepository) FindOrCreateTx(ctx context.Context, q Querier, p *domain.Profile) (*domain.Profile, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.Locale == "" {
		p.Locale = "nl-NL"
	}
	query := `
		INSERT INTO profiles (id, email, first_name, last_name, phone, locale, created_at, updated_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE SET
			first_name = COALESCE(profiles.first_name, EXCLUDED.first_name),
			last_name  = COALESCE(profiles.last_name, EXCLUDED.last_name),
			phone      = COALESCE(profiles.phone, EXCLUDED.phone),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + profileColumns
	profile, err := scanProfile(q.QueryRowContext(ctx, query,
		p.ID, strings.TrimSpace(p.Email), p.FirstName, p.LastName, p.Phone, p.Locale, now,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return profile, nil
}

// GetByAuthUserID retrieves the profile linked to an auth provider user.
func (r *ProfilesRepository) GetByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE auth_user_id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, authUserID))
}

// ResolveForIdentity finds the caller's profile. A profile created during
// registration has no auth user yet; the first signed-in lookup by email
// links it.
func (r *ProfilesRepository) ResolveForIdentity(ctx context.Context, authUserID uuid.UUID, email string) (*domain.Profile, error) {
	profile, err := r.GetByAuthUserID(ctx, authUserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to get profile by auth user: %w", err)
	}
	if email == "" {
		return nil, domain.ErrProfileNotFound
	}

	query := `
		UPDATE profiles
		SET auth_user_id = $1, updated_at = NOW()
		WHERE email = LOWER($2) AND auth_user_id IS NULL
		RETURNING ` + profileColumns
	profile, err = scanProfile(r.db.QueryRowContext(ctx, query, authUserID, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapError(err)
	}
	return profile, nil
}
