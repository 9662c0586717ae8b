package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/tendant/bizora/pkg/domain"
)

// Config holds database connection settings. URL takes precedence over the
// discrete fields when set.
type Config struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the connection string for lib/pq.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.DBName,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewDB opens and pings a Postgres connection pool.
func NewDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 20
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Constraint names from migrations/1_initial_schema.sql.
const (
	constraintSubdomainUnique    = "organizations_subdomain_key"
	constraintSubdomainFormat    = "organizations_subdomain_check"
	constraintMembershipUnique   = "memberships_organization_id_profile_id_key"
	constraintRegistrationOrgKey = "registrations_organization_id_key"
)

// pqError unwraps a lib/pq error.
func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	pqErr, ok := pqError(err)
	return ok && pqErr.Code == pgerrcode.UniqueViolation
}

// mapError maps Postgres errors onto domain sentinel errors where the
// violated constraint identifies a domain conflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	pqErr, ok := pqError(err)
	if !ok {
		return err
	}

	switch pqErr.Code {
	case pgerrcode.UniqueViolation:
		switch pqErr.Constraint {
		case constraintSubdomainUnique:
			return domain.ErrSubdomainTaken
		case constraintMembershipUnique:
			return domain.ErrMembershipExists
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pqErr.Constraint, err)

	case pgerrcode.CheckViolation:
		if pqErr.Constraint == constraintSubdomainFormat {
			return domain.ErrInvalidSubdomain
		}
		return fmt.Errorf("check constraint violation: %s: %w", pqErr.Constraint, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	}

	return fmt.Errorf("postgres error [%s]: %s: %w", pqErr.Code, pqErr.Message, err)
}
