package repository

import (
	"context"
	"database/sql"
	"time"
)

// RateLimitCounter is an httprate.LimitCounter backed by Postgres so that
// limits hold across every instance of the service.
type RateLimitCounter struct {
	db           *sql.DB
	scope        string
	timeout      time.Duration
	windowLength time.Duration
}

// NewRateLimitCounter creates a counter using the rate_limit_counters table.
// Each limiter needs its own counter; scope keeps their keys apart.
func NewRateLimitCounter(db *sql.DB, scope string) *RateLimitCounter {
	return &RateLimitCounter{db: db, scope: scope, timeout: 2 * time.Second}
}

// Config is called by httprate with the limiter settings.
func (c *RateLimitCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

// Increment adds one hit to key in currentWindow.
func (c *RateLimitCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount hits to key in currentWindow.
func (c *RateLimitCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO rate_limit_counters (key, window_start, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, window_start) DO UPDATE SET count = rate_limit_counters.count + EXCLUDED.count
	`, c.scope+":"+key, currentWindow.UTC(), amount)
	return err
}

// Get returns the hit counts of key for the current and previous windows.
func (c *RateLimitCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var curr, prev int
	err := c.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(count) FILTER (WHERE window_start = $2), 0),
			COALESCE(SUM(count) FILTER (WHERE window_start = $3), 0)
		FROM rate_limit_counters
		WHERE key = $1 AND window_start IN ($2, $3)
	`, c.scope+":"+key, currentWindow.UTC(), previousWindow.UTC()).Scan(&curr, &prev)
	if err != nil {
		return 0, 0, err
	}
	return curr, prev, nil
}

// Prune deletes windows older than maxAge.
func (c *RateLimitCounter) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM rate_limit_counters WHERE window_start < $1`, time.Now().Add(-maxAge).UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
