package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// WebhookEventsRepository records processed billing event ids.
type WebhookEventsRepository struct {
	db *sql.DB
}

// NewWebhookEventsRepository creates a new webhook events repository.
func NewWebhookEventsRepository(db *sql.DB) *WebhookEventsRepository {
	return &WebhookEventsRepository{db: db}
}

// RecordTx stores eventID and reports whether it was seen for the first
// time. Called inside the transaction that applies the event, so a rolled
// back delivery is not remembered.
func (r *WebhookEventsRepository) RecordTx(ctx context.Context, q Querier, eventID, eventType string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, event_type, received_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// DeleteOlderThan prunes the processed-event log.
func (r *WebhookEventsRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE received_at < NOW() - make_interval(days => $1)`, days,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
