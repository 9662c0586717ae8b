package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ContactMessage is a message submitted through the public contact form.
type ContactMessage struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Subject   *string
	Message   string
	Meta      map[string]string
	CreatedAt time.Time
}

// ContactMessagesRepository stores contact form submissions.
type ContactMessagesRepository struct {
	db *sql.DB
}

// NewContactMessagesRepository creates a new contact messages repository.
func NewContactMessagesRepository(db *sql.DB) *ContactMessagesRepository {
	return &ContactMessagesRepository{db: db}
}

// Create stores a contact message.
func (r *ContactMessagesRepository) Create(ctx context.Context, msg *ContactMessage) error {
	meta := msg.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message, metaJSON, msg.CreatedAt)
	return mapError(err)
}
