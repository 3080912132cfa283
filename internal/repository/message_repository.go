package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Message repository errors
var (
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepositoryInterface defines the interface for message data access
type MessageRepositoryInterface interface {
	ListBefore(ctx context.Context, threadID uuid.UUID, before *time.Time, limit int) ([]Message, error)
	CountByThread(ctx context.Context, threadID uuid.UUID) (int, error)
	Create(ctx context.Context, message *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
}

// MessageRepo implements MessageRepositoryInterface using PostgreSQL
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo creates a new MessageRepo instance
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// ListBefore retrieves up to limit messages for a thread, newest first,
// strictly older than the cursor when one is supplied. The cursor is a
// timestamp rather than a row offset so that concurrent inserts cannot shift
// rows between page fetches.
func (r *MessageRepo) ListBefore(ctx context.Context, threadID uuid.UUID, before *time.Time, limit int) ([]Message, error) {
	query := `
		SELECT id, thread_id, sender_kind, sender_name, body, payload, created_at
		FROM messages
		WHERE thread_id = $1
	`
	args := []interface{}{threadID}

	if before != nil {
		query += " AND created_at < $2"
		args = append(args, *before)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.ThreadID,
			&m.SenderKind,
			&m.SenderName,
			&m.Body,
			&m.Payload,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CountByThread returns the total number of messages in a thread,
// independent of any page window.
func (r *MessageRepo) CountByThread(ctx context.Context, threadID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages WHERE thread_id = $1", threadID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Create inserts a new message
func (r *MessageRepo) Create(ctx context.Context, message *Message) error {
	query := `
		INSERT INTO messages (id, thread_id, sender_kind, sender_name, body, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		message.ID,
		message.ThreadID,
		message.SenderKind,
		message.SenderName,
		message.Body,
		message.Payload,
	).Scan(&message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByID retrieves a message by its ID
func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `
		SELECT id, thread_id, sender_kind, sender_name, body, payload, created_at
		FROM messages
		WHERE id = $1
	`

	var m Message
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.ThreadID,
		&m.SenderKind,
		&m.SenderName,
		&m.Body,
		&m.Payload,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &m, nil
}
