package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Attachment repository errors
var (
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// AttachmentRepositoryInterface defines the interface for attachment metadata access
type AttachmentRepositoryInterface interface {
	Create(ctx context.Context, attachment *Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error)
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]Attachment, error)
}

// AttachmentRepo implements AttachmentRepositoryInterface using PostgreSQL
type AttachmentRepo struct {
	db *sqlx.DB
}

// NewAttachmentRepo creates a new AttachmentRepo instance
func NewAttachmentRepo(db *sqlx.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

// Create inserts attachment metadata
func (r *AttachmentRepo) Create(ctx context.Context, attachment *Attachment) error {
	query := `
		INSERT INTO attachments (id, message_id, filename, content_type, size_bytes, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		attachment.ID,
		attachment.MessageID,
		attachment.Filename,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.StorageKey,
	).Scan(&attachment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	return nil
}

// GetByID retrieves attachment metadata by ID
func (r *AttachmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	query := `
		SELECT id, message_id, filename, content_type, size_bytes, storage_key, created_at
		FROM attachments
		WHERE id = $1
	`

	var a Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.MessageID,
		&a.Filename,
		&a.ContentType,
		&a.SizeBytes,
		&a.StorageKey,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	return &a, nil
}

// ListByMessage retrieves all attachments for a message
func (r *AttachmentRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]Attachment, error) {
	query := `
		SELECT id, message_id, filename, content_type, size_bytes, storage_key, created_at
		FROM attachments
		WHERE message_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(
			&a.ID,
			&a.MessageID,
			&a.Filename,
			&a.ContentType,
			&a.SizeBytes,
			&a.StorageKey,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
