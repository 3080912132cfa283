package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Thread repository errors
var (
	ErrThreadNotFound = errors.New("thread not found")
)

// ThreadRepositoryInterface defines the interface for thread data access
type ThreadRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Thread, error)
	TouchUpdatedAt(ctx context.Context, id uuid.UUID) error
}

// ThreadRepo implements ThreadRepositoryInterface using PostgreSQL
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo creates a new ThreadRepo instance
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// GetByID retrieves a thread by its ID
func (r *ThreadRepo) GetByID(ctx context.Context, id uuid.UUID) (*Thread, error) {
	query := `
		SELECT id, hotel_id, stay_id, subject, department, status, created_at, updated_at
		FROM threads
		WHERE id = $1
	`

	var t Thread
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.HotelID,
		&t.StayID,
		&t.Subject,
		&t.Department,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &t, nil
}

// TouchUpdatedAt bumps a thread's updated_at, used when a message lands in it
func (r *ThreadRepo) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "UPDATE threads SET updated_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrThreadNotFound
	}

	return nil
}
