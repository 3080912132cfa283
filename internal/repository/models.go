package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents a staff or admin account in the database
type User struct {
	ID           uuid.UUID  `db:"id"`
	HotelID      uuid.UUID  `db:"hotel_id"`
	Email        string     `db:"email"`
	DisplayName  string     `db:"display_name"`
	PasswordHash string     `db:"password_hash"`
	Role         string     `db:"role"`
	Department   *string    `db:"department"`
	IsActive     bool       `db:"is_active"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
}

// Session represents an authentication session in the database
type Session struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	IPAddress *string   `db:"ip_address"`
	UserAgent *string   `db:"user_agent"`
}

// FailedLoginAttempt represents a failed login attempt for brute force protection
type FailedLoginAttempt struct {
	ID          uuid.UUID `db:"id"`
	Email       string    `db:"email"`
	IPAddress   string    `db:"ip_address"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// Thread represents one guest conversation (chat screen) in the database
type Thread struct {
	ID         uuid.UUID  `db:"id"`
	HotelID    uuid.UUID  `db:"hotel_id"`
	StayID     *uuid.UUID `db:"stay_id"`
	Subject    *string    `db:"subject"`
	Department *string    `db:"department"`
	Status     string     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// Message represents a single chat message. Messages are immutable once
// created and are never deleted by this service.
type Message struct {
	ID         uuid.UUID       `db:"id"`
	ThreadID   uuid.UUID       `db:"thread_id"`
	SenderKind string          `db:"sender_kind"` // guest | staff
	SenderName string          `db:"sender_name"`
	Body       string          `db:"body"`
	Payload    json.RawMessage `db:"payload"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Attachment represents chat attachment metadata in the database
type Attachment struct {
	ID          uuid.UUID `db:"id"`
	MessageID   uuid.UUID `db:"message_id"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	StorageKey  string    `db:"storage_key"`
	CreatedAt   time.Time `db:"created_at"`
}
