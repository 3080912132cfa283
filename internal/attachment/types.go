// Package attachment serves chat attachment uploads and downloads.
// Attachment bodies live in object storage; only metadata is kept in
// PostgreSQL.
package attachment

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/staywise/guest-services/backend/internal/repository"
)

// ObjectStore is the slice of the storage service the handler needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, sizeBytes int64) error
	GetPresignedURL(ctx context.Context, key string) (string, time.Duration, error)
}

// MessageGetter verifies the message an attachment is tied to exists.
type MessageGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Message, error)
}

// AttachmentResponse is the wire representation of attachment metadata
type AttachmentResponse struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// DownloadResponse carries a pre-signed download URL
type DownloadResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

// allowedContentTypes lists the attachment types guests and staff may
// exchange. Executables and archives are rejected at upload time.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"image/webp":      {},
	"application/pdf": {},
	"text/plain":      {},
}

// ContentTypeAllowed reports whether uploads of the given type are accepted
func ContentTypeAllowed(contentType string) bool {
	_, ok := allowedContentTypes[contentType]
	return ok
}

func toAttachmentResponse(a repository.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID.String(),
		MessageID:   a.MessageID.String(),
		Filename:    a.Filename,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}
