// Package chat provides guest conversation history and the message write
// path that feeds the realtime bus.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/staywise/guest-services/backend/internal/events"
	"github.com/staywise/guest-services/backend/internal/repository"
	"github.com/staywise/guest-services/backend/internal/sanitizer"
)

// Pagination bounds
const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

// Chat service errors
var (
	ErrEmptyBody = errors.New("message body is empty after sanitization")
)

// MessageStore is the slice of the message repository the service needs.
type MessageStore interface {
	ListBefore(ctx context.Context, threadID uuid.UUID, before *time.Time, limit int) ([]repository.Message, error)
	CountByThread(ctx context.Context, threadID uuid.UUID) (int, error)
	Create(ctx context.Context, message *repository.Message) error
}

// ThreadStore is the slice of the thread repository the service needs.
type ThreadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Thread, error)
	TouchUpdatedAt(ctx context.Context, id uuid.UUID) error
}

// Publisher broadcasts events for the realtime bus.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// MessageResponse is the wire representation of a message.
type MessageResponse struct {
	ID         string          `json:"id"`
	ThreadID   string          `json:"thread_id"`
	SenderKind string          `json:"sender_kind"`
	SenderName string          `json:"sender_name"`
	Body       string          `json:"body"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Page is one page of thread history. Items are ascending by creation time,
// so the first page ends with the most recent message and a chat UI can
// anchor its scroll position to the bottom.
type Page struct {
	Items   []MessageResponse `json:"items"`
	HasMore bool              `json:"hasMore"`
	Total   int               `json:"total"`
}

// SendMessageRequest is the message write payload.
type SendMessageRequest struct {
	SenderName string          `json:"sender_name" validate:"required,max=200"`
	Body       string          `json:"body" validate:"required,max=4000"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Service implements thread history pagination and the message write path.
type Service struct {
	messages  MessageStore
	threads   ThreadStore
	publisher Publisher
	sanitizer *sanitizer.MessageSanitizer
	logger    *slog.Logger
}

// NewService creates a chat Service.
func NewService(messages MessageStore, threads ThreadStore, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		messages:  messages,
		threads:   threads,
		publisher: publisher,
		sanitizer: sanitizer.NewMessageSanitizer(),
		logger:    logger,
	}
}

// Page returns one page of a thread's history, newest-bounded by the
// optional exclusive cursor. The engine fetches one extra row beyond the
// page size to detect whether older messages remain, and reverses the rows
// to ascending order for rendering. Repeated calls with identical arguments
// against unchanged data return identical results; nothing is mutated.
func (s *Service) Page(ctx context.Context, threadID uuid.UUID, before *time.Time, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	rows, err := s.messages.ListBefore(ctx, threadID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	// Rows arrive newest-first; chat UIs render oldest-first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	total, err := s.messages.CountByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	items := make([]MessageResponse, 0, len(rows))
	for _, m := range rows {
		items = append(items, toMessageResponse(m))
	}

	return &Page{Items: items, HasMore: hasMore, Total: total}, nil
}

// Send stores a new message and broadcasts a message_created event. The
// insert is the source of truth: a failed broadcast degrades realtime
// delivery but does not fail the send, since readers can still poll.
func (s *Service) Send(ctx context.Context, threadID uuid.UUID, senderKind string, req SendMessageRequest) (*MessageResponse, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	body := s.sanitizer.Sanitize(req.Body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	message := &repository.Message{
		ID:         uuid.New(),
		ThreadID:   threadID,
		SenderKind: senderKind,
		SenderName: req.SenderName,
		Body:       body,
		Payload:    req.Payload,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.threads.TouchUpdatedAt(ctx, threadID); err != nil {
		s.logger.Warn("failed to touch thread", "thread_id", threadID, "error", err)
	}

	s.publishCreated(ctx, thread, message)

	resp := toMessageResponse(*message)
	return &resp, nil
}

// publishCreated broadcasts the message_created event for the bus.
func (s *Service) publishCreated(ctx context.Context, thread *repository.Thread, message *repository.Message) {
	extra := map[string]json.RawMessage{}
	put := func(key string, v interface{}) {
		raw, err := json.Marshal(v)
		if err != nil {
			return
		}
		extra[key] = raw
	}
	put("messageId", message.ID.String())
	put("senderKind", message.SenderKind)
	put("senderName", message.SenderName)
	put("body", message.Body)
	put("createdAt", message.CreatedAt.UTC().Format(time.RFC3339Nano))

	event := events.Event{
		Type:     events.EventTypeMessageCreated,
		HotelID:  thread.HotelID.String(),
		ThreadID: thread.ID.String(),
		Extra:    extra,
	}
	if thread.StayID != nil {
		event.StayID = thread.StayID.String()
	}
	if thread.Department != nil {
		event.Department = *thread.Department
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("realtime publish failed, clients will poll",
			"thread_id", thread.ID, "error", err)
	}
}

func toMessageResponse(m repository.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID.String(),
		ThreadID:   m.ThreadID.String(),
		SenderKind: m.SenderKind,
		SenderName: m.SenderName,
		Body:       m.Body,
		Payload:    m.Payload,
		CreatedAt:  m.CreatedAt,
	}
}
