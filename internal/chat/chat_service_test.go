package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/staywise/guest-services/backend/internal/events"
	"github.com/staywise/guest-services/backend/internal/repository"
)

// fakeMessageStore is an in-memory MessageStore mirroring the repository's
// ordering semantics: newest first, strictly older than the cursor.
type fakeMessageStore struct {
	messages []repository.Message
}

func (s *fakeMessageStore) ListBefore(_ context.Context, threadID uuid.UUID, before *time.Time, limit int) ([]repository.Message, error) {
	var rows []repository.Message
	for _, m := range s.messages {
		if m.ThreadID != threadID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *fakeMessageStore) CountByThread(_ context.Context, threadID uuid.UUID) (int, error) {
	count := 0
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) Create(_ context.Context, message *repository.Message) error {
	message.CreatedAt = time.Now()
	s.messages = append(s.messages, *message)
	return nil
}

type fakeThreadStore struct {
	threads map[uuid.UUID]*repository.Thread
	touched int
}

func (s *fakeThreadStore) GetByID(_ context.Context, id uuid.UUID) (*repository.Thread, error) {
	thread, ok := s.threads[id]
	if !ok {
		return nil, repository.ErrThreadNotFound
	}
	return thread, nil
}

func (s *fakeThreadStore) TouchUpdatedAt(_ context.Context, id uuid.UUID) error {
	s.touched++
	return nil
}

type fakePublisher struct {
	published []events.Event
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, event events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func seedThread(messageCount int) (*fakeMessageStore, *fakeThreadStore, uuid.UUID) {
	threadID := uuid.New()
	hotelID := uuid.New()
	department := "housekeeping"

	threads := &fakeThreadStore{
		threads: map[uuid.UUID]*repository.Thread{
			threadID: {
				ID:         threadID,
				HotelID:    hotelID,
				Department: &department,
				Status:     "open",
			},
		},
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	messages := &fakeMessageStore{}
	for i := 0; i < messageCount; i++ {
		messages.messages = append(messages.messages, repository.Message{
			ID:         uuid.New(),
			ThreadID:   threadID,
			SenderKind: "guest",
			SenderName: "Guest",
			Body:       fmt.Sprintf("message %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}

	return messages, threads, threadID
}

func TestPageReturnsNewestPageAscending(t *testing.T) {
	messages, threads, threadID := seedThread(45)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	page, err := svc.Page(context.Background(), threadID, nil, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if len(page.Items) != DefaultPageSize {
		t.Fatalf("len(items) = %d, want %d", len(page.Items), DefaultPageSize)
	}
	if !page.HasMore {
		t.Error("hasMore should be true with 45 messages and a 30 message page")
	}
	if page.Total != 45 {
		t.Errorf("total = %d, want 45", page.Total)
	}

	// Ascending order, ending with the newest message
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].CreatedAt.Before(page.Items[i-1].CreatedAt) {
			t.Fatalf("items not ascending at index %d", i)
		}
	}
	if page.Items[len(page.Items)-1].Body != "message 44" {
		t.Errorf("last item = %q, want the newest message", page.Items[len(page.Items)-1].Body)
	}
	if page.Items[0].Body != "message 15" {
		t.Errorf("first item = %q, want message 15", page.Items[0].Body)
	}
}

func TestPageSecondPageEndsAtCursor(t *testing.T) {
	messages, threads, threadID := seedThread(45)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	first, err := svc.Page(context.Background(), threadID, nil, 0)
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}

	cursor := first.Items[0].CreatedAt
	second, err := svc.Page(context.Background(), threadID, &cursor, 0)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}

	if len(second.Items) != 15 {
		t.Fatalf("len(second page) = %d, want the remaining 15", len(second.Items))
	}
	if second.HasMore {
		t.Error("hasMore should be false on the final page")
	}
	if second.Total != 45 {
		t.Errorf("total = %d, want 45 regardless of the cursor", second.Total)
	}
	if second.Items[0].Body != "message 0" {
		t.Errorf("oldest item = %q, want message 0", second.Items[0].Body)
	}

	// No overlap between pages
	if second.Items[len(second.Items)-1].CreatedAt.Equal(cursor) ||
		second.Items[len(second.Items)-1].CreatedAt.After(cursor) {
		t.Error("second page must be strictly older than the cursor")
	}
}

func TestPageIsRepeatable(t *testing.T) {
	messages, threads, threadID := seedThread(10)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	first, err := svc.Page(context.Background(), threadID, nil, 5)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	again, err := svc.Page(context.Background(), threadID, nil, 5)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if len(first.Items) != len(again.Items) {
		t.Fatalf("page sizes differ: %d vs %d", len(first.Items), len(again.Items))
	}
	for i := range first.Items {
		if first.Items[i].ID != again.Items[i].ID {
			t.Fatalf("item %d differs between identical calls", i)
		}
	}
}

func TestPageEmptyThread(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	page, err := svc.Page(context.Background(), threadID, nil, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page.Items) != 0 || page.HasMore || page.Total != 0 {
		t.Errorf("empty thread page = %+v", page)
	}
}

func TestPageClampsLimit(t *testing.T) {
	messages, threads, threadID := seedThread(150)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	page, err := svc.Page(context.Background(), threadID, nil, 9999)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page.Items) != MaxPageSize {
		t.Errorf("len(items) = %d, want clamped to %d", len(page.Items), MaxPageSize)
	}
}

func TestSendStoresAndPublishes(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	publisher := &fakePublisher{}
	svc := NewService(messages, threads, publisher, nil)

	msg, err := svc.Send(context.Background(), threadID, "staff", SendMessageRequest{
		SenderName: "Front Desk",
		Body:       "<b>Your towels are on the way</b>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if msg.Body != "Your towels are on the way" {
		t.Errorf("body = %q, markup should be stripped", msg.Body)
	}
	if len(messages.messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(messages.messages))
	}
	if threads.touched != 1 {
		t.Errorf("thread touched %d times, want 1", threads.touched)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.published))
	}
	event := publisher.published[0]
	if event.Type != events.EventTypeMessageCreated {
		t.Errorf("event type = %q", event.Type)
	}
	if event.ThreadID != threadID.String() {
		t.Errorf("event threadId = %q", event.ThreadID)
	}
	if event.Department != "housekeeping" {
		t.Errorf("event department = %q", event.Department)
	}
}

func TestSendSucceedsWhenPublishFails(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	publisher := &fakePublisher{err: errors.New("listen channel unavailable")}
	svc := NewService(messages, threads, publisher, nil)

	_, err := svc.Send(context.Background(), threadID, "guest", SendMessageRequest{
		SenderName: "Guest",
		Body:       "hello",
	})
	if err != nil {
		t.Fatalf("Send should succeed despite publish failure, got %v", err)
	}
	if len(messages.messages) != 1 {
		t.Errorf("message should still be stored")
	}
}

func TestSendRejectsEmptyBodyAfterSanitization(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	_, err := svc.Send(context.Background(), threadID, "guest", SendMessageRequest{
		SenderName: "Guest",
		Body:       "<script>alert(1)</script>",
	})
	if !errors.Is(err, ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
	if len(messages.messages) != 0 {
		t.Error("no message should be stored")
	}
}

func TestSendUnknownThread(t *testing.T) {
	messages, threads, _ := seedThread(0)
	svc := NewService(messages, threads, &fakePublisher{}, nil)

	_, err := svc.Send(context.Background(), uuid.New(), "guest", SendMessageRequest{
		SenderName: "Guest",
		Body:       "hello",
	})
	if !errors.Is(err, repository.ErrThreadNotFound) {
		t.Errorf("expected ErrThreadNotFound, got %v", err)
	}
}
