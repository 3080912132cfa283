package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appcontext "github.com/staywise/guest-services/backend/internal/context"
)

func newTestRouter(svc *Service) chi.Router {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(svc, nil))
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestListMessagesRejectsInvalidThreadID(t *testing.T) {
	messages, threads, _ := seedThread(0)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	req := httptest.NewRequest("GET", "/threads/not-a-uuid/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeValidationError {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestListMessagesRejectsBadCursor(t *testing.T) {
	messages, threads, threadID := seedThread(5)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	req := httptest.NewRequest("GET", "/threads/"+threadID.String()+"/messages?before=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListMessagesReturnsPage(t *testing.T) {
	messages, threads, threadID := seedThread(5)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	req := httptest.NewRequest("GET", "/threads/"+threadID.String()+"/messages?limit=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    Page `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Data.Items) != 3 {
		t.Errorf("len(items) = %d, want 3", len(resp.Data.Items))
	}
	if !resp.Data.HasMore {
		t.Error("hasMore should be true")
	}
	if resp.Data.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Data.Total)
	}
}

func TestSendMessageCreates(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	body := `{"sender_name": "Front Desk", "body": "on our way"}`
	req := httptest.NewRequest("POST", "/threads/"+threadID.String()+"/messages", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), appcontext.RoleKey, "staff"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(messages.messages) != 1 {
		t.Fatalf("stored %d messages", len(messages.messages))
	}
	if messages.messages[0].SenderKind != "staff" {
		t.Errorf("sender kind = %q", messages.messages[0].SenderKind)
	}
}

func TestSendMessageUnknownThreadReturns404(t *testing.T) {
	messages, threads, _ := seedThread(0)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	body := `{"sender_name": "Guest", "body": "hello"}`
	req := httptest.NewRequest("POST", "/threads/9f4ff3f4-6f0c-4b6e-9a57-0e5f6a8b1c2d/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeThreadNotFound {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestSendMessageRejectsMissingFields(t *testing.T) {
	messages, threads, threadID := seedThread(0)
	router := newTestRouter(NewService(messages, threads, &fakePublisher{}, nil))

	req := httptest.NewRequest("POST", "/threads/"+threadID.String()+"/messages", strings.NewReader(`{"body": ""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
