package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appcontext "github.com/staywise/guest-services/backend/internal/context"
	"github.com/staywise/guest-services/backend/internal/repository"
)

// Error codes returned by chat endpoints
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeThreadNotFound  = "THREAD_NOT_FOUND"
	CodeEmptyBody       = "EMPTY_BODY"
)

var validate = validator.New()

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler handles HTTP requests for thread history and message sending
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// ListMessages handles GET /api/v1/threads/{threadID}/messages.
//
// Query parameters:
//   - before: RFC 3339 timestamp, exclusive upper bound on created_at
//   - limit:  page size, clamped to MaxPageSize
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid thread ID")
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid before cursor, expected RFC 3339 timestamp")
			return
		}
		before = &t
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid limit")
			return
		}
		limit = n
	}

	page, err := h.service.Page(r.Context(), threadID, before, limit)
	if err != nil {
		h.logger.Error("failed to list messages", "thread_id", threadID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list messages")
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// SendMessage handles POST /api/v1/threads/{threadID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(chi.URLParam(r, "threadID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid thread ID")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "sender_name and body are required")
		return
	}

	msg, err := h.service.Send(r.Context(), threadID, senderKind(r), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrThreadNotFound):
			h.writeError(w, http.StatusNotFound, CodeThreadNotFound, "Thread not found")
		case errors.Is(err, ErrEmptyBody):
			h.writeError(w, http.StatusBadRequest, CodeEmptyBody, "Message body is empty")
		default:
			h.logger.Error("failed to send message", "thread_id", threadID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send message")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, msg)
}

// senderKind derives the sender kind from the authenticated principal.
// Everything behind the staff auth middleware is a staff sender; guest
// messages arrive through the guest gateway with the guest role.
func senderKind(r *http.Request) string {
	if role, ok := appcontext.ExtractRole(r.Context()); ok && role == "guest" {
		return "guest"
	}
	return "staff"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	})
}
