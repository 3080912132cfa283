package attachment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/staywise/guest-services/backend/internal/repository"
)

// Error codes returned by attachment endpoints
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeMessageNotFound     = "MESSAGE_NOT_FOUND"
	CodeAttachmentNotFound  = "ATTACHMENT_NOT_FOUND"
	CodeAttachmentTooLarge  = "ATTACHMENT_TOO_LARGE"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
)

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

// Handler handles HTTP requests for chat attachments
type Handler struct {
	attachments repository.AttachmentRepositoryInterface
	messages    MessageGetter
	store       ObjectStore
	maxBytes    int64
	logger      *slog.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(attachments repository.AttachmentRepositoryInterface, messages MessageGetter, store ObjectStore, maxBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &Handler{
		attachments: attachments,
		messages:    messages,
		store:       store,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// Upload handles POST /api/v1/messages/{messageID}/attachments.
//
// The request is multipart/form-data with a single "file" part. The body
// goes to object storage first; metadata is only recorded once the upload
// succeeds, so a failed upload leaves no dangling row.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid message ID")
		return
	}

	message, err := h.messages.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			h.writeError(w, http.StatusNotFound, CodeMessageNotFound, "Message not found")
			return
		}
		h.logger.Error("failed to load message for attachment", "message_id", messageID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload attachment")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(w, http.StatusRequestEntityTooLarge, CodeAttachmentTooLarge,
			fmt.Sprintf("Attachment exceeds the %d byte limit", h.maxBytes))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if !ContentTypeAllowed(contentType) {
		h.writeError(w, http.StatusUnsupportedMediaType, CodeUnsupportedFileType,
			"File type not allowed")
		return
	}

	attachment := &repository.Attachment{
		ID:          uuid.New(),
		MessageID:   messageID,
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		SizeBytes:   header.Size,
	}
	attachment.StorageKey = fmt.Sprintf("attachments/%s/%s/%s",
		message.ThreadID, attachment.ID, attachment.Filename)

	if err := h.store.Upload(r.Context(), attachment.StorageKey, contentType, file, header.Size); err != nil {
		h.logger.Error("attachment upload failed", "message_id", messageID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload attachment")
		return
	}

	if err := h.attachments.Create(r.Context(), attachment); err != nil {
		h.logger.Error("failed to record attachment metadata", "message_id", messageID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to upload attachment")
		return
	}

	h.writeJSON(w, http.StatusCreated, toAttachmentResponse(*attachment))
}

// List handles GET /api/v1/messages/{messageID}/attachments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid message ID")
		return
	}

	attachments, err := h.attachments.ListByMessage(r.Context(), messageID)
	if err != nil {
		h.logger.Error("failed to list attachments", "message_id", messageID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list attachments")
		return
	}

	responses := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		responses = append(responses, toAttachmentResponse(a))
	}

	h.writeJSON(w, http.StatusOK, responses)
}

// Download handles GET /api/v1/attachments/{attachmentID}/download.
//
// Bodies are never streamed through the API. The response carries a
// pre-signed object-store URL the client fetches directly.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	attachmentID, err := uuid.Parse(chi.URLParam(r, "attachmentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid attachment ID")
		return
	}

	attachment, err := h.attachments.GetByID(r.Context(), attachmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			h.writeError(w, http.StatusNotFound, CodeAttachmentNotFound, "Attachment not found")
			return
		}
		h.logger.Error("failed to load attachment", "attachment_id", attachmentID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to download attachment")
		return
	}

	url, expiry, err := h.store.GetPresignedURL(r.Context(), attachment.StorageKey)
	if err != nil {
		h.logger.Error("failed to presign attachment URL", "attachment_id", attachmentID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to download attachment")
		return
	}

	h.writeJSON(w, http.StatusOK, DownloadResponse{
		URL:       url,
		ExpiresIn: int64(expiry.Seconds()),
	})
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
