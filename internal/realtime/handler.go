package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/staywise/guest-services/backend/internal/auth"
	"github.com/staywise/guest-services/backend/internal/config"
	"github.com/staywise/guest-services/backend/internal/events"
)

// Handler serves the push-stream endpoint. Authentication accepts both a
// query parameter and the Authorization header, since EventSource clients
// cannot set headers.
type Handler struct {
	config       config.RealtimeConfig
	registry     *Registry
	listener     *events.Listener
	tokenService *auth.TokenService
}

// NewHandler creates a new push-stream handler.
func NewHandler(cfg config.RealtimeConfig, registry *Registry, listener *events.Listener, tokenService *auth.TokenService) *Handler {
	return &Handler{
		config:       cfg,
		registry:     registry,
		listener:     listener,
		tokenService: tokenService,
	}
}

// HandleStream handles GET /api/v1/events/stream.
//
// The subscriber's filter comes from query parameters; unset parameters are
// wildcards. The principal's hotel scope is applied as the default hotel
// filter so a staff console only narrows further, never widens.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.writeUnauthorized(w)
		return
	}

	// The listener is lazy: the first open stream brings it up. If the
	// backing store is unreachable the client falls back to polling.
	if err := h.listener.Start(r.Context()); err != nil {
		http.Error(w, "Realtime delivery unavailable", http.StatusServiceUnavailable)
		return
	}

	filter := h.filterFromRequest(r, claims)

	conn, err := NewConn(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	unregister := h.registry.Register(filter, conn)
	defer unregister()
	defer conn.Close()

	h.sendConnected(conn)

	timeout := time.NewTimer(h.config.ConnectionTimeout)
	defer timeout.Stop()

	select {
	case <-r.Context().Done():
		// Client disconnected
	case <-conn.Done():
		// Connection closed by server (e.g., shutdown)
	case <-timeout.C:
		// Connection timeout; client is expected to reconnect
	}
}

// filterFromRequest builds the subscriber filter from query parameters,
// defaulting the hotel scope from the principal's claims.
func (h *Handler) filterFromRequest(r *http.Request, claims *auth.Claims) Filter {
	q := r.URL.Query()

	filter := Filter{
		HotelID:  q.Get("hotel_id"),
		StayID:   q.Get("stay_id"),
		ThreadID: q.Get("thread_id"),
		TicketID: q.Get("ticket_id"),
	}
	if filter.HotelID == "" {
		filter.HotelID = claims.HotelID
	}

	if raw := q.Get("departments"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				filter.Departments = append(filter.Departments, d)
			}
		}
	}

	return filter
}

// authenticate extracts and validates the JWT token from the request.
func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	tokenString := r.URL.Query().Get("token")

	if tokenString == "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims, err := h.tokenService.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// sendConnected writes the initial connected frame.
func (h *Handler) sendConnected(conn *Conn) {
	payload, err := json.Marshal(map[string]string{
		"time":    time.Now().UTC().Format(time.RFC3339),
		"message": "Connected to real-time notifications",
	})
	if err != nil {
		return
	}
	conn.WriteEvent(events.EventTypeConnected, payload)
}

// writeUnauthorized writes a 401 Unauthorized response.
func (h *Handler) writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    "AUTH_TOKEN_INVALID",
			"message": "Invalid or missing authentication token",
		},
		"timestamp": time.Now().UTC(),
	})
}
