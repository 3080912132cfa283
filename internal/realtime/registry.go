// Package realtime provides the in-process fan-out bus: a registry of open
// push connections, per-subscriber filter matching, SSE transport, and the
// keepalive scheduler.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staywise/guest-services/backend/internal/events"
	"github.com/staywise/guest-services/backend/internal/metrics"
)

// subscriber is one open push connection plus its delivery filter.
type subscriber struct {
	id     uuid.UUID
	filter Filter
	conn   *Conn
}

// Registry holds all active subscribers. It is an owned, injected component:
// register/unregister and dispatch share its mutex, sized for low contention
// since registrations are rare relative to dispatches.
type Registry struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*subscriber

	keepalive *keepalive
	logger    *slog.Logger
}

// NewRegistry creates a Registry whose keepalive scheduler runs at the given
// interval while subscribers exist.
func NewRegistry(heartbeatInterval time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:      make(map[uuid.UUID]*subscriber),
		keepalive: newKeepalive(heartbeatInterval),
		logger:    logger.With("component", "realtime_registry"),
	}
}

// Register adds a subscriber and returns its unregister function. The first
// registration starts the keepalive scheduler. The returned function is
// idempotent and must be invoked on every exit path of the connection.
func (r *Registry) Register(filter Filter, conn *Conn) (unregister func()) {
	id := uuid.New()

	r.mu.Lock()
	r.subs[id] = &subscriber{id: id, filter: filter, conn: conn}
	total := len(r.subs)
	// The scheduler transition happens under the registry mutex so a racing
	// unregister cannot order its stop ahead of this start.
	if total == 1 {
		r.keepalive.start(r.pingAll)
	}
	r.mu.Unlock()

	metrics.ActiveSubscribers.Set(float64(total))
	r.logger.Debug("subscriber registered", "subscriber_id", id, "total", total)

	return func() {
		r.unregister(id)
	}
}

// unregister removes a subscriber if present. Removing an absent subscriber
// is a no-op so that racing cleanup paths stay safe. Stops the keepalive
// scheduler when the registry becomes empty.
func (r *Registry) unregister(id uuid.UUID) {
	r.mu.Lock()
	_, present := r.subs[id]
	if present {
		delete(r.subs, id)
	}
	total := len(r.subs)
	if present && total == 0 {
		r.keepalive.stop()
	}
	r.mu.Unlock()

	if !present {
		return
	}

	metrics.ActiveSubscribers.Set(float64(total))
	r.logger.Debug("subscriber unregistered", "subscriber_id", id, "total", total)
}

// Dispatch delivers the event to every subscriber whose filter matches.
// The subscriber snapshot is taken under the lock; writes happen outside it
// and are fire-and-forget per connection, so one slow or dead peer cannot
// stall delivery to the others.
func (r *Registry) Dispatch(event events.Event) {
	r.mu.Lock()
	matched := make([]*Conn, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.filter.Matches(event) {
			matched = append(matched, sub.conn)
		}
	}
	r.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to encode event for delivery", "error", err)
		return
	}

	name := event.Name()
	for _, conn := range matched {
		conn.WriteEvent(name, data)
		metrics.EventsDispatchedTotal.WithLabelValues(name).Inc()
	}
}

// Len returns the number of registered subscribers, which tracks the number
// of currently open push connections exactly.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// KeepaliveActive reports whether the keepalive scheduler is running.
func (r *Registry) KeepaliveActive() bool {
	return r.keepalive.active()
}

// Close closes every open connection and stops the keepalive scheduler.
// Used during server shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.subs))
	for _, sub := range r.subs {
		conns = append(conns, sub.conn)
	}
	r.subs = make(map[uuid.UUID]*subscriber)
	r.keepalive.stop()
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	metrics.ActiveSubscribers.Set(0)
}

// pingAll writes a ping frame with the current timestamp to every open
// subscriber.
func (r *Registry) pingAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.subs))
	for _, sub := range r.subs {
		conns = append(conns, sub.conn)
	}
	r.mu.Unlock()

	payload, err := json.Marshal(map[string]string{
		"time": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	for _, conn := range conns {
		conn.WriteEvent(events.EventTypePing, payload)
		metrics.KeepalivePingsTotal.Inc()
	}
}
