// Package events provides the event model and the Postgres-backed
// publish/listen pipeline for real-time notifications.
package events

import (
	"encoding/json"
	"errors"
)

// Event type constants
const (
	EventTypeMessageCreated = "message_created"
	EventTypeThreadUpdated  = "thread_updated"
	EventTypeTicketUpdated  = "ticket_updated"
	EventTypeOrderUpdated   = "order_updated"
	EventTypeConnected      = "connected"
	EventTypePing           = "ping"
)

// DefaultEventName is the SSE event name used when an event carries no type.
const DefaultEventName = "message"

// Errors returned when decoding or validating events.
var (
	ErrNotAnObject    = errors.New("event payload is not a JSON object")
	ErrMissingHotelID = errors.New("event must carry a hotel_id")
)

// Event is a structured, immutable notification describing something that
// happened. Correlation fields are optional; Extra carries any additional
// payload fields verbatim so that publishers can attach arbitrary context
// without this package knowing about it.
type Event struct {
	Type       string
	HotelID    string
	ThreadID   string
	TicketID   string
	StayID     string
	Department string
	Extra      map[string]json.RawMessage
}

// knownKeys are the wire names of the typed fields above.
var knownKeys = []string{"type", "hotelId", "threadId", "ticketId", "stayId", "department"}

// MarshalJSON encodes the event as a flat JSON object, merging the typed
// fields with the opaque extras. A set typed field wins on key collision;
// an unset one leaves any same-named extra untouched, so extras that could
// not be promoted on decode survive the round trip.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+6)
	for k, v := range e.Extra {
		out[k] = v
	}
	setString := func(key, val string) error {
		if val == "" {
			return nil
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}
	if err := setString("type", e.Type); err != nil {
		return nil, err
	}
	if err := setString("hotelId", e.HotelID); err != nil {
		return nil, err
	}
	if err := setString("threadId", e.ThreadID); err != nil {
		return nil, err
	}
	if err := setString("ticketId", e.TicketID); err != nil {
		return nil, err
	}
	if err := setString("stayId", e.StayID); err != nil {
		return nil, err
	}
	if err := setString("department", e.Department); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat JSON object into typed fields plus extras.
// Non-object payloads fail; known keys holding non-string values are kept
// as extras rather than rejected.
func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ErrNotAnObject
	}
	if fields == nil {
		return ErrNotAnObject
	}

	take := func(key string) string {
		raw, ok := fields[key]
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		delete(fields, key)
		return s
	}

	e.Type = take("type")
	e.HotelID = take("hotelId")
	e.ThreadID = take("threadId")
	e.TicketID = take("ticketId")
	e.StayID = take("stayId")
	e.Department = take("department")
	if len(fields) > 0 {
		e.Extra = fields
	} else {
		e.Extra = nil
	}
	return nil
}

// Parse decodes a notification payload into an Event. The payload must be a
// JSON object; anything else is an error so the listener can drop it.
func Parse(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Name returns the SSE event name for this event: its type, or
// DefaultEventName when the type is absent.
func (e Event) Name() string {
	if e.Type == "" {
		return DefaultEventName
	}
	return e.Type
}
