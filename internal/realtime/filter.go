package realtime

import (
	"github.com/staywise/guest-services/backend/internal/events"
)

// Filter is a subscriber's delivery criteria. An unset field matches any
// value; a subscriber with every field unset receives every event for every
// hotel. The registry does not enforce tenant isolation on its own — callers
// are responsible for supplying narrowing filters.
type Filter struct {
	HotelID     string
	StayID      string
	ThreadID    string
	TicketID    string
	Departments []string
}

// Matches reports whether the event should be delivered under this filter.
func (f Filter) Matches(event events.Event) bool {
	if f.HotelID != "" && f.HotelID != event.HotelID {
		return false
	}
	if f.StayID != "" && f.StayID != event.StayID {
		return false
	}
	if f.ThreadID != "" && f.ThreadID != event.ThreadID {
		return false
	}
	if f.TicketID != "" && f.TicketID != event.TicketID {
		return false
	}
	if len(f.Departments) > 0 {
		if event.Department == "" {
			return false
		}
		found := false
		for _, d := range f.Departments {
			if d == event.Department {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
