package events

import (
	"encoding/json"
	"testing"

	"pgregory.net/rapid"
)

func TestParseRejectsNonObjectPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"array", `[1,2,3]`},
		{"string", `"hello"`},
		{"number", `42`},
		{"null", `null`},
		{"truncated", `{"type":"message_created"`},
		{"empty", ``},
		{"garbage", `not json at all`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.payload)); err == nil {
				t.Errorf("expected error for payload %q", tc.payload)
			}
		})
	}
}

func TestParseExtractsTypedFields(t *testing.T) {
	payload := []byte(`{
		"type": "message_created",
		"hotelId": "h-1",
		"threadId": "t-1",
		"stayId": "s-1",
		"department": "housekeeping",
		"messageId": "m-1",
		"preview": "towels please"
	}`)

	ev, err := Parse(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Type != "message_created" {
		t.Errorf("type = %q", ev.Type)
	}
	if ev.HotelID != "h-1" || ev.ThreadID != "t-1" || ev.StayID != "s-1" {
		t.Errorf("correlation fields = %q %q %q", ev.HotelID, ev.ThreadID, ev.StayID)
	}
	if ev.Department != "housekeeping" {
		t.Errorf("department = %q", ev.Department)
	}
	if len(ev.Extra) != 2 {
		t.Fatalf("expected 2 extra fields, got %d", len(ev.Extra))
	}
	if string(ev.Extra["messageId"]) != `"m-1"` {
		t.Errorf("messageId extra = %s", ev.Extra["messageId"])
	}
}

// Known keys holding non-string values stay in Extra instead of being
// dropped or causing a parse failure.
func TestParseKeepsNonStringKnownKeysAsExtras(t *testing.T) {
	ev, err := Parse([]byte(`{"type": 7, "hotelId": "h-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != "" {
		t.Errorf("type = %q, want empty", ev.Type)
	}
	if string(ev.Extra["type"]) != "7" {
		t.Errorf("extra type = %s", ev.Extra["type"])
	}
}

// A known key holding a non-string value rides through decode as an extra;
// re-encoding must forward it verbatim instead of dropping it.
func TestNonStringKnownKeySurvivesRoundTrip(t *testing.T) {
	ev, err := Parse([]byte(`{"type": 7, "hotelId": "h-1", "note": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if string(fields["type"]) != "7" {
		t.Errorf("type = %s, want the original 7", fields["type"])
	}
	if string(fields["hotelId"]) != `"h-1"` {
		t.Errorf("hotelId = %s", fields["hotelId"])
	}
	if string(fields["note"]) != `"x"` {
		t.Errorf("note = %s", fields["note"])
	}
}

func TestNameFallsBackToDefault(t *testing.T) {
	if got := (Event{}).Name(); got != DefaultEventName {
		t.Errorf("Name() = %q, want %q", got, DefaultEventName)
	}
	if got := (Event{Type: "thread_updated"}).Name(); got != "thread_updated" {
		t.Errorf("Name() = %q", got)
	}
}

func TestMarshalOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Event{Type: "ping", HotelID: "h-1"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(fields) != 2 {
		t.Errorf("expected exactly type and hotelId, got %v", fields)
	}
}

func TestMarshalTypedFieldsWinCollisions(t *testing.T) {
	ev := Event{
		Type:    "message_created",
		HotelID: "h-1",
		Extra: map[string]json.RawMessage{
			"type": json.RawMessage(`"spoofed"`),
		},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if fields["type"] != "message_created" {
		t.Errorf("type = %q, typed field should win", fields["type"])
	}
}

// For any event, marshaling and parsing back yields the same typed fields
// and the same extras.
func TestEventRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ev := Event{
			Type:       rapid.SampledFrom([]string{"", "message_created", "thread_updated", "order_updated"}).Draw(t, "type"),
			HotelID:    rapid.StringMatching(`[a-z0-9-]{1,12}`).Draw(t, "hotelId"),
			ThreadID:   rapid.SampledFrom([]string{"", "thr-1", "thr-2"}).Draw(t, "threadId"),
			Department: rapid.SampledFrom([]string{"", "housekeeping", "concierge"}).Draw(t, "department"),
		}
		if rapid.Bool().Draw(t, "hasExtra") {
			ev.Extra = map[string]json.RawMessage{
				"count": json.RawMessage(`3`),
			}
		}

		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		parsed, err := Parse(data)
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		if parsed.Type != ev.Type || parsed.HotelID != ev.HotelID ||
			parsed.ThreadID != ev.ThreadID || parsed.Department != ev.Department {
			t.Errorf("typed fields changed: %+v -> %+v", ev, parsed)
		}
		if len(parsed.Extra) != len(ev.Extra) {
			t.Errorf("extras changed: %v -> %v", ev.Extra, parsed.Extra)
		}
	})
}
