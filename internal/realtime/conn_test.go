package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// failingWriter implements http.ResponseWriter and http.Flusher but fails
// every write, simulating a half-closed peer.
type failingWriter struct {
	header http.Header
}

func newFailingWriter() *failingWriter {
	return &failingWriter{header: make(http.Header)}
}

func (w *failingWriter) Header() http.Header         { return w.header }
func (w *failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }
func (w *failingWriter) WriteHeader(statusCode int)  {}
func (w *failingWriter) Flush()                      {}

func TestNewConnRequiresFlusher(t *testing.T) {
	// http.ResponseWriter without Flush
	type plainWriter struct{ http.ResponseWriter }

	if _, err := NewConn(plainWriter{}); !errors.Is(err, ErrStreamingNotSupported) {
		t.Errorf("expected ErrStreamingNotSupported, got %v", err)
	}
}

func TestWriteEventFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	conn, err := NewConn(rec)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	conn.WriteEvent("message_created", []byte(`{"hotelId":"h-1"}`))

	want := "event: message_created\ndata: {\"hotelId\":\"h-1\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("writer was not flushed")
	}
}

func TestWriteEventWithoutPayloadOmitsDataLine(t *testing.T) {
	rec := httptest.NewRecorder()
	conn, err := NewConn(rec)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	conn.WriteEvent("ping", nil)

	if got := rec.Body.String(); got != "event: ping\n\n" {
		t.Errorf("frame = %q", got)
	}
	if strings.Contains(rec.Body.String(), "data:") {
		t.Error("frame should not contain a data line")
	}
}

func TestWriteEventAfterCloseIsNoOp(t *testing.T) {
	rec := httptest.NewRecorder()
	conn, err := NewConn(rec)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	conn.Close()
	conn.WriteEvent("ping", nil)

	if rec.Body.Len() != 0 {
		t.Errorf("closed connection wrote %q", rec.Body.String())
	}
}

func TestWriteEventSwallowsWriteErrors(t *testing.T) {
	conn, err := NewConn(newFailingWriter())
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	// Must not panic and must leave the connection usable for Close
	conn.WriteEvent("message_created", []byte(`{}`))
	conn.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	conn, err := NewConn(rec)
	if err != nil {
		t.Fatalf("NewConn failed: %v", err)
	}

	conn.Close()
	conn.Close()

	if !conn.Closed() {
		t.Error("connection should report closed")
	}
	select {
	case <-conn.Done():
	default:
		t.Error("done channel should be closed")
	}
}
