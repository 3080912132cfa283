package realtime

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Conn is the write side of one open push stream. Writes are serialized, and
// failures are swallowed: a write error means a half-closed peer, and the
// peer's own close handling is responsible for deregistering it. One dead
// connection must never disturb delivery to the others.
type Conn struct {
	w       io.Writer
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewConn wraps an http.ResponseWriter as a push stream connection.
// Returns ErrStreamingNotSupported if the writer cannot flush.
func NewConn(w http.ResponseWriter) (*Conn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingNotSupported
	}
	return &Conn{
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}, nil
}

// WriteEvent writes one SSE frame: an event-name line, a data line when a
// payload is present, and a terminating blank line. No-op on a closed
// connection; any write error is discarded.
func (c *Conn) WriteEvent(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	var err error
	if len(data) > 0 {
		_, err = fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", name, data)
	} else {
		_, err = fmt.Fprintf(c.w, "event: %s\n\n", name)
	}
	if err != nil {
		return
	}
	c.flusher.Flush()
}

// Close marks the connection closed. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done returns a channel closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
