package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staywise/guest-services/backend/internal/metrics"
)

// Dispatcher receives decoded events from the listener.
type Dispatcher interface {
	Dispatch(event Event)
}

// Listener owns the process-wide LISTEN connection. It is started lazily and
// at most one connection exists at a time; concurrent Start calls during
// establishment all await the same in-flight setup. A failed setup clears the
// in-flight marker so any later caller retries from scratch.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	dispatcher Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	running  bool
	starting chan struct{}
	startErr error
	cancel   context.CancelFunc
}

// NewListener creates a Listener for the given channel. Decoded events are
// handed to the dispatcher one at a time, in receipt order.
func NewListener(pool *pgxpool.Pool, channel string, dispatcher Dispatcher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		pool:       pool,
		channel:    channel,
		dispatcher: dispatcher,
		logger:     logger.With("component", "event_listener"),
	}
}

// Start establishes the LISTEN connection if it is not already up.
// Safe to call from any number of goroutines; all callers racing the same
// setup observe that setup's outcome. Returns once the subscription handshake
// has completed (or failed).
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	if l.starting != nil {
		ch := l.starting
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.running {
			return nil
		}
		return l.startErr
	}
	ch := make(chan struct{})
	l.starting = ch
	l.mu.Unlock()

	conn, err := l.acquireAndListen(ctx)

	l.mu.Lock()
	l.starting = nil
	l.startErr = err
	if err != nil {
		l.mu.Unlock()
		close(ch)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	l.running = true
	l.cancel = cancel
	l.mu.Unlock()
	close(ch)

	go l.receiveLoop(loopCtx, conn)
	return nil
}

// acquireAndListen takes a dedicated connection from the pool and subscribes
// it to the notification channel.
func (l *Listener) acquireAndListen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listener connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", l.channel, err)
	}

	l.logger.Info("listening for notifications", "channel", l.channel)
	return conn, nil
}

// receiveLoop processes notifications one at a time, in receipt order.
// Malformed payloads are dropped; they must never take the loop down.
func (l *Listener) receiveLoop(ctx context.Context, conn *pgxpool.Conn) {
	defer conn.Release()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			l.mu.Lock()
			l.running = false
			l.cancel = nil
			l.mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			// Connection failure: a later Start re-establishes the listener.
			l.logger.Error("notification listener stopped", "error", err)
			return
		}

		event, err := Parse([]byte(notification.Payload))
		if err != nil {
			metrics.EventsDroppedTotal.Inc()
			l.logger.Debug("dropping malformed notification", "error", err)
			continue
		}

		l.dispatcher.Dispatch(event)
	}
}

// Running reports whether the listener connection is currently up.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stop tears the listener down. Idempotent.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.running = false
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
