package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staywise/guest-services/backend/internal/metrics"
)

// Publisher broadcasts events on a Postgres NOTIFY channel. It is
// fire-and-forget with respect to subscribers: a publish succeeds as soon as
// the broadcast is accepted by the database, regardless of who is listening.
type Publisher struct {
	pool    *pgxpool.Pool
	channel string
}

// NewPublisher creates a Publisher broadcasting on the given channel.
func NewPublisher(pool *pgxpool.Pool, channel string) *Publisher {
	return &Publisher{pool: pool, channel: channel}
}

// Publish serializes the event and issues a single pg_notify broadcast.
// Every event must carry a hotel scope. A failed broadcast surfaces to the
// caller: the triggering write has already committed by this point, so the
// failure means degraded realtime delivery, not a lost write.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.HotelID == "" {
		return ErrMissingHotelID
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to broadcast event: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(event.Name()).Inc()
	return nil
}
