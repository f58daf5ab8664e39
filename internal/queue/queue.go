package queue

import (
	"context"

	"mailroom/internal/domain"
)

const (
	// EventsExchange is the topic exchange delivery events fan out on.
	EventsExchange = "email.events"
)

// Publisher announces reconciled delivery events to interested
// consumers. Publishing is best effort: the pipeline's source of truth
// stays in Postgres and a broker outage never blocks reconciliation.
type Publisher interface {
	Publish(ctx context.Context, msg EmailEventMessage) error
	Close() error
}

// RoutingKey returns the topic routing key for an event type,
// e.g. email.delivered.
func RoutingKey(eventType domain.EventType) string {
	return "email." + eventType.String()
}

// NopPublisher discards every event. It backs deployments without a
// broker configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EmailEventMessage) error { return nil }

func (NopPublisher) Close() error { return nil }
