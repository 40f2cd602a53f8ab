// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// InvalidatedEvent signals that authoritative server state changed.
	InvalidatedEvent EventType = "invalidated"
	// LoggedEvent carries a formatted log line.
	LoggedEvent EventType = "logged"
	// ChangedEvent signals a local change (e.g. a watched file was written).
	ChangedEvent EventType = "changed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
