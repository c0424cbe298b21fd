// Package eventbus defines the messaging contract between the geomail
// services. The API publishes workflow-due, pairing, and geofence events;
// the agent subscribes and reacts. Implementations back the contract with
// watermill channels (in-process or Kafka).
package eventbus

import (
	"context"

	"github.com/geomail/geomail/pkg/events"
)

// Event is anything routable by its event type.
type Event interface {
	GetType() events.EventType
}

// EventHandler reacts to one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventPublisher emits events keyed by workflow id so per-workflow ordering
// survives partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers handlers per event type and then consumes until
// the context ends.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventBus is the full contract a transport implementation provides.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
