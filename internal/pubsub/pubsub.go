// Package pubsub is the in-process domain event bus. Side effects that must not
// hold up a chat operation (image cleanup, audit logging) subscribe here.
package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel, e.g. "chat.message.deleted".
	Topic string
	// UserID identifies the user who caused the event, if any.
	UserID string
	// Payload is the JSON encoded event.
	Payload []byte
	// Metadata carries arbitrary key-value context.
	Metadata map[string]string
}

// Handler processes a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe registers handler for topic. It returns once the subscription is
	// active; delivery stops when ctx is canceled or the bus is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// PubSub is both ends of the bus.
type PubSub interface {
	Publisher
	Subscriber
}
