// Package events declares the chat topics published on the domain event bus.
package events

import (
	"time"

	"github.com/nfrund/goby-chat/internal/pubsub"
)

// MessageCreated is published after a new message was persisted and broadcast.
type MessageCreated struct {
	MessageID int64     `json:"messageID"`
	UserID    int64     `json:"userID"`
	ImageURL  string    `json:"imageURL,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageDeleted is published after a soft delete was persisted and broadcast.
// ImageURL is the image the deleted message referenced, if any.
type MessageDeleted struct {
	MessageID int64     `json:"messageID"`
	DeletedBy int64     `json:"deletedBy"`
	ImageURL  string    `json:"imageURL,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	TopicMessageCreated = pubsub.NewEvent[MessageCreated]("chat.message.created")
	TopicMessageDeleted = pubsub.NewEvent[MessageDeleted]("chat.message.deleted")
)
