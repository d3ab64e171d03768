package storage

import (
	"context"
	"log/slog"

	"github.com/nfrund/goby-chat/internal/chat/events"
	"github.com/nfrund/goby-chat/internal/pubsub"
)

// SubscribeCleanup removes the image of every deleted message. Failures are
// logged; the message stays deleted either way.
func SubscribeCleanup(ctx context.Context, sub pubsub.Subscriber, images *ImageService) error {
	logger := slog.Default().With("component", "image-cleanup")

	return pubsub.Subscribe(ctx, sub, events.TopicMessageDeleted, func(ctx context.Context, e events.MessageDeleted) error {
		if e.ImageURL == "" {
			return nil
		}
		if err := images.Remove(ctx, e.ImageURL); err != nil {
			logger.WarnContext(ctx, "image cleanup failed", "message_id", e.MessageID, "url", e.ImageURL, "error", err)
			return nil
		}
		logger.InfoContext(ctx, "image removed", "message_id", e.MessageID, "url", e.ImageURL)
		return nil
	})
}
