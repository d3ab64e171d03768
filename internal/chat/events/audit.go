package events

import (
	"context"
	"log/slog"

	"github.com/nfrund/goby-chat/internal/pubsub"
)

// SubscribeAudit logs every chat event at info level.
func SubscribeAudit(ctx context.Context, sub pubsub.Subscriber, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "chat-audit")

	if err := pubsub.Subscribe(ctx, sub, TopicMessageCreated, func(ctx context.Context, e MessageCreated) error {
		logger.Info("message created", "message_id", e.MessageID, "user_id", e.UserID, "has_image", e.ImageURL != "")
		return nil
	}); err != nil {
		return err
	}

	return pubsub.Subscribe(ctx, sub, TopicMessageDeleted, func(ctx context.Context, e MessageDeleted) error {
		logger.Info("message deleted", "message_id", e.MessageID, "deleted_by", e.DeletedBy)
		return nil
	})
}
