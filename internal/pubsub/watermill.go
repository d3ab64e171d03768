package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Reserved watermill metadata keys.
const (
	metaUserID = "user_id"
	metaTopic  = "topic"
)

// WatermillBridge is the PubSub backed by watermill's in-memory GoChannel.
// Each subscription gets its own delivery goroutine, so a slow subscriber
// delays only its own topic.
type WatermillBridge struct {
	ch     *gochannel.GoChannel
	logger *slog.Logger
}

// NewWatermillBridge creates the bus. debug turns on watermill's own debug
// logging.
func NewWatermillBridge(debug bool) *WatermillBridge {
	return &WatermillBridge{
		ch: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(debug, false),
		),
		logger: slog.Default().With("component", "pubsub"),
	}
}

func toWatermill(ctx context.Context, msg Message) *message.Message {
	wm := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wm.Metadata.Set(k, v)
	}
	wm.Metadata.Set(metaUserID, msg.UserID)
	wm.Metadata.Set(metaTopic, msg.Topic)
	// Subscribers outlive the publishing request.
	wm.SetContext(context.WithoutCancel(ctx))
	return wm
}

func fromWatermill(wm *message.Message) Message {
	meta := maps.Clone(map[string]string(wm.Metadata))
	delete(meta, metaTopic)
	if meta[metaUserID] == "" {
		delete(meta, metaUserID)
	}
	return Message{
		Topic:    wm.Metadata.Get(metaTopic),
		UserID:   wm.Metadata.Get(metaUserID),
		Payload:  wm.Payload,
		Metadata: meta,
	}
}

// Publish delivers msg to every current subscriber of msg.Topic.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	if err := wb.ch.Publish(msg.Topic, toWatermill(ctx, msg)); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe starts delivering topic to handler. Handler errors and panics are
// logged and the message is acked; GoChannel would otherwise redeliver it
// forever.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.ch.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for wm := range messages {
			wb.deliver(topic, wm, handler)
			wm.Ack()
		}
		wb.logger.Debug("subscription ended", "topic", topic)
	}()
	return nil
}

func (wb *WatermillBridge) deliver(topic string, wm *message.Message, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			wb.logger.Error("subscriber panicked", "topic", topic, "msg_id", wm.UUID, "panic", r)
		}
	}()
	if err := handler(wm.Context(), fromWatermill(wm)); err != nil {
		wb.logger.Error("subscriber failed", "topic", topic, "msg_id", wm.UUID, "error", err)
	}
}

// Close shuts the bus down; open subscriptions end.
func (wb *WatermillBridge) Close() error {
	return wb.ch.Close()
}
