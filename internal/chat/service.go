// Package chat is the message broadcast core: it binds connections to users,
// accepts submissions and deletions, persists them and fans the results out to
// every bound connection.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/nfrund/goby-chat/internal/chat/events"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/pubsub"
	"github.com/nfrund/goby-chat/internal/session"
)

// Service owns the session registry and drives every chat operation.
type Service struct {
	gateway  domain.Gateway
	registry *session.Registry
	events   pubsub.Publisher
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher publishes created/deleted events after each successful operation.
func WithPublisher(p pubsub.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates the core over a gateway and a registry.
func NewService(gateway domain.Gateway, registry *session.Registry, opts ...Option) *Service {
	s := &Service{
		gateway:  gateway,
		registry: registry,
		logger:   slog.Default().With("service", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the session registry the service broadcasts to.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Login resolves username to a user, creating it on first use.
func (s *Service) Login(ctx context.Context, username string) (*domain.User, error) {
	name, err := domain.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	user, err := s.gateway.GetOrCreateUser(ctx, name)
	if err != nil {
		s.logger.ErrorContext(ctx, "get-or-create user failed", "username", name, "error", err)
		return nil, domain.Persistence("login", err)
	}
	return user, nil
}

// Connect binds connID to user. A nil user leaves the connection anonymous and
// returns false; anonymous connections receive no broadcasts.
func (s *Service) Connect(connID string, user *domain.User, sink session.Sink) bool {
	if user == nil {
		s.logger.Debug("anonymous connection", "conn_id", connID)
		return false
	}
	s.registry.Bind(connID, bindingFor(user), sink)
	s.logger.Info("connection bound", "conn_id", connID, "user_id", user.ID, "connections", s.registry.Len())
	return true
}

// Disconnect unbinds connID. Persisted data is untouched.
func (s *Service) Disconnect(connID string) {
	if s.registry.Unbind(connID) {
		s.logger.Info("connection unbound", "conn_id", connID, "connections", s.registry.Len())
	}
}

// Identify returns the user bound to connID.
func (s *Service) Identify(connID string) (*domain.User, bool) {
	b, ok := s.registry.Lookup(connID)
	if !ok {
		return nil, false
	}
	return &domain.User{ID: b.UserID, Username: b.Username, DisplayName: b.DisplayName}, true
}

// Submit persists a message from connID and broadcasts it to every bound
// connection, the sender included. Callers must not invoke Submit or Delete
// concurrently for one connection; the transport serializes them per connection.
//
// The write is detached from ctx cancellation so a disconnect during the call
// still completes the insert and the broadcast.
func (s *Service) Submit(ctx context.Context, connID, text, imageURL string) (*domain.Message, error) {
	b, ok := s.registry.Lookup(connID)
	if !ok {
		return nil, domain.Unauthenticated("submit")
	}

	draft, err := domain.NewDraft(text, imageURL)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	msg, err := s.gateway.InsertMessage(ctx, b.UserID, draft.Text, draft.ImageRef())
	if err != nil {
		s.logger.ErrorContext(ctx, "insert message failed", "conn_id", connID, "user_id", b.UserID, "error", err)
		return nil, domain.Persistence("submit", err)
	}
	msg.UserID = b.UserID
	msg.Username = b.Username
	msg.DisplayName = b.DisplayName

	s.broadcast(ctx, Envelope{Type: TypeNewMessage, Payload: msg})
	s.publishCreated(ctx, msg)
	return msg, nil
}

// Delete soft-deletes msgID on behalf of the user bound to connID.
func (s *Service) Delete(ctx context.Context, connID string, msgID int64) error {
	b, ok := s.registry.Lookup(connID)
	if !ok {
		return domain.Unauthenticated("delete")
	}
	return s.deleteMessage(ctx, b, msgID)
}

// DeleteAs soft-deletes msgID on behalf of user, for callers that hold a login
// identity without a live connection.
func (s *Service) DeleteAs(ctx context.Context, user *domain.User, msgID int64) error {
	if user == nil || user.ID == 0 {
		return domain.Unauthenticated("delete")
	}
	return s.deleteMessage(ctx, bindingFor(user), msgID)
}

// deleteMessage does not check whether the message exists or is already
// deleted. Every successful write is broadcast.
func (s *Service) deleteMessage(ctx context.Context, b session.Binding, msgID int64) error {
	if msgID <= 0 {
		return domain.Validation("delete", domain.CodeInvalidMessageID)
	}
	ctx = context.WithoutCancel(ctx)

	// Only needed to find the image to clean up.
	existing, err := s.gateway.GetMessage(ctx, msgID)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup before delete failed", "message_id", msgID, "error", err)
		existing = nil
	}

	if err := s.gateway.SoftDeleteMessage(ctx, msgID); err != nil {
		s.logger.ErrorContext(ctx, "soft delete failed", "message_id", msgID, "user_id", b.UserID, "error", err)
		return domain.Persistence("delete", err)
	}

	s.broadcast(ctx, Envelope{Type: TypeMessageDeleted, Payload: MessageDeleted{ID: msgID}})

	var imageURL string
	if existing != nil && existing.ImageURL != nil {
		imageURL = s.orphanedImage(ctx, msgID, *existing.ImageURL)
	}
	s.publish(ctx, func(ctx context.Context) error {
		return pubsub.Publish(ctx, s.events, events.TopicMessageDeleted, strconv.FormatInt(b.UserID, 10), events.MessageDeleted{
			MessageID: msgID,
			DeletedBy: b.UserID,
			ImageURL:  imageURL,
			Timestamp: time.Now().UTC(),
		})
	})
	return nil
}

// orphanedImage returns url when no active message references it any more, and
// "" otherwise. Image URLs are public, so another message may reuse one. A
// failed check keeps the file.
func (s *Service) orphanedImage(ctx context.Context, msgID int64, url string) string {
	n, err := s.gateway.CountActiveByImageURL(ctx, url)
	if err != nil {
		s.logger.WarnContext(ctx, "image reference check failed, keeping file", "message_id", msgID, "url", url, "error", err)
		return ""
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "image still referenced, keeping file", "message_id", msgID, "url", url, "references", n)
		return ""
	}
	return url
}

// History returns the active messages, oldest first.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.Message, error) {
	msgs, err := s.gateway.ListActiveMessages(ctx, domain.ClampHistoryLimit(limit))
	if err != nil {
		s.logger.ErrorContext(ctx, "list messages failed", "error", err)
		return nil, domain.Persistence("history", err)
	}
	return msgs, nil
}

// Shutdown drops every binding.
func (s *Service) Shutdown() {
	s.registry.Clear()
}

// broadcast encodes env once and queues it on every bound connection. It never
// blocks on a slow receiver.
func (s *Service) broadcast(ctx context.Context, env Envelope) int {
	frame, err := json.Marshal(env)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode broadcast frame", "type", env.Type, "error", err)
		return 0
	}

	delivered := 0
	for _, sess := range s.registry.Snapshot() {
		if sess.Sink == nil {
			continue
		}
		if sess.Sink.Send(frame) {
			delivered++
			continue
		}
		s.logger.WarnContext(ctx, "dropped broadcast frame", "type", env.Type, "conn_id", sess.ConnectionID)
	}
	s.logger.DebugContext(ctx, "broadcast", "type", env.Type, "delivered", delivered)
	return delivered
}

func (s *Service) publishCreated(ctx context.Context, msg *domain.Message) {
	var imageURL string
	if msg.ImageURL != nil {
		imageURL = *msg.ImageURL
	}
	s.publish(ctx, func(ctx context.Context) error {
		return pubsub.Publish(ctx, s.events, events.TopicMessageCreated, strconv.FormatInt(msg.UserID, 10), events.MessageCreated{
			MessageID: msg.ID,
			UserID:    msg.UserID,
			ImageURL:  imageURL,
			Timestamp: msg.CreatedAt,
		})
	})
}

// publish runs fn when an event bus is configured. Failures are logged only.
func (s *Service) publish(ctx context.Context, fn func(ctx context.Context) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.WarnContext(ctx, "publish chat event", "error", err)
	}
}

func bindingFor(u *domain.User) session.Binding {
	return session.Binding{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}
