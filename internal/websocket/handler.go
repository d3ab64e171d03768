// Package websocket adapts live WebSocket connections to the chat service: it
// binds each connection, decodes client frames and answers with ack or error
// frames. Broadcasts reach the connection through its Client sink.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/goby-chat/internal/chat"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/i18n"
	"github.com/nfrund/goby-chat/internal/middleware"
)

const maxFrameBytes = 64 << 10

// Handler upgrades requests to WebSocket connections and serves them.
type Handler struct {
	chat       *chat.Service
	translator *i18n.Translator
	logger     *slog.Logger

	// base is canceled by Close to end every live connection.
	base   context.Context
	cancel context.CancelFunc
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *chat.Service, translator *i18n.Translator) *Handler {
	base, cancel := context.WithCancel(context.Background())
	return &Handler{
		chat:       svc,
		translator: translator,
		logger:     slog.Default().With("component", "websocket"),
		base:       base,
		cancel:     cancel,
	}
}

// Close ends all connections served by h.
func (h *Handler) Close() {
	h.cancel()
}

// Serve is the echo handler for the upgrade request. The login identity, when
// present, is taken from the request context and bound for the lifetime of the
// connection. Serve returns when the connection ends.
func (h *Handler) Serve(c echo.Context) error {
	user, _ := middleware.CurrentUser(c)
	lang := h.translator.Match(c.Request().Header.Get("Accept-Language"))

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already written the error response.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	client := newClient(uuid.NewString(), conn, lang, h.logger)
	h.chat.Connect(client.ID, user, client)

	go client.writePump(ctx)

	h.readPump(ctx, client)

	h.chat.Disconnect(client.ID)
	client.close()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

// readPump handles frames one at a time, so operations from one connection
// reach the service in the order they were sent.
func (h *Handler) readPump(ctx context.Context, client *Client) {
	for {
		typ, data, err := client.conn.Read(ctx)
		if err != nil {
			switch status := websocket.CloseStatus(err); {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				client.logger.Debug("websocket closed by client")
			case errors.Is(err, context.Canceled):
				client.logger.Debug("websocket closed by server")
			default:
				client.logger.Debug("websocket read ended", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			h.replyError(client, "", domain.Validation("read", domain.CodeInvalidRequest))
			continue
		}
		h.dispatch(ctx, client, data)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.replyError(client, "", domain.Validation("decode", domain.CodeInvalidRequest))
		return
	}

	switch in.Type {
	case ActionSendMessage:
		var p SendMessagePayload
		if err := decodePayload(in.Payload, &p); err != nil {
			h.replyError(client, in.Ref, domain.Validation(in.Type, domain.CodeInvalidRequest))
			return
		}
		msg, err := h.chat.Submit(ctx, client.ID, p.Text, p.ImageURL)
		if err != nil {
			h.replyError(client, in.Ref, err)
			return
		}
		h.reply(client, chat.Envelope{Type: chat.TypeAck, Ref: in.Ref, Payload: chat.AckPayload{ID: msg.ID}})

	case ActionDeleteMessage:
		var p DeleteMessagePayload
		if err := decodePayload(in.Payload, &p); err != nil {
			h.replyError(client, in.Ref, domain.Validation(in.Type, domain.CodeInvalidMessageID))
			return
		}
		if err := h.chat.Delete(ctx, client.ID, p.ID); err != nil {
			h.replyError(client, in.Ref, err)
			return
		}
		h.reply(client, chat.Envelope{Type: chat.TypeAck, Ref: in.Ref, Payload: chat.AckPayload{ID: p.ID}})

	default:
		h.replyError(client, in.Ref, domain.Validation("dispatch", domain.CodeUnknownAction))
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}

// replyError sends err, localized, to client only.
func (h *Handler) replyError(client *Client, ref string, err error) {
	code := domain.CodeOf(err)
	client.logger.Debug("operation rejected", "ref", ref, "code", code, "error", err)
	h.reply(client, chat.Envelope{
		Type: chat.TypeError,
		Ref:  ref,
		Payload: chat.ErrorPayload{
			Code:    code,
			Message: h.translator.Text(client.Lang, code),
		},
	})
}

func (h *Handler) reply(client *Client, env chat.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		client.logger.Error("encode frame", "type", env.Type, "error", err)
		return
	}
	client.Send(frame)
}
