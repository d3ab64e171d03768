package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/goby-chat/internal/chat"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/i18n"
	"github.com/nfrund/goby-chat/internal/middleware"
	chatsession "github.com/nfrund/goby-chat/internal/session"
	"github.com/nfrund/goby-chat/internal/testutils"
	ws "github.com/nfrund/goby-chat/internal/websocket"
)

type testFixture struct {
	svc    *chat.Service
	gw     *testutils.MemoryGateway
	server *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	gw := testutils.NewMemoryGateway()
	svc := chat.NewService(gw, chatsession.NewRegistry())
	handler := ws.NewHandler(svc, i18n.New("ja"))

	e := echo.New()
	e.Use(session.Middleware(middleware.NewCookieStore("test-secret")))
	e.Use(middleware.Identity)
	e.POST("/login", func(c echo.Context) error {
		user, err := svc.Login(c.Request().Context(), c.FormValue("username"))
		if err != nil {
			return err
		}
		return middleware.SetIdentity(c, user)
	})
	e.GET("/ws", handler.Serve)

	server := httptest.NewServer(e)
	t.Cleanup(func() {
		handler.Close()
		server.Close()
	})

	return &testFixture{svc: svc, gw: gw, server: server}
}

// login returns the Cookie header value of a logged-in session.
func (f *testFixture) login(t *testing.T, username string) string {
	t.Helper()

	resp, err := http.PostForm(f.server.URL+"/login", map[string][]string{"username": {username}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionName {
			return c.Name + "=" + c.Value
		}
	}
	t.Fatalf("no session cookie for %s", username)
	return ""
}

// dial opens a connection; cookie and lang may be empty.
func (f *testFixture) dial(t *testing.T, cookie, lang string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	if lang != "" {
		header.Set("Accept-Language", lang)
	}

	before := f.svc.Registry().Len()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, resp, err := websocket.Dial(context.Background(), wsURL, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test complete") })

	if cookie != "" {
		require.Eventually(t, func() bool { return f.svc.Registry().Len() == before+1 }, 2*time.Second, 5*time.Millisecond)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) testutils.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f testutils.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func readError(t *testing.T, conn *websocket.Conn) chat.ErrorPayload {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, chat.TypeError, f.Type)
	var p chat.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

func TestHandler_BroadcastsToEveryLoggedInConnection(t *testing.T) {
	f := setupTestFixture(t)

	alice := f.dial(t, f.login(t, "alice"), "")
	bob := f.dial(t, f.login(t, "bob"), "")

	send(t, alice, map[string]any{"type": "send_message", "ref": "r1", "payload": map[string]any{"text": "hello"}})

	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		require.Equal(t, chat.TypeNewMessage, frame.Type)
		var msg domain.Message
		require.NoError(t, json.Unmarshal(frame.Payload, &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "alice", msg.Username)
	}

	ack := readFrame(t, alice)
	assert.Equal(t, chat.TypeAck, ack.Type)
	assert.Equal(t, "r1", ack.Ref)
}

func TestHandler_DeleteBroadcastsRemoval(t *testing.T) {
	f := setupTestFixture(t)

	alice := f.dial(t, f.login(t, "alice"), "")
	bob := f.dial(t, f.login(t, "bob"), "")

	send(t, alice, map[string]any{"type": "send_message", "payload": map[string]any{"text": "bye"}})
	created := readFrame(t, bob)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(created.Payload, &msg))

	send(t, bob, map[string]any{"type": "delete_message", "ref": "d1", "payload": map[string]any{"id": msg.ID}})

	for {
		frame := readFrame(t, alice)
		if frame.Type != chat.TypeMessageDeleted {
			continue
		}
		var p chat.MessageDeleted
		require.NoError(t, json.Unmarshal(frame.Payload, &p))
		assert.Equal(t, msg.ID, p.ID)
		break
	}
	assert.Equal(t, 1, f.gw.CallCount("soft_delete_message"))
}

func TestHandler_AnonymousConnection(t *testing.T) {
	f := setupTestFixture(t)

	anon := f.dial(t, "", "")
	send(t, anon, map[string]any{"type": "send_message", "ref": "x", "payload": map[string]any{"text": "hi"}})

	p := readError(t, anon)
	assert.Equal(t, domain.CodeLoginRequired, p.Code)
	assert.Equal(t, "ログインが必要です", p.Message)
	assert.Equal(t, 0, f.gw.MessageCount())
	assert.Equal(t, 0, f.svc.Registry().Len())
}

func TestHandler_ErrorsAreLocalizedPerConnection(t *testing.T) {
	f := setupTestFixture(t)

	en := f.dial(t, f.login(t, "alice"), "en-US,en;q=0.9")
	other := f.dial(t, f.login(t, "bob"), "")

	send(t, en, map[string]any{"type": "send_message", "ref": "e1", "payload": map[string]any{"text": "   "}})

	p := readError(t, en)
	assert.Equal(t, domain.CodeMessageEmpty, p.Code)
	assert.Equal(t, "A message or an image is required", p.Message)

	// The failure is not broadcast: bob's next frame is alice's next message.
	send(t, en, map[string]any{"type": "send_message", "payload": map[string]any{"text": "ok"}})
	assert.Equal(t, chat.TypeNewMessage, readFrame(t, other).Type)
}

func TestHandler_RejectsMalformedFrames(t *testing.T) {
	f := setupTestFixture(t)
	conn := f.dial(t, f.login(t, "alice"), "en")

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("{not json")))
	assert.Equal(t, domain.CodeInvalidRequest, readError(t, conn).Code)

	send(t, conn, map[string]any{"type": "shout", "ref": "u1"})
	p := readError(t, conn)
	assert.Equal(t, domain.CodeUnknownAction, p.Code)

	send(t, conn, map[string]any{"type": "delete_message", "payload": map[string]any{"id": "seven"}})
	assert.Equal(t, domain.CodeInvalidMessageID, readError(t, conn).Code)

	send(t, conn, map[string]any{"type": "delete_message", "payload": map[string]any{"id": 0}})
	assert.Equal(t, domain.CodeInvalidMessageID, readError(t, conn).Code)

	assert.Equal(t, 0, f.gw.CallCount("soft_delete_message"))
}

func TestHandler_DisconnectUnbinds(t *testing.T) {
	f := setupTestFixture(t)

	conn := f.dial(t, f.login(t, "alice"), "")
	require.Equal(t, 1, f.svc.Registry().Len())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool { return f.svc.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_OrderIsPreservedPerConnection(t *testing.T) {
	f := setupTestFixture(t)

	alice := f.dial(t, f.login(t, "alice"), "")
	bob := f.dial(t, f.login(t, "bob"), "")

	const n = 20
	for i := 0; i < n; i++ {
		send(t, alice, map[string]any{"type": "send_message", "payload": map[string]any{"text": string(rune('a' + i))}})
	}

	var texts []string
	for len(texts) < n {
		frame := readFrame(t, bob)
		if frame.Type != chat.TypeNewMessage {
			continue
		}
		var msg domain.Message
		require.NoError(t, json.Unmarshal(frame.Payload, &msg))
		texts = append(texts, msg.Text)
	}
	for i, text := range texts {
		assert.Equal(t, string(rune('a'+i)), text)
	}
}
