package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/goby-chat/internal/app"
	"github.com/nfrund/goby-chat/internal/chat"
	"github.com/nfrund/goby-chat/internal/domain"
	"github.com/nfrund/goby-chat/internal/testutils"
)

type frame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	a, err := app.New(ctx, testutils.SQLiteConfig(t))
	require.NoError(t, err)

	srv := New(a)
	ts := httptest.NewServer(srv.E)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(ctx)
	})
	return &testEnv{srv: srv, ts: ts}
}

func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()

	resp, err := http.Post(env.ts.URL+"/login", "application/json", strings.NewReader(`{"username":"`+username+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parts []string
	for _, c := range resp.Cookies() {
		parts = append(parts, c.Name+"="+c.Value)
	}
	require.NotEmpty(t, parts)
	return strings.Join(parts, "; ")
}

func (env *testEnv) dial(t *testing.T, cookie string) *websocket.Conn {
	t.Helper()

	before := env.srv.App.Chat.Registry().Len()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(context.Background(), wsURL, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })

	if cookie != "" {
		require.Eventually(t, func() bool {
			return env.srv.App.Chat.Registry().Len() == before+1
		}, 2*time.Second, 5*time.Millisecond)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// nextOfType skips frames until one of typ arrives.
func nextOfType(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	for {
		if f := readFrame(t, conn); f.Type == typ {
			return f
		}
	}
}

func TestHealth(t *testing.T) {
	env := setup(t)

	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestIndexPage(t *testing.T) {
	env := setup(t)

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/", nil)
	req.Header.Set("Accept-Language", "en-US")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), `lang="en"`)
}

// Alice and bob are both connected; alice's message reaches both and bob's
// delete removes it for both. The listing reflects each step.
func TestChatScenario(t *testing.T) {
	env := setup(t)

	alice := env.dial(t, env.login(t, "alice"))
	bob := env.dial(t, env.login(t, "bob"))

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "send_message", "ref": "a1", "payload": map[string]any{"text": "hello bob"},
	}))

	var sent domain.Message
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := nextOfType(t, conn, chat.TypeNewMessage)
		require.NoError(t, json.Unmarshal(f.Payload, &sent))
		assert.Equal(t, "hello bob", sent.Text)
		assert.Equal(t, "alice", sent.Username)
	}
	ack := nextOfType(t, alice, chat.TypeAck)
	assert.Equal(t, "a1", ack.Ref)

	resp, err := http.Get(env.ts.URL + "/messages")
	require.NoError(t, err)
	var listing struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	require.Len(t, listing.Messages, 1)
	assert.Equal(t, sent.ID, listing.Messages[0].ID)

	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": "delete_message", "ref": "b1", "payload": map[string]any{"id": sent.ID},
	}))
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := nextOfType(t, conn, chat.TypeMessageDeleted)
		var p chat.MessageDeleted
		require.NoError(t, json.Unmarshal(f.Payload, &p))
		assert.Equal(t, sent.ID, p.ID)
	}

	resp, err = http.Get(env.ts.URL + "/messages")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	assert.Empty(t, listing.Messages)
}

// An empty submission is answered with an error frame to the sender only and
// nothing is stored.
func TestEmptySubmitScenario(t *testing.T) {
	env := setup(t)

	alice := env.dial(t, env.login(t, "alice"))
	bob := env.dial(t, env.login(t, "bob"))

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "send_message", "ref": "e1", "payload": map[string]any{"text": "", "image_url": ""},
	}))
	f := readFrame(t, alice)
	require.Equal(t, chat.TypeError, f.Type)
	var p chat.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	assert.Equal(t, domain.CodeMessageEmpty, p.Code)

	// bob's next frame is the follow-up message, not the failed one.
	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"text": "second try"},
	}))
	f = readFrame(t, bob)
	require.Equal(t, chat.TypeNewMessage, f.Type)

	msgs, err := env.srv.App.Chat.History(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "second try", msgs[0].Text)
}

func TestAnonymousConnectionIsRejectedPerFrame(t *testing.T) {
	env := setup(t)

	member := env.dial(t, env.login(t, "alice"))
	anon := env.dial(t, "")

	require.NoError(t, anon.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"text": "sneaky"},
	}))
	f := readFrame(t, anon)
	require.Equal(t, chat.TypeError, f.Type)

	// The anonymous connection does not receive broadcasts either.
	require.NoError(t, member.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"text": "members only"},
	}))
	nextOfType(t, member, chat.TypeNewMessage)

	require.NoError(t, anon.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := anon.ReadMessage()
	assert.Error(t, err, "anonymous connection must not receive broadcasts")

	msgs, err := env.srv.App.Chat.History(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func (env *testEnv) upload(t *testing.T, cookie string) string {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	_, _ = part.Write(append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...))
	require.NoError(t, w.Close())

	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/upload-image", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Cookie", cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var uploaded struct {
		ImageURL string `json:"image_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	return uploaded.ImageURL
}

// imageStatus returns the status of GET url, or 0 when the request fails. It
// runs inside Eventually/Never conditions, so it must not call FailNow.
func (env *testEnv) imageStatus(url string) int {
	r, err := http.Get(env.ts.URL + url)
	if err != nil {
		return 0
	}
	r.Body.Close()
	return r.StatusCode
}

// Deleting a message with an image removes the stored file asynchronously.
func TestImageMessageLifecycle(t *testing.T) {
	env := setup(t)
	cookie := env.login(t, "alice")
	alice := env.dial(t, cookie)

	imageURL := env.upload(t, cookie)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"image_url": imageURL},
	}))
	var msg domain.Message
	require.NoError(t, json.Unmarshal(nextOfType(t, alice, chat.TypeNewMessage).Payload, &msg))
	require.NotNil(t, msg.ImageURL)

	imageStatus := func() int { return env.imageStatus(imageURL) }
	require.Equal(t, http.StatusOK, imageStatus())

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "delete_message", "payload": map[string]any{"id": msg.ID},
	}))
	nextOfType(t, alice, chat.TypeMessageDeleted)

	assert.Eventually(t, func() bool { return imageStatus() == http.StatusNotFound }, 3*time.Second, 20*time.Millisecond)
}

// A message reusing another user's image URL can be deleted without taking the
// image away from the original message.
func TestSharedImageSurvivesDelete(t *testing.T) {
	env := setup(t)
	aliceCookie := env.login(t, "alice")
	alice := env.dial(t, aliceCookie)
	bob := env.dial(t, env.login(t, "bob"))

	imageURL := env.upload(t, aliceCookie)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"image_url": imageURL},
	}))
	nextOfType(t, bob, chat.TypeNewMessage)

	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": "send_message", "payload": map[string]any{"text": "look", "image_url": imageURL},
	}))
	var borrowed domain.Message
	require.NoError(t, json.Unmarshal(nextOfType(t, bob, chat.TypeNewMessage).Payload, &borrowed))

	require.NoError(t, bob.WriteJSON(map[string]any{
		"type": "delete_message", "payload": map[string]any{"id": borrowed.ID},
	}))
	nextOfType(t, bob, chat.TypeMessageDeleted)

	// Cleanup runs asynchronously; give it time to act before checking.
	assert.Never(t, func() bool { return env.imageStatus(imageURL) != http.StatusOK }, 300*time.Millisecond, 20*time.Millisecond)

	msgs, err := env.srv.App.Chat.History(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ImageURL)
	assert.Equal(t, imageURL, *msgs[0].ImageURL)
}
