package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chat-api/internal/domain"
	"chat-api/internal/service"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type fakeTokens map[string]string

func (f fakeTokens) ParseAccessToken(token string) (service.Claims, error) {
	userID, ok := f[token]
	if !ok {
		return service.Claims{}, service.ErrInvalidToken
	}
	return service.Claims{UserID: userID}, nil
}

type fakeAccess map[string][]string

func (f fakeAccess) EnsureParticipant(_ context.Context, id, userID string) error {
	participants, ok := f[id]
	if !ok {
		return service.ErrConversationNotFound
	}
	for _, p := range participants {
		if p == userID {
			return nil
		}
	}
	return service.ErrNotAParticipant
}

type fakeMessages struct {
	mu      sync.Mutex
	sendErr error
	sent    []service.SendMessageInput
}

func (f *fakeMessages) Send(_ context.Context, senderID string, input service.SendMessageInput) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return domain.Message{}, f.sendErr
	}
	f.sent = append(f.sent, input)
	return domain.Message{ID: "m1", ConversationID: input.ConversationID, SenderID: senderID, Content: input.Content}, nil
}

func (f *fakeMessages) Edit(_ context.Context, messageID, editorID string, input service.EditMessageInput) (domain.Message, error) {
	if editorID != "u1" {
		return domain.Message{}, service.ErrNotOwner
	}
	msg := domain.Message{ID: messageID, SenderID: editorID}
	if input.Content != nil {
		msg.Content = *input.Content
	}
	return msg, nil
}

func (f *fakeMessages) Delete(_ context.Context, messageID, _ string) (domain.MessageDeletedEvent, error) {
	return domain.MessageDeletedEvent{MessageID: messageID, ConversationID: "c1"}, nil
}

type gatewayFixture struct {
	hub      *Hub
	messages *fakeMessages
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	hub := NewHub(nil)
	msgs := &fakeMessages{}
	gw := NewGateway(nil, hub,
		fakeTokens{"token-u1": "u1", "token-u2": "u2"},
		fakeAccess{"c1": {"u1", "u3"}},
		msgs,
		nil,
	)
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return &gatewayFixture{hub: hub, messages: msgs, server: srv}
}

func (f *gatewayFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return f.hub.RoomSize("user:u1")+f.hub.RoomSize("user:u2") > 0 }, timeout, tick)
	return conn
}

type outbound struct {
	Event string          `json:"event"`
	Ack   json.RawMessage `json:"ack"`
	Data  map[string]any  `json:"data"`
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func nextFrame(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	var out outbound
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestGateway_RejectsMissingOrInvalidToken(t *testing.T) {
	f := newGatewayFixture(t)
	base := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?token=nope", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_AcceptsBearerHeader(t *testing.T) {
	f := newGatewayFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/"
	header := http.Header{"Authorization": []string{"Bearer token-u2"}}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.RoomSize("user:u2") == 1 }, timeout, tick)
}

func TestGateway_UserRoomReceivesEvents(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	f.hub.Publish("user:u1", domain.EventConversationAdded, domain.ConversationRefEvent{ConversationID: "c9"})

	out := nextFrame(t, conn)
	require.Equal(t, domain.EventConversationAdded, out.Event)
	require.Equal(t, "c9", out.Data["conversationId"])
}

func TestGateway_JoinChecksMembership(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"conversation:join","ack":1,"data":{"conversationId":"c2"}}`)
	out := nextFrame(t, conn)
	require.Equal(t, "ack", out.Event)
	require.JSONEq(t, `1`, string(out.Ack))
	require.Equal(t, false, out.Data["success"])
	require.Equal(t, service.ErrConversationNotFound.Message, out.Data["error"])

	sendFrame(t, conn, `{"event":"conversation:join","ack":2,"data":{"conversationId":"c1"}}`)
	out = nextFrame(t, conn)
	require.Equal(t, true, out.Data["success"])
	require.Equal(t, 1, f.hub.RoomSize("conversation:c1"))

	f.hub.Publish("conversation:c1", domain.EventMessageNew, domain.MessageEvent{Message: domain.Message{ID: "m7"}})
	out = nextFrame(t, conn)
	require.Equal(t, domain.EventMessageNew, out.Event)

	sendFrame(t, conn, `{"event":"conversation:leave","ack":3,"data":{"conversationId":"c1"}}`)
	out = nextFrame(t, conn)
	require.Equal(t, true, out.Data["success"])
	require.Equal(t, 0, f.hub.RoomSize("conversation:c1"))
}

func TestGateway_RemovedParticipantStopsReceivingRoomEvents(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"conversation:join","ack":1,"data":{"conversationId":"c1"}}`)
	require.Equal(t, true, nextFrame(t, conn).Data["success"])

	f.hub.Publish("user:u1", domain.EventConversationRemoved, domain.ConversationRefEvent{ConversationID: "c1"})
	out := nextFrame(t, conn)
	require.Equal(t, domain.EventConversationRemoved, out.Event)
	require.Equal(t, 0, f.hub.RoomSize("conversation:c1"))

	f.hub.Publish("conversation:c1", domain.EventMessageNew, domain.MessageEvent{Message: domain.Message{ID: "m8"}})
	f.hub.Publish("user:u1", "marker", nil)
	require.Equal(t, "marker", nextFrame(t, conn).Event)
}

func TestGateway_NonParticipantCannotJoin(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u2")

	sendFrame(t, conn, `{"event":"conversation:join","ack":"j1","data":{"conversationId":"c1"}}`)
	out := nextFrame(t, conn)
	require.JSONEq(t, `"j1"`, string(out.Ack))
	require.Equal(t, false, out.Data["success"])
	require.Equal(t, service.ErrNotAParticipant.Message, out.Data["error"])
	require.Equal(t, 0, f.hub.RoomSize("conversation:c1"))
}

func TestGateway_SendAcknowledgesOnce(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"message:send","data":{"conversationId":"c1","content":"sin ack"}}`)
	sendFrame(t, conn, `{"event":"message:send","ack":42,"data":{"conversationId":"c1","content":"hola"}}`)

	out := nextFrame(t, conn)
	require.Equal(t, "ack", out.Event)
	require.JSONEq(t, `42`, string(out.Ack))
	require.Equal(t, true, out.Data["success"])
	msg, ok := out.Data["message"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hola", msg["content"])

	f.messages.mu.Lock()
	require.Len(t, f.messages.sent, 2)
	f.messages.mu.Unlock()

	f.hub.Publish("user:u1", "marker", nil)
	require.Equal(t, "marker", nextFrame(t, conn).Event)
}

func TestGateway_UpdateAndDelete(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"message:update","ack":1,"data":{"messageId":"m1","content":"editado"}}`)
	out := nextFrame(t, conn)
	require.Equal(t, true, out.Data["success"])
	require.Equal(t, "editado", out.Data["message"].(map[string]any)["content"])

	sendFrame(t, conn, `{"event":"message:delete","ack":2,"data":{"messageId":"m1"}}`)
	out = nextFrame(t, conn)
	require.Equal(t, true, out.Data["success"])
	require.Equal(t, "m1", out.Data["messageId"])
	require.Equal(t, "c1", out.Data["conversationId"])
}

func TestGateway_InternalErrorsAreGeneric(t *testing.T) {
	f := newGatewayFixture(t)
	f.messages.sendErr = errors.New("pq: connection reset")
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"message:send","ack":1,"data":{"conversationId":"c1","content":"hola"}}`)
	out := nextFrame(t, conn)
	require.Equal(t, false, out.Data["success"])
	require.Equal(t, genericError, out.Data["error"])
}

func TestGateway_DomainErrorsKeepMessage(t *testing.T) {
	f := newGatewayFixture(t)
	f.messages.sendErr = service.ErrMessagingRestricted
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{"event":"message:send","ack":1,"data":{"conversationId":"c1","content":"hola"}}`)
	out := nextFrame(t, conn)
	require.Equal(t, service.ErrMessagingRestricted.Message, out.Data["error"])
}

func TestGateway_MalformedFrames(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	sendFrame(t, conn, `{not json`)
	out := nextFrame(t, conn)
	require.Equal(t, "error", out.Event)
	require.Equal(t, "invalid frame payload", out.Data["error"])

	sendFrame(t, conn, `{"event":"message:send","ack":1,"data":{"content":"sin conversacion"}}`)
	out = nextFrame(t, conn)
	require.Equal(t, service.ErrInvalidInput.Message, out.Data["error"])

	sendFrame(t, conn, `{"event":"typing:start","ack":2,"data":{}}`)
	out = nextFrame(t, conn)
	require.Equal(t, false, out.Data["success"])
	require.Equal(t, errUnsupportedEvent.Message, out.Data["error"])
}

func TestGateway_RateLimitAcksRejectedFrame(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")

	for i := 0; i < maxFramesPerSecond; i++ {
		sendFrame(t, conn, `{"event":"conversation:leave","data":{"conversationId":"c1"}}`)
	}
	sendFrame(t, conn, `{"event":"conversation:leave","ack":"over","data":{"conversationId":"c1"}}`)

	out := nextFrame(t, conn)
	require.Equal(t, "ack", out.Event)
	require.JSONEq(t, `"over"`, string(out.Ack))
	require.Equal(t, false, out.Data["success"])
	require.Equal(t, rateLimitedError, out.Data["error"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "unexpected error: %v", err)
	require.Eventually(t, func() bool { return f.hub.RoomSize("user:u1") == 0 }, timeout, tick)
}

func TestGateway_DisconnectLeavesRooms(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t, "token-u1")
	sendFrame(t, conn, `{"event":"conversation:join","ack":1,"data":{"conversationId":"c1"}}`)
	nextFrame(t, conn)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.hub.RoomSize("conversation:c1") == 0 && f.hub.RoomSize("user:u1") == 0
	}, timeout, tick)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	require.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	require.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	require.False(t, check(req))

	require.True(t, originChecker([]string{"*"})(req))
}
