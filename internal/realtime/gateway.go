package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"chat-api/internal/domain"
	"chat-api/internal/service"
)

const (
	actionTimeout      = 10 * time.Second
	maxFramesPerSecond = 20
	genericError       = "Something went wrong"
	rateLimitedError   = "Too many requests"
)

type TokenParser interface {
	ParseAccessToken(token string) (service.Claims, error)
}

type ConversationAccess interface {
	EnsureParticipant(ctx context.Context, id, userID string) error
}

type MessageActions interface {
	Send(ctx context.Context, senderID string, input service.SendMessageInput) (domain.Message, error)
	Edit(ctx context.Context, messageID, editorID string, input service.EditMessageInput) (domain.Message, error)
	Delete(ctx context.Context, messageID, requesterID string) (domain.MessageDeletedEvent, error)
}

// Gateway autentica conexiones WebSocket y traduce eventos entrantes a llamadas de servicio.
// Usa los mismos servicios que la API HTTP.
type Gateway struct {
	logger        *zap.Logger
	hub           *Hub
	tokens        TokenParser
	conversations ConversationAccess
	messages      MessageActions
	upgrader      websocket.Upgrader
}

func NewGateway(logger *zap.Logger, hub *Hub, tokens TokenParser, conversations ConversationAccess, messages MessageActions, allowedOrigins []string) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		logger:        logger,
		hub:           hub,
		tokens:        tokens,
		conversations: conversations,
		messages:      messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type object = map[string]any

type inboundFrame struct {
	Event string          `json:"event"`
	Ack   json.RawMessage `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type sendPayload struct {
	ConversationID string   `json:"conversationId"`
	Content        string   `json:"content"`
	Attachments    []string `json:"attachments"`
}

type updatePayload struct {
	MessageID   string    `json:"messageId"`
	Content     *string   `json:"content"`
	Attachments *[]string `json:"attachments"`
}

type messageRef struct {
	MessageID string `json:"messageId"`
}

// ServeHTTP rechaza con 401 antes del upgrade si la credencial no es válida.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	claims, err := g.tokens.ParseAccessToken(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(g.hub, conn, claims.UserID)
	g.hub.Join(domain.UserRoom(claims.UserID), client)
	g.logger.Info("websocket connected", zap.String("user_id", claims.UserID))

	go client.writePump()
	go client.readPump(g.rateLimited(g.handleFrame))
}

// rateLimited corta la conexión si el cliente supera maxFramesPerSecond. El frame
// rechazado recibe su ack de error antes del cierre.
func (g *Gateway) rateLimited(next func(*Client, []byte)) func(*Client, []byte) {
	windowStart := time.Now()
	frames := 0
	return func(c *Client, data []byte) {
		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			frames = 0
		}
		frames++
		if frames > maxFramesPerSecond {
			g.logger.Warn("websocket rate limit exceeded", zap.String("user_id", c.userID))
			var frame inboundFrame
			if json.Unmarshal(data, &frame) == nil && hasAck(frame.Ack) {
				g.write(c, Frame{Event: "ack", Ack: frame.Ack, Data: object{"success": false, "error": rateLimitedError}})
			}
			c.closeAfterFlush()
			return
		}
		next(c, data)
	}
}

func (g *Gateway) handleFrame(c *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		g.write(c, Frame{Event: "error", Data: object{"error": "invalid frame payload"}})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, actionTimeout)
	defer cancel()

	result, err := g.dispatch(ctx, c, frame)
	if !hasAck(frame.Ack) {
		if err != nil {
			g.logFailure(c, frame.Event, err)
		}
		return
	}

	if err != nil {
		g.write(c, Frame{Event: "ack", Ack: frame.Ack, Data: object{"success": false, "error": g.publicMessage(c, frame.Event, err)}})
		return
	}
	payload := object{"success": true}
	for k, v := range result {
		payload[k] = v
	}
	g.write(c, Frame{Event: "ack", Ack: frame.Ack, Data: payload})
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, frame inboundFrame) (object, error) {
	switch frame.Event {
	case domain.EventConversationJoin:
		var p conversationRef
		if err := decodeData(frame.Data, &p); err != nil || p.ConversationID == "" {
			return nil, service.ErrInvalidInput
		}
		if err := g.conversations.EnsureParticipant(ctx, p.ConversationID, c.userID); err != nil {
			return nil, err
		}
		room := domain.ConversationRoom(p.ConversationID)
		g.hub.Join(room, c)
		g.logger.Debug("joined conversation room",
			zap.String("user_id", c.userID),
			zap.String("room", room),
			zap.Int("room_size", g.hub.RoomSize(room)),
		)
		return object{"conversationId": p.ConversationID}, nil

	case domain.EventConversationLeave:
		var p conversationRef
		if err := decodeData(frame.Data, &p); err != nil || p.ConversationID == "" {
			return nil, service.ErrInvalidInput
		}
		g.hub.Leave(domain.ConversationRoom(p.ConversationID), c)
		return object{"conversationId": p.ConversationID}, nil

	case domain.EventMessageSend:
		var p sendPayload
		if err := decodeData(frame.Data, &p); err != nil || p.ConversationID == "" {
			return nil, service.ErrInvalidInput
		}
		msg, err := g.messages.Send(ctx, c.userID, service.SendMessageInput{
			ConversationID: p.ConversationID,
			Content:        p.Content,
			Attachments:    p.Attachments,
		})
		if err != nil {
			return nil, err
		}
		return object{"message": msg}, nil

	case domain.EventMessageUpdate:
		var p updatePayload
		if err := decodeData(frame.Data, &p); err != nil || p.MessageID == "" {
			return nil, service.ErrInvalidInput
		}
		msg, err := g.messages.Edit(ctx, p.MessageID, c.userID, service.EditMessageInput{
			Content:     p.Content,
			Attachments: p.Attachments,
		})
		if err != nil {
			return nil, err
		}
		return object{"message": msg}, nil

	case domain.EventMessageDelete:
		var p messageRef
		if err := decodeData(frame.Data, &p); err != nil || p.MessageID == "" {
			return nil, service.ErrInvalidInput
		}
		event, err := g.messages.Delete(ctx, p.MessageID, c.userID)
		if err != nil {
			return nil, err
		}
		return object{
			"messageId":      event.MessageID,
			"conversationId": event.ConversationID,
			"lastMessageId":  event.LastMessageID,
		}, nil

	default:
		return nil, errUnsupportedEvent
	}
}

var errUnsupportedEvent = &service.Error{Kind: service.KindValidation, Message: "Unsupported event"}

// publicMessage nunca expone el detalle de errores internos.
func (g *Gateway) publicMessage(c *Client, event string, err error) string {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	g.logFailure(c, event, err)
	return genericError
}

func (g *Gateway) logFailure(c *Client, event string, err error) {
	if service.KindOf(err) != service.KindInternal {
		return
	}
	g.logger.Error("websocket action failed",
		zap.Error(err),
		zap.String("event", event),
		zap.String("user_id", c.userID),
	)
}

func (g *Gateway) write(c *Client, frame Frame) {
	b, err := json.Marshal(frame)
	if err != nil {
		g.logger.Error("marshal websocket frame", zap.Error(err))
		return
	}
	if !c.enqueue(b) {
		go c.Close()
	}
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(raw, dst)
}

func hasAck(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}
