package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultBridgeChannel = "chat:events"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type redisPubSubClient interface {
	redisPublisher
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type bridgeEnvelope struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisBridge reparte eventos entre instancias: Publish va a Redis y Run entrega
// lo recibido al Hub local. Implementa service.Publisher.
type RedisBridge struct {
	logger  *zap.Logger
	client  redisPublisher
	sub     func(ctx context.Context) *redis.PubSub
	local   *Hub
	channel string
}

func NewRedisBridge(logger *zap.Logger, client redisPubSubClient, local *Hub) *RedisBridge {
	b := newRedisBridge(logger, client, local)
	b.sub = func(ctx context.Context) *redis.PubSub {
		return client.Subscribe(ctx, b.channel)
	}
	return b
}

func newRedisBridge(logger *zap.Logger, client redisPublisher, local *Hub) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		logger:  logger,
		client:  client,
		local:   local,
		channel: defaultBridgeChannel,
	}
}

// Publish cae al Hub local si Redis no responde, para no perder la entrega en esta instancia.
func (b *RedisBridge) Publish(room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("marshal bridge payload", zap.Error(err), zap.String("event", event))
		return
	}
	msg, err := json.Marshal(bridgeEnvelope{Room: room, Event: event, Data: data})
	if err != nil {
		b.logger.Error("marshal bridge envelope", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.logger.Warn("redis publish failed, delivering locally", zap.Error(err), zap.String("room", room))
		b.local.Publish(room, event, json.RawMessage(data))
	}
}

// Run se suscribe al canal y bloquea hasta que ctx se cancele.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.sub(ctx)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

func (b *RedisBridge) deliver(raw string) {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Room == "" || env.Event == "" {
		b.logger.Warn("discarding malformed bridge message")
		return
	}
	b.local.Publish(env.Room, env.Event, env.Data)
}
