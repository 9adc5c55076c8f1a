package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chat-api/internal/domain"
)

// Frame es el sobre de todo mensaje saliente por el socket.
type Frame struct {
	Event string          `json:"event"`
	Ack   json.RawMessage `json:"ack,omitempty"`
	Data  any             `json:"data,omitempty"`
}

// Hub mantiene las salas locales del proceso y difunde eventos a sus clientes.
// Implementa service.Publisher.
type Hub struct {
	logger *zap.Logger
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// Join ignora clientes ya cerrados: un join tardío no debe resucitar una conexión muerta.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.trackRoom(room, true)
}

func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

// detach marca el cliente como cerrado y lo saca de todas sus salas bajo el mismo lock que Join.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(c.done)
	for _, room := range c.joinedRooms() {
		h.leaveLocked(room, c)
	}
}

// EvictUser saca de la sala todas las conexiones locales del usuario.
func (h *Hub) EvictUser(room, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		if c.userID == userID {
			h.leaveLocked(room, c)
		}
	}
}

// CloseRoom vacía la sala.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		h.leaveLocked(room, c)
	}
}

func (h *Hub) leaveLocked(room string, c *Client) {
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.trackRoom(room, false)
}

// Publish es fire-and-forget: un cliente con el buffer lleno se desconecta y pierde el evento.
func (h *Hub) Publish(room, event string, payload any) {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("marshal realtime event", zap.Error(err), zap.String("event", event))
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(b) {
			h.logger.Warn("dropping slow websocket client",
				zap.String("user_id", c.userID),
				zap.String("room", room),
			)
			go c.Close()
		}
	}

	h.applyMembership(room, event, b)
}

// applyMembership revoca la suscripción a la sala de una conversación cuando el
// usuario deja de participar o la conversación desaparece. Corre después de la entrega
// para que el afectado reciba el aviso.
func (h *Hub) applyMembership(room, event string, frame []byte) {
	if event != domain.EventConversationRemoved && event != domain.EventConversationDeleted {
		return
	}
	var ref struct {
		Data domain.ConversationRefEvent `json:"data"`
	}
	if err := json.Unmarshal(frame, &ref); err != nil || ref.Data.ConversationID == "" {
		return
	}
	convRoom := domain.ConversationRoom(ref.Data.ConversationID)

	switch event {
	case domain.EventConversationRemoved:
		if userID, ok := strings.CutPrefix(room, domain.UserRoom("")); ok {
			h.EvictUser(convRoom, userID)
		}
	case domain.EventConversationDeleted:
		h.CloseRoom(convRoom)
	}
}

// RoomSize devuelve cuántos clientes locales escuchan una sala.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
