package domain

// Eventos salientes del gateway en tiempo real.
const (
	EventMessageNew          = "message:new"
	EventMessageUpdated      = "message:updated"
	EventMessageDeleted      = "message:deleted"
	EventConversationCreated = "conversation:created"
	EventConversationUpdated = "conversation:updated"
	EventConversationDeleted = "conversation:deleted"
	EventConversationAdded   = "conversation:added"
	EventConversationRemoved = "conversation:removed"
)

// Eventos entrantes aceptados por el gateway.
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventMessageUpdate     = "message:update"
	EventMessageDelete     = "message:delete"
)

// ConversationRoom devuelve el canal de difusión de una conversación.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// UserRoom devuelve el canal privado de un usuario.
func UserRoom(userID string) string {
	return "user:" + userID
}

type ConversationEvent struct {
	Conversation Conversation `json:"conversation"`
}

type ConversationRefEvent struct {
	ConversationID string `json:"conversationId"`
}

type MessageEvent struct {
	Message Message `json:"message"`
}

type MessageDeletedEvent struct {
	MessageID      string  `json:"messageId"`
	ConversationID string  `json:"conversationId"`
	LastMessageID  *string `json:"lastMessageId,omitempty"`
}
