package http

import (
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// Handlers agrupa los handlers HTTP que monta el router.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Media         *MediaHandler
}

// Services son las dependencias de dominio que consumen los handlers.
type Services struct {
	Auth          *service.Authenticator
	JWT           *service.JWTService
	Users         *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Media         *service.MediaService
}

// NewHandlers crea una instancia de Handlers con las dependencias necesarias.
func NewHandlers(logger *zap.Logger, svc Services) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Auth:          NewAuthHandler(logger, svc.Auth, svc.JWT),
		Users:         NewUserHandler(logger, svc.Users),
		Conversations: NewConversationHandler(logger, svc.Conversations, svc.Messages),
		Messages:      NewMessageHandler(logger, svc.Messages),
		Media:         NewMediaHandler(logger, svc.Media),
	}
}
