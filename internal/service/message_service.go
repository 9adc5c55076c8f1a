package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"chat-api/internal/domain"
	"chat-api/internal/repository"
)

const (
	editWindow            = 15 * time.Minute
	maxContentLength      = 4000
	defaultPageSize       = 50
	maxPageSize           = 100
	defaultMaxAttachments = 5
)

// MessageService maneja el ciclo de vida de los mensajes y mantiene el puntero
// lastMessage de la conversación.
type MessageService struct {
	logger         *zap.Logger
	conversations  repository.ConversationRepository
	messages       repository.MessageRepository
	publisher      Publisher
	maxAttachments int
	now            func() time.Time
}

func NewMessageService(logger *zap.Logger, conversations repository.ConversationRepository, messages repository.MessageRepository, publisher Publisher, maxAttachments int) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if maxAttachments <= 0 {
		maxAttachments = defaultMaxAttachments
	}
	return &MessageService{
		logger:         logger,
		conversations:  conversations,
		messages:       messages,
		publisher:      publisher,
		maxAttachments: maxAttachments,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Attachments    []string
}

// EditMessageInput: un campo nil conserva el valor guardado.
type EditMessageInput struct {
	Content     *string
	Attachments *[]string
}

type ListMessagesOptions struct {
	Limit  int
	Before *time.Time
}

func (s *MessageService) Send(ctx context.Context, senderID string, input SendMessageInput) (domain.Message, error) {
	conv, err := s.loadConversation(ctx, input.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conv.IsParticipant(senderID) {
		return domain.Message{}, ErrNotAParticipant
	}
	if conv.AdminOnlyMessaging && !conv.IsAdmin(senderID) {
		return domain.Message{}, ErrMessagingRestricted
	}

	content, attachments, err := s.sanitize(input.Content, input.Attachments)
	if err != nil {
		return domain.Message{}, err
	}

	now := s.now()
	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	if err := s.conversations.SetLastMessage(ctx, conv.ID, &msg.ID, &msg.CreatedAt); err != nil {
		return domain.Message{}, fmt.Errorf("update last message: %w", err)
	}

	s.broadcast(conv, domain.EventMessageNew, domain.MessageEvent{Message: msg})
	return msg, nil
}

// Edit solo lo puede hacer el remitente dentro de los 15 minutos desde la creación.
// Ediciones previas no renuevan la ventana.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID string, input EditMessageInput) (domain.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.SenderID != editorID {
		return domain.Message{}, ErrNotOwner
	}
	now := s.now()
	if now.Sub(msg.CreatedAt) > editWindow {
		return domain.Message{}, ErrEditWindowExpired
	}

	conv, err := s.loadConversation(ctx, msg.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if conv.AdminOnlyMessaging && !conv.IsAdmin(editorID) {
		return domain.Message{}, ErrMessagingRestricted
	}

	content := msg.Content
	if input.Content != nil {
		content = *input.Content
	}
	attachments := msg.Attachments
	if input.Attachments != nil {
		attachments = *input.Attachments
	}
	content, attachments, err = s.sanitize(content, attachments)
	if err != nil {
		return domain.Message{}, err
	}

	msg.Content = content
	msg.Attachments = attachments
	msg.UpdatedAt = now
	if err := s.messages.Update(ctx, msg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, ErrMessageNotFound
		}
		return domain.Message{}, fmt.Errorf("update message: %w", err)
	}

	s.broadcast(conv, domain.EventMessageUpdated, domain.MessageEvent{Message: msg})
	return msg, nil
}

// Delete lo permite al remitente, al creador o a cualquier admin. Si el mensaje era el
// lastMessage de la conversación, el puntero se recalcula antes de publicar.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID string) (domain.MessageDeletedEvent, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return domain.MessageDeletedEvent{}, err
	}
	conv, err := s.loadConversation(ctx, msg.ConversationID)
	if err != nil {
		return domain.MessageDeletedEvent{}, err
	}
	if msg.SenderID != requesterID && !conv.IsAdmin(requesterID) {
		return domain.MessageDeletedEvent{}, ErrForbidden
	}

	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return domain.MessageDeletedEvent{}, fmt.Errorf("delete message: %w", err)
	}

	lastID := conv.LastMessageID
	if lastID != nil && *lastID == msg.ID {
		lastID, err = s.recomputeLastMessage(ctx, conv.ID)
		if err != nil {
			return domain.MessageDeletedEvent{}, err
		}
	}

	event := domain.MessageDeletedEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		LastMessageID:  lastID,
	}
	s.broadcast(conv, domain.EventMessageDeleted, event)
	return event, nil
}

func (s *MessageService) List(ctx context.Context, conversationID, requesterID string, opts ListMessagesOptions) ([]domain.Message, error) {
	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(requesterID) {
		return nil, ErrNotAParticipant
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID, opts.Before, pageSize(opts.Limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *MessageService) Get(ctx context.Context, messageID, userID string) (domain.Message, error) {
	msg, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	conv, err := s.loadConversation(ctx, msg.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conv.IsParticipant(userID) {
		return domain.Message{}, ErrNotAParticipant
	}
	return msg, nil
}

func (s *MessageService) recomputeLastMessage(ctx context.Context, conversationID string) (*string, error) {
	latest, err := s.messages.Latest(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load latest message: %w", err)
		}
		if err := s.conversations.SetLastMessage(ctx, conversationID, nil, nil); err != nil {
			return nil, fmt.Errorf("clear last message: %w", err)
		}
		return nil, nil
	}
	if err := s.conversations.SetLastMessage(ctx, conversationID, &latest.ID, &latest.CreatedAt); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}
	return &latest.ID, nil
}

// sanitize recorta el contenido y valida adjuntos. Texto vacío solo vale con adjuntos.
func (s *MessageService) sanitize(content string, attachments []string) (string, []string, error) {
	content = strings.TrimSpace(content)
	attachments = lo.Compact(lo.Map(attachments, func(a string, _ int) string { return strings.TrimSpace(a) }))

	if content == "" && len(attachments) == 0 {
		return "", nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", nil, ErrContentTooLong
	}
	if len(attachments) > s.maxAttachments {
		return "", nil, ErrTooManyFiles
	}
	for _, a := range attachments {
		if !isHTTPURL(a) {
			return "", nil, ErrInvalidAttachment
		}
	}
	return content, attachments, nil
}

func (s *MessageService) loadConversation(ctx context.Context, id string) (domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, ErrConversationNotFound
		}
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *MessageService) loadMessage(ctx context.Context, id string) (domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, ErrMessageNotFound
		}
		return domain.Message{}, fmt.Errorf("load message: %w", err)
	}
	return msg, nil
}

// broadcast envía el evento a la sala de la conversación y al canal de cada participante.
func (s *MessageService) broadcast(conv domain.Conversation, event string, payload any) {
	s.publisher.Publish(domain.ConversationRoom(conv.ID), event, payload)
	publishToUsers(s.publisher, conv.Participants, event, payload)
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
