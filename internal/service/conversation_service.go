package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"chat-api/internal/domain"
	"chat-api/internal/repository"
)

const minParticipants = 2

// ConversationService es dueño de la membresía, los roles y los permisos de cada conversación.
// Cada mutación es leer, validar, escribir y publicar; no hay locks en proceso.
type ConversationService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	publisher     Publisher
	now           func() time.Time
}

func NewConversationService(logger *zap.Logger, conversations repository.ConversationRepository, messages repository.MessageRepository, publisher Publisher) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ConversationService{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateConversationInput struct {
	ParticipantIDs     []string
	Title              string
	IsPrivate          bool
	AdminOnlyMessaging bool
}

type AdminChanges struct {
	Add    []string
	Remove []string
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

func (s *ConversationService) Get(ctx context.Context, id, userID string) (domain.Conversation, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsParticipant(userID) {
		return domain.Conversation{}, ErrNotAParticipant
	}
	return conv, nil
}

// EnsureParticipant revalida la membresía actual; el gateway la usa antes de unir a una sala.
func (s *ConversationService) EnsureParticipant(ctx context.Context, id, userID string) error {
	_, err := s.Get(ctx, id, userID)
	return err
}

// Create devuelve la conversación directa existente si ya hay una con los mismos
// participantes; created indica si se insertó una nueva.
func (s *ConversationService) Create(ctx context.Context, creatorID string, input CreateConversationInput) (domain.Conversation, bool, error) {
	participants := normalizeIDs(append([]string{creatorID}, input.ParticipantIDs...))
	if len(participants) < minParticipants {
		return domain.Conversation{}, false, ErrInsufficientParticipants
	}

	title := strings.TrimSpace(input.Title)
	isGroup := domain.DeriveIsGroup(participants, title)

	if !isGroup {
		existing, err := s.conversations.FindDirect(ctx, participants)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, false, fmt.Errorf("find direct conversation: %w", err)
		}
	}

	now := s.now()
	conv := domain.Conversation{
		ID:                 uuid.NewString(),
		Title:              title,
		CreatorID:          creatorID,
		Participants:       participants,
		Admins:             []string{creatorID},
		IsGroup:            isGroup,
		IsPrivate:          isGroup && input.IsPrivate,
		AdminOnlyMessaging: isGroup && input.AdminOnlyMessaging,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("creator_id", creatorID),
		zap.Bool("is_group", isGroup),
	)
	s.broadcast(conv, domain.EventConversationCreated, domain.ConversationEvent{Conversation: conv}, conv.Participants)
	return conv, true, nil
}

// UpdateTitle: en conversaciones directas solo el creador puede renombrar; en grupos, cualquier participante.
func (s *ConversationService) UpdateTitle(ctx context.Context, id, userID, title string) (domain.Conversation, error) {
	conv, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsGroup && conv.CreatorID != userID {
		return domain.Conversation{}, ErrNotCreator
	}

	conv.Title = strings.TrimSpace(title)
	conv.IsGroup = domain.DeriveIsGroup(conv.Participants, conv.Title)
	if err := s.save(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}

	s.broadcast(conv, domain.EventConversationUpdated, domain.ConversationEvent{Conversation: conv}, conv.Participants)
	return conv, nil
}

// AddParticipants agrega los ids que aún no son miembros. Sin ids nuevos es un no-op sin evento.
func (s *ConversationService) AddParticipants(ctx context.Context, id, requesterID string, userIDs []string) (domain.Conversation, error) {
	conv, err := s.requireAdmin(ctx, id, requesterID)
	if err != nil {
		return domain.Conversation{}, err
	}

	added := lo.Without(normalizeIDs(userIDs), conv.Participants...)
	if len(added) == 0 {
		return conv, nil
	}

	existing := conv.Participants
	conv.Participants = append(append([]string{}, conv.Participants...), added...)
	conv.IsGroup = true
	if err := s.save(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}

	s.logger.Info("participants added",
		zap.String("conversation_id", conv.ID),
		zap.Strings("user_ids", added),
	)
	payload := domain.ConversationEvent{Conversation: conv}
	s.broadcast(conv, domain.EventConversationUpdated, payload, existing)
	publishToUsers(s.publisher, added, domain.EventConversationAdded, payload)
	return conv, nil
}

// RemoveParticipant quita a targetID. Si quedan menos de dos participantes la conversación
// se elimina y deleted es true.
func (s *ConversationService) RemoveParticipant(ctx context.Context, id, requesterID, targetID string) (conv domain.Conversation, deleted bool, err error) {
	conv, err = s.Get(ctx, id, requesterID)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if requesterID != targetID && !conv.IsAdmin(requesterID) {
		return domain.Conversation{}, false, ErrNotAdmin
	}
	if targetID == conv.CreatorID {
		return domain.Conversation{}, false, ErrCreatorImmutable
	}
	if !conv.IsParticipant(targetID) {
		return domain.Conversation{}, false, ErrTargetNotParticipant
	}

	remaining := lo.Without(conv.Participants, targetID)
	if len(remaining) < minParticipants {
		if err := s.deleteCascade(ctx, conv); err != nil {
			return domain.Conversation{}, false, err
		}
		return conv, true, nil
	}

	conv.Participants = remaining
	conv.Admins = ensureCreatorAdmin(lo.Without(conv.Admins, targetID), conv.CreatorID)
	if err := s.save(ctx, &conv); err != nil {
		return domain.Conversation{}, false, err
	}

	s.logger.Info("participant removed",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", targetID),
	)
	s.broadcast(conv, domain.EventConversationUpdated, domain.ConversationEvent{Conversation: conv}, conv.Participants)
	s.publisher.Publish(domain.UserRoom(targetID), domain.EventConversationRemoved, domain.ConversationRefEvent{ConversationID: conv.ID})
	return conv, false, nil
}

func (s *ConversationService) UpdateAdmins(ctx context.Context, id, requesterID string, changes AdminChanges) (domain.Conversation, error) {
	conv, err := s.requireAdmin(ctx, id, requesterID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsGroup {
		return domain.Conversation{}, ErrNotAGroup
	}

	add := normalizeIDs(changes.Add)
	remove := normalizeIDs(changes.Remove)
	if len(add) == 0 && len(remove) == 0 {
		return domain.Conversation{}, ErrNoAdminChanges
	}
	for _, uid := range add {
		if !conv.IsParticipant(uid) {
			return domain.Conversation{}, ErrTargetNotParticipant
		}
	}
	if lo.Contains(remove, conv.CreatorID) {
		return domain.Conversation{}, ErrCreatorImmutable
	}

	next := lo.Uniq(append(append([]string{}, conv.Admins...), add...))
	next = ensureCreatorAdmin(lo.Without(next, remove...), conv.CreatorID)
	if sameSet(next, conv.Admins) {
		return conv, nil
	}

	conv.Admins = next
	if err := s.save(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}

	s.broadcast(conv, domain.EventConversationUpdated, domain.ConversationEvent{Conversation: conv}, conv.Participants)
	return conv, nil
}

func (s *ConversationService) SetAdminOnlyMessaging(ctx context.Context, id, requesterID string, enabled bool) (domain.Conversation, error) {
	conv, err := s.requireAdmin(ctx, id, requesterID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsGroup {
		return domain.Conversation{}, ErrNotAGroup
	}
	if conv.AdminOnlyMessaging == enabled {
		return conv, nil
	}

	conv.AdminOnlyMessaging = enabled
	if err := s.save(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}

	s.broadcast(conv, domain.EventConversationUpdated, domain.ConversationEvent{Conversation: conv}, conv.Participants)
	return conv, nil
}

// Delete solo lo puede ejecutar el creador.
func (s *ConversationService) Delete(ctx context.Context, id, requesterID string) error {
	conv, err := s.Get(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if conv.CreatorID != requesterID {
		return ErrNotCreator
	}
	return s.deleteCascade(ctx, conv)
}

// deleteCascade borra mensajes y conversación sin chequear permisos; el llamador ya decidió.
func (s *ConversationService) deleteCascade(ctx context.Context, conv domain.Conversation) error {
	if err := s.messages.DeleteByConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete conversation messages: %w", err)
	}
	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.Info("conversation deleted", zap.String("conversation_id", conv.ID))
	s.broadcast(conv, domain.EventConversationDeleted, domain.ConversationRefEvent{ConversationID: conv.ID}, conv.Participants)
	return nil
}

func (s *ConversationService) load(ctx context.Context, id string) (domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, ErrConversationNotFound
		}
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

func (s *ConversationService) requireAdmin(ctx context.Context, id, userID string) (domain.Conversation, error) {
	conv, err := s.Get(ctx, id, userID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.IsAdmin(userID) {
		return domain.Conversation{}, ErrNotAdmin
	}
	return conv, nil
}

func (s *ConversationService) save(ctx context.Context, conv *domain.Conversation) error {
	conv.UpdatedAt = s.now()
	if err := s.conversations.Update(ctx, *conv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

// broadcast publica en la sala de la conversación y en el canal privado de cada usuario indicado.
func (s *ConversationService) broadcast(conv domain.Conversation, event string, payload any, users []string) {
	s.publisher.Publish(domain.ConversationRoom(conv.ID), event, payload)
	publishToUsers(s.publisher, users, event, payload)
}

func normalizeIDs(ids []string) []string {
	trimmed := lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })
	return lo.Uniq(lo.Compact(trimmed))
}

func ensureCreatorAdmin(admins []string, creatorID string) []string {
	if lo.Contains(admins, creatorID) {
		return admins
	}
	return append([]string{creatorID}, admins...)
}

func sameSet(a, b []string) bool {
	left, right := lo.Uniq(a), lo.Uniq(b)
	return len(left) == len(right) && lo.Every(left, right)
}
