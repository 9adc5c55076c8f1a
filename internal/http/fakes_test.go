package http

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"chat-api/internal/domain"
	"chat-api/internal/repository"
)

type mockUserRepo struct {
	usersByID map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	for _, u := range m.usersByID {
		if u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phones []string) (domain.User, error) {
	for _, u := range m.usersByID {
		if slices.Contains(phones, u.PhoneNumber) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Search(_ context.Context, excludeID, name, digits string, limit int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range m.usersByID {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.DisplayName), strings.ToLower(name)) ||
			(digits != "" && strings.Contains(u.PhoneNumber, digits)) {
			out = append(out, u)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockOTPRepo struct {
	challenges []domain.OtpChallenge
}

func (m *mockOTPRepo) Create(_ context.Context, challenge domain.OtpChallenge) error {
	m.challenges = append(m.challenges, challenge)
	return nil
}

func (m *mockOTPRepo) LatestByPhone(_ context.Context, phones []string) (domain.OtpChallenge, error) {
	for i := len(m.challenges) - 1; i >= 0; i-- {
		if slices.Contains(phones, m.challenges[i].PhoneNumber) {
			return m.challenges[i], nil
		}
	}
	return domain.OtpChallenge{}, pgx.ErrNoRows
}

func (m *mockOTPRepo) IncrementAttempts(_ context.Context, id string) error {
	for i := range m.challenges {
		if m.challenges[i].ID == id {
			m.challenges[i].Attempts++
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockOTPRepo) DeleteByPhone(_ context.Context, phones []string) error {
	m.challenges = slices.DeleteFunc(m.challenges, func(c domain.OtpChallenge) bool {
		return slices.Contains(phones, c.PhoneNumber)
	})
	return nil
}

type mockConversationRepo struct {
	items map[string]domain.Conversation
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{items: make(map[string]domain.Conversation)}
}

func (m *mockConversationRepo) Create(_ context.Context, conv domain.Conversation) error {
	m.items[conv.ID] = conv
	return nil
}

func (m *mockConversationRepo) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	conv, ok := m.items[id]
	if !ok {
		return domain.Conversation{}, pgx.ErrNoRows
	}
	conv.Participants = slices.Clone(conv.Participants)
	conv.Admins = slices.Clone(conv.Admins)
	return conv, nil
}

func (m *mockConversationRepo) FindDirect(_ context.Context, participants []string) (domain.Conversation, error) {
	for _, conv := range m.items {
		if conv.IsGroup || len(conv.Participants) != len(participants) {
			continue
		}
		if !slices.ContainsFunc(participants, func(p string) bool { return !slices.Contains(conv.Participants, p) }) {
			return conv, nil
		}
	}
	return domain.Conversation{}, pgx.ErrNoRows
}

func (m *mockConversationRepo) ListByParticipant(_ context.Context, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, conv := range m.items {
		if slices.Contains(conv.Participants, userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *mockConversationRepo) Update(_ context.Context, conv domain.Conversation) error {
	stored, ok := m.items[conv.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	conv.LastMessageID = stored.LastMessageID
	conv.LastMessageAt = stored.LastMessageAt
	m.items[conv.ID] = conv
	return nil
}

func (m *mockConversationRepo) SetLastMessage(_ context.Context, id string, messageID *string, at *time.Time) error {
	conv, ok := m.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	conv.LastMessageID = messageID
	conv.LastMessageAt = at
	m.items[id] = conv
	return nil
}

func (m *mockConversationRepo) Delete(_ context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type mockMessageRepo struct {
	items map[string]domain.Message
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{items: make(map[string]domain.Message)}
}

func (m *mockMessageRepo) Create(_ context.Context, message domain.Message) error {
	m.items[message.ID] = message
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	msg, ok := m.items[id]
	if !ok {
		return domain.Message{}, pgx.ErrNoRows
	}
	return msg, nil
}

func (m *mockMessageRepo) Update(_ context.Context, message domain.Message) error {
	if _, ok := m.items[message.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.items[message.ID] = message
	return nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func (m *mockMessageRepo) DeleteByConversation(_ context.Context, conversationID string) error {
	for id, msg := range m.items {
		if msg.ConversationID == conversationID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockMessageRepo) ListByConversation(_ context.Context, conversationID string, before *time.Time, limit int) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range m.items {
		if msg.ConversationID != conversationID {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockMessageRepo) Latest(ctx context.Context, conversationID string) (domain.Message, error) {
	msgs, _ := m.ListByConversation(ctx, conversationID, nil, 1)
	if len(msgs) == 0 {
		return domain.Message{}, pgx.ErrNoRows
	}
	return msgs[0], nil
}

type memoryMediaStore struct {
	saved map[string][]byte
}

func (s *memoryMediaStore) Save(_ context.Context, name string, data []byte) (string, error) {
	s.saved[name] = data
	return "https://cdn.example.com/uploads/" + name, nil
}
