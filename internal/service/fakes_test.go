package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"chat-api/internal/domain"
	"chat-api/internal/repository"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[string]domain.User
	createErr error
	creates   int
	updates   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.usersByID {
		if u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByPhone(_ context.Context, phones []string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *domain.User
	for _, u := range m.usersByID {
		if !slices.Contains(phones, u.PhoneNumber) {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return domain.User{}, pgx.ErrNoRows
	}
	return *found, nil
}

func (m *mockUserRepo) Update(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.updates++
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockUserRepo) Search(_ context.Context, excludeID, name, digits string, limit int) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.usersByID {
		if u.ID == excludeID {
			continue
		}
		byName := strings.Contains(strings.ToLower(u.DisplayName), strings.ToLower(name))
		byPhone := digits != "" && strings.Contains(u.PhoneNumber, digits)
		if byName || byPhone {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockOTPRepo struct {
	mu         sync.Mutex
	challenges []domain.OtpChallenge
}

func (m *mockOTPRepo) Create(_ context.Context, challenge domain.OtpChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges = append(m.challenges, challenge)
	return nil
}

func (m *mockOTPRepo) LatestByPhone(_ context.Context, phones []string) (domain.OtpChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i, c := range m.challenges {
		if !slices.Contains(phones, c.PhoneNumber) {
			continue
		}
		if idx == -1 || !c.CreatedAt.Before(m.challenges[idx].CreatedAt) {
			idx = i
		}
	}
	if idx == -1 {
		return domain.OtpChallenge{}, pgx.ErrNoRows
	}
	return m.challenges[idx], nil
}

func (m *mockOTPRepo) IncrementAttempts(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.challenges {
		if m.challenges[i].ID == id {
			m.challenges[i].Attempts++
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockOTPRepo) DeleteByPhone(_ context.Context, phones []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.challenges[:0]
	for _, c := range m.challenges {
		if !slices.Contains(phones, c.PhoneNumber) {
			kept = append(kept, c)
		}
	}
	m.challenges = kept
	return nil
}

func (m *mockOTPRepo) count(phone string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.challenges {
		if c.PhoneNumber == phone {
			n++
		}
	}
	return n
}

type mockConversationRepo struct {
	mu    sync.Mutex
	items map[string]domain.Conversation
}

func newMockConversationRepo() *mockConversationRepo {
	return &mockConversationRepo{items: make(map[string]domain.Conversation)}
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	c.Participants = slices.Clone(c.Participants)
	c.Admins = slices.Clone(c.Admins)
	return c
}

func (m *mockConversationRepo) Create(_ context.Context, conv domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[conv.ID] = cloneConversation(conv)
	return nil
}

func (m *mockConversationRepo) GetByID(_ context.Context, id string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.items[id]
	if !ok {
		return domain.Conversation{}, pgx.ErrNoRows
	}
	return cloneConversation(conv), nil
}

func (m *mockConversationRepo) FindDirect(_ context.Context, participants []string) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.items {
		if conv.IsGroup || len(conv.Participants) != len(participants) {
			continue
		}
		match := true
		for _, p := range participants {
			if !slices.Contains(conv.Participants, p) {
				match = false
				break
			}
		}
		if match {
			return cloneConversation(conv), nil
		}
	}
	return domain.Conversation{}, pgx.ErrNoRows
}

func (m *mockConversationRepo) ListByParticipant(_ context.Context, userID string) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, conv := range m.items {
		if slices.Contains(conv.Participants, userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	return out, nil
}

func (m *mockConversationRepo) Update(_ context.Context, conv domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[conv.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	conv.LastMessageID = stored.LastMessageID
	conv.LastMessageAt = stored.LastMessageAt
	m.items[conv.ID] = cloneConversation(conv)
	return nil
}

func (m *mockConversationRepo) SetLastMessage(_ context.Context, id string, messageID *string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockConversationRepo) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	return ok
}

type mockMessageRepo struct {
	mu    sync.Mutex
	items map[string]domain.Message
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{items: make(map[string]domain.Message)}
}

func (m *mockMessageRepo) Create(_ context.Context, message domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[message.ID] = message
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.items[id]
	if !ok {
		return domain.Message{}, pgx.ErrNoRows
	}
	return msg, nil
}

func (m *mockMessageRepo) Update(_ context.Context, message domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[message.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.items[message.ID] = message
	return nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockMessageRepo) DeleteByConversation(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, msg := range m.items {
		if msg.ConversationID == conversationID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockMessageRepo) ListByConversation(_ context.Context, conversationID string, before *time.Time, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockMessageRepo) count(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.items {
		if msg.ConversationID == conversationID {
			n++
		}
	}
	return n
}

type publishedEvent struct {
	Room    string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(room, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Room: room, Event: event, Payload: payload})
}

// rooms devuelve las salas que recibieron el evento, en orden.
func (p *recordingPublisher) rooms(event string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e.Room)
		}
	}
	return out
}

func (p *recordingPublisher) count(event string) int {
	return len(p.rooms(event))
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
