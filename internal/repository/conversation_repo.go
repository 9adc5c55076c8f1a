package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-api/internal/domain"
)

// ConversationRepository define la persistencia de conversaciones. Participantes
// y administradores entran y salen como ids planos.
type ConversationRepository interface {
	Create(ctx context.Context, conv domain.Conversation) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	FindDirect(ctx context.Context, participants []string) (domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)
	Update(ctx context.Context, conv domain.Conversation) error
	SetLastMessage(ctx context.Context, id string, messageID *string, at *time.Time) error
	Delete(ctx context.Context, id string) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

const conversationColumns = `id, title, creator_id, participants, admins, is_group, is_private,
	admin_only_messaging, last_message_id, last_message_at, created_at, updated_at`

func (r *PgConversationRepository) Create(ctx context.Context, conv domain.Conversation) error {
	const query = `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.Title,
		conv.CreatorID,
		nonNilStrings(conv.Participants),
		nonNilStrings(conv.Admins),
		conv.IsGroup,
		conv.IsPrivate,
		conv.AdminOnlyMessaging,
		conv.LastMessageID,
		conv.LastMessageAt,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

// FindDirect devuelve la conversación directa con exactamente ese conjunto de participantes.
func (r *PgConversationRepository) FindDirect(ctx context.Context, participants []string) (domain.Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE is_group = FALSE
		  AND cardinality(participants) = $2
		  AND participants @> $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanConversation(r.pool.QueryRow(ctx, query, participants, len(participants)))
}

func (r *PgConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE $1 = ANY(participants)
		ORDER BY COALESCE(last_message_at, updated_at) DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PgConversationRepository) Update(ctx context.Context, conv domain.Conversation) error {
	const query = `
		UPDATE conversations
		SET title = $2, participants = $3, admins = $4, is_group = $5, is_private = $6,
		    admin_only_messaging = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.Title,
		nonNilStrings(conv.Participants),
		nonNilStrings(conv.Admins),
		conv.IsGroup,
		conv.IsPrivate,
		conv.AdminOnlyMessaging,
		conv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgConversationRepository) SetLastMessage(ctx context.Context, id string, messageID *string, at *time.Time) error {
	const query = `
		UPDATE conversations
		SET last_message_id = $2, last_message_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, messageID, at)
	return err
}

func (r *PgConversationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.CreatorID,
		&c.Participants,
		&c.Admins,
		&c.IsGroup,
		&c.IsPrivate,
		&c.AdminOnlyMessaging,
		&c.LastMessageID,
		&c.LastMessageAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}
