package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             TEXT PRIMARY KEY,
		phone_number   TEXT NOT NULL UNIQUE,
		email          TEXT NOT NULL DEFAULT '',
		display_name   TEXT NOT NULL,
		avatar_url     TEXT NOT NULL DEFAULT '',
		status_message TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id                   TEXT PRIMARY KEY,
		title                TEXT NOT NULL DEFAULT '',
		creator_id           TEXT NOT NULL,
		participants         TEXT[] NOT NULL,
		admins               TEXT[] NOT NULL,
		is_group             BOOLEAN NOT NULL DEFAULT FALSE,
		is_private           BOOLEAN NOT NULL DEFAULT FALSE,
		admin_only_messaging BOOLEAN NOT NULL DEFAULT FALSE,
		last_message_id      TEXT,
		last_message_at      TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conversations_participants
	ON conversations USING GIN (participants)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id       TEXT NOT NULL,
		content         TEXT NOT NULL DEFAULT '',
		attachments     TEXT[] NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
	ON messages (conversation_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS otp_challenges (
		id           TEXT PRIMARY KEY,
		phone_number TEXT NOT NULL,
		code_hash    TEXT NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_otp_challenges_phone_created
	ON otp_challenges (phone_number, created_at DESC)`,
}

// Migrate aplica el esquema; cada sentencia es idempotente.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// PurgeExpiredChallenges borra desafíos OTP vencidos.
func PurgeExpiredChallenges(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM otp_challenges WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
