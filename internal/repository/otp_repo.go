package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-api/internal/domain"
)

type OTPRepository interface {
	Create(ctx context.Context, challenge domain.OtpChallenge) error
	LatestByPhone(ctx context.Context, phones []string) (domain.OtpChallenge, error)
	IncrementAttempts(ctx context.Context, id string) error
	DeleteByPhone(ctx context.Context, phones []string) error
}

type PgOTPRepository struct {
	pool *pgxpool.Pool
}

func NewPgOTPRepository(pool *pgxpool.Pool) *PgOTPRepository {
	return &PgOTPRepository{pool: pool}
}

func (r *PgOTPRepository) Create(ctx context.Context, challenge domain.OtpChallenge) error {
	const query = `
		INSERT INTO otp_challenges (id, phone_number, code_hash, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		challenge.ID,
		challenge.PhoneNumber,
		challenge.CodeHash,
		challenge.ExpiresAt,
		challenge.Attempts,
		challenge.CreatedAt,
	)
	return err
}

// LatestByPhone devuelve el desafío más reciente para cualquiera de las formas del número.
func (r *PgOTPRepository) LatestByPhone(ctx context.Context, phones []string) (domain.OtpChallenge, error) {
	const query = `
		SELECT id, phone_number, code_hash, expires_at, attempts, created_at
		FROM otp_challenges
		WHERE phone_number = ANY($1)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var c domain.OtpChallenge
	err := r.pool.QueryRow(ctx, query, phones).Scan(
		&c.ID,
		&c.PhoneNumber,
		&c.CodeHash,
		&c.ExpiresAt,
		&c.Attempts,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.OtpChallenge{}, err
	}
	return c, nil
}

func (r *PgOTPRepository) IncrementAttempts(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgOTPRepository) DeleteByPhone(ctx context.Context, phones []string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE phone_number = ANY($1)`, phones)
	return err
}
