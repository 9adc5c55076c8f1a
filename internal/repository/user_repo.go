package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-api/internal/domain"
)

// ErrDuplicate indica una violación de unicidad en el almacenamiento.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByPhone(ctx context.Context, phones []string) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
	Search(ctx context.Context, excludeID, name, digits string, limit int) ([]domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, phone_number, email, display_name, avatar_url, status_message, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.PhoneNumber,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.StatusMessage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByPhone busca por cualquiera de las formas del número; gana el registro más antiguo.
func (r *PgUserRepository) GetByPhone(ctx context.Context, phones []string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE phone_number = ANY($1)
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanUser(r.pool.QueryRow(ctx, query, phones))
}

func (r *PgUserRepository) Update(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET phone_number = $2, email = $3, display_name = $4, avatar_url = $5,
		    status_message = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.PhoneNumber,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.StatusMessage,
		user.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) Search(ctx context.Context, excludeID, name, digits string, limit int) ([]domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id <> $1
		  AND (display_name ILIKE '%' || $2 || '%' OR ($3 <> '' AND phone_number LIKE '%' || $3 || '%'))
		ORDER BY display_name ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, excludeID, escapeLike(name), digits, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.PhoneNumber,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.StatusMessage,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
