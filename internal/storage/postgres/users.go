package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

type UserRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRepo(pool *pgxpool.Pool, logger *slog.Logger) *UserRepo {
	return &UserRepo{pool: pool, logger: logger}
}

// Create fails with ErrConflict when the email is already registered.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.User.Create"

	const query = `
		INSERT INTO users (id, name, email, password_hash, role, photo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		strings.ToLower(u.Email),
		u.PasswordHash,
		u.Role,
		u.Photo,
		u.CreatedAt,
	)
	if err != nil {
		werr := e.WrapError(ctx, op, err)
		if errors.Is(werr, e.ErrUniqueViolation) {
			return fmt.Errorf("%s: email taken: %w", op, e.ErrConflict)
		}
		r.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return werr
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.User.GetByEmail"

	const query = `
		SELECT id, name, email, password_hash, role, photo, created_at
		FROM users
		WHERE email = $1
	`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Photo, &u.CreatedAt,
	)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	return &u, nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.User.Get"

	const query = `
		SELECT id, name, email, password_hash, role, photo, created_at
		FROM users
		WHERE id = $1
	`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Photo, &u.CreatedAt,
	)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	return &u, nil
}
