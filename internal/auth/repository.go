package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esakrissa/modern-isoner/internal/platform/db"
	"github.com/esakrissa/modern-isoner/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	CreateAccount(ctx context.Context, email, name, passwordHash string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateAccount inserts a new user row. Duplicate emails are a hard
// failure.
func (r *PGRepository) CreateAccount(ctx context.Context, email, name, passwordHash string) (Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, is_active, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, TRUE, NOW())
		RETURNING id, email, name, password_hash, is_active, created_at, last_login`,
		email, name, passwordHash).
		Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.IsActive, &acc.CreatedAt, &acc.LastLogin)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, shared.ErrDuplicate
		}
		return Account{}, err
	}
	return acc, nil
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, is_active, created_at, last_login FROM users WHERE email = $1`, email).
		Scan(&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.IsActive, &acc.CreatedAt, &acc.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// TouchLastLogin advances the last_login marker.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}
