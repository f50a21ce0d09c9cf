package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"goodwe-gateway/internal/domain"
)

const pgUniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
// Las operaciones de código son compare-and-set: solo afectan la fila si el código coincide.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	MarkVerified(ctx context.Context, email, code string) error
	SetResetCode(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, passwordHash string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, username, email, password_hash, verified, verification_code, reset_code, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.VerificationCode,
		user.ResetCode,
		user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, username, email, password_hash, verified,
		       COALESCE(verification_code, ''), COALESCE(reset_code, ''), created_at
		FROM users
		WHERE email = $1
	`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Verified,
		&u.VerificationCode,
		&u.ResetCode,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

func (r *PgUserRepository) MarkVerified(ctx context.Context, email, code string) error {
	const query = `
		UPDATE users
		SET verified = TRUE, verification_code = NULL
		WHERE email = $1 AND verification_code = $2
	`
	return r.execOne(ctx, query, email, code)
}

func (r *PgUserRepository) SetResetCode(ctx context.Context, email, code string) error {
	const query = `UPDATE users SET reset_code = $2 WHERE email = $1`
	return r.execOne(ctx, query, email, code)
}

func (r *PgUserRepository) ResetPassword(ctx context.Context, email, code, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $3, reset_code = NULL
		WHERE email = $1 AND reset_code = $2
	`
	return r.execOne(ctx, query, email, code, passwordHash)
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
