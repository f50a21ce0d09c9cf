package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"goodwe-gateway/internal/domain"
)

// SQLiteUserRepository implementa UserRepository para despliegues de un solo nodo.
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, username, email, password_hash, verified, verification_code, reset_code, created_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.VerificationCode,
		user.ResetCode,
		toMillis(user.CreatedAt),
	)
	if isConstraintError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, username, email, password_hash, verified,
		       COALESCE(verification_code, ''), COALESCE(reset_code, ''), created_at
		FROM users
		WHERE email = ?
	`
	var (
		u         domain.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Verified,
		&u.VerificationCode,
		&u.ResetCode,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func (r *SQLiteUserRepository) MarkVerified(ctx context.Context, email, code string) error {
	const query = `
		UPDATE users
		SET verified = 1, verification_code = NULL
		WHERE email = ? AND verification_code = ?
	`
	return execOne(ctx, r.db, query, email, code)
}

func (r *SQLiteUserRepository) SetResetCode(ctx context.Context, email, code string) error {
	const query = `UPDATE users SET reset_code = ? WHERE email = ?`
	return execOne(ctx, r.db, query, code, email)
}

func (r *SQLiteUserRepository) ResetPassword(ctx context.Context, email, code, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = ?, reset_code = NULL
		WHERE email = ? AND reset_code = ?
	`
	return execOne(ctx, r.db, query, passwordHash, email, code)
}

// SQLitePowerDataRepository guarda el payload como texto JSON.
type SQLitePowerDataRepository struct {
	db *sql.DB
}

func NewSQLitePowerDataRepository(db *sql.DB) *SQLitePowerDataRepository {
	return &SQLitePowerDataRepository{db: db}
}

func (r *SQLitePowerDataRepository) Append(ctx context.Context, record domain.PowerDataRecord) error {
	const query = `
		INSERT INTO power_data (id, user_id, device_id, payload, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.DeviceID,
		string(record.Payload),
		toMillis(record.CapturedAt),
	)
	return err
}

func execOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
