package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"goodwe-gateway/internal/domain"
)

// PowerDataRepository guarda el histórico append-only de respuestas del portal.
type PowerDataRepository interface {
	Append(ctx context.Context, record domain.PowerDataRecord) error
}

// PgPowerDataRepository implementa PowerDataRepository sobre una columna JSONB.
type PgPowerDataRepository struct {
	pool *pgxpool.Pool
}

func NewPgPowerDataRepository(pool *pgxpool.Pool) *PgPowerDataRepository {
	return &PgPowerDataRepository{pool: pool}
}

func (r *PgPowerDataRepository) Append(ctx context.Context, record domain.PowerDataRecord) error {
	const query = `
		INSERT INTO power_data (id, user_id, device_id, payload, captured_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.DeviceID,
		record.Payload,
		record.CapturedAt,
	)
	return err
}
