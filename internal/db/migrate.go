package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"goodwe-gateway/internal/db/migrations"
)

// MigratePostgres aplica las migraciones embebidas usando el pool existente.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	// El *sql.DB toma conexiones del pool; el pool se cierra en main.
	sqlDB := stdlib.OpenDBFromPool(pool)
	return migrate(ctx, sqlDB, goose.DialectPostgres, "postgres")
}

func migrate(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("migrations dir %s: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
