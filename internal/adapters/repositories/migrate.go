package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"snail-trail-service/internal/adapters/repositories/migrations"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded Postgres migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("run migrations: DB is nil")
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("run migrations: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
