package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"snail-trail-service/internal/domain"
	"strings"
)

// Initialize the SQLite database schema. Postgres schemas are managed by
// goose migrations instead (see RunMigrations).
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createSnailsQuery := `
	CREATE TABLE IF NOT EXISTS snails (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		target_lat REAL NOT NULL,
		target_lon REAL NOT NULL,
		speed REAL NOT NULL CHECK (speed >= 0),
		color TEXT,
		follow_user INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	createProfileQuery := `
	CREATE TABLE IF NOT EXISTS profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		username TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		picture BLOB,
		balance REAL NOT NULL DEFAULT 0 CHECK (balance >= 0)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lon REAL NOT NULL
	);
	`

	statements := []string{
		createSnailsQuery,
		createProfileQuery,
		createGeocodeCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// ReadSeed parses a JSON array of persisted snail records. Seeded snails
// keep the fixed target given in the record.
func ReadSeed(jsonPath string) ([]domain.Snail, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("seed snails: read %q: %w", jsonPath, err)
	}

	var data []domain.Snail
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("seed snails: parse json: %w", err)
	}

	seen := make(map[string]struct{}, len(data))
	for i := range data {
		data[i].ID = strings.TrimSpace(data[i].ID)
		data[i].Name = strings.TrimSpace(data[i].Name)
		if data[i].Color != nil {
			c, err := domain.ParseColor(*data[i].Color)
			if err != nil {
				return nil, fmt.Errorf("seed snails: item at index %d: %w", i+1, err)
			}
			data[i].Color = &c
		}
		if err := data[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed snails: item at index %d: %w", i+1, err)
		}
		if _, dup := seen[data[i].ID]; dup {
			return nil, fmt.Errorf("seed snails: duplicate id %q at index %d", data[i].ID, i+1)
		}
		seen[data[i].ID] = struct{}{}
	}

	return data, nil
}

// Populate the snails table from a JSON seed file. Existing rows win, so
// restarting the server never rewinds snail positions.
func SeedFromJSON(ctx context.Context, db *sql.DB, dialect Dialect, jsonPath string) (int, error) {
	snails, err := ReadSeed(jsonPath)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed snails: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, dialect.Rebind(`
	INSERT INTO snails (id, name, lat, lon, target_lat, target_lon, speed, color, follow_user)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING;
	`))
	if err != nil {
		return 0, fmt.Errorf("seed snails: prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, s := range snails {
		res, err := stmt.ExecContext(ctx, snailArgs(s)...)
		if err != nil {
			return 0, fmt.Errorf("seed snails: insert id=%s: %w", s.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed snails: commit tx: %w", err)
	}

	return inserted, nil
}
