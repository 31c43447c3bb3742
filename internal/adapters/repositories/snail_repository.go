package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/platform/obs"
	"snail-trail-service/internal/ports"
)

// SQL-backed implementation of the SnailRepository port for SQLite and Postgres.
type SnailRepository struct {
	DB      *sql.DB
	dialect Dialect
}

func NewSqliteSnailRepository(db *sql.DB) *SnailRepository {
	return &SnailRepository{DB: db, dialect: SQLite}
}

func NewPostgresSnailRepository(db *sql.DB) *SnailRepository {
	return &SnailRepository{DB: db, dialect: Postgres}
}

const snailColumns = `id, name, lat, lon, target_lat, target_lon, speed, color, follow_user`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnail(row rowScanner) (domain.Snail, error) {
	var s domain.Snail
	var color sql.NullString
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Location.Latitude,
		&s.Location.Longitude,
		&s.TargetLocation.Latitude,
		&s.TargetLocation.Longitude,
		&s.Speed,
		&color,
		&s.FollowUser,
	)
	if err != nil {
		return domain.Snail{}, err
	}
	if color.Valid {
		c := color.String
		s.Color = &c
	}
	return s, nil
}

func snailArgs(s domain.Snail) []any {
	var color any
	if s.Color != nil {
		color = *s.Color
	}
	return []any{
		s.ID,
		s.Name,
		s.Location.Latitude,
		s.Location.Longitude,
		s.TargetLocation.Latitude,
		s.TargetLocation.Longitude,
		s.Speed,
		color,
		s.FollowUser,
	}
}

// Return all snails stored in the database.
func (r *SnailRepository) ListSnails(ctx context.Context) (_ []domain.Snail, err error) {
	defer obs.Time(ctx, "snails.List")(&err)

	if r.DB == nil {
		return nil, errors.New("snail repository: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT `+snailColumns+` FROM snails ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list snails: query snails table: %w", err)
	}
	defer rows.Close()

	snails := make([]domain.Snail, 0, 16)
	for rows.Next() {
		s, err := scanSnail(rows)
		if err != nil {
			return nil, fmt.Errorf("list snails: scan row: %w", err)
		}
		snails = append(snails, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snails: row iteration: %w", err)
	}

	return snails, nil
}

func (r *SnailRepository) GetSnail(ctx context.Context, id string) (domain.Snail, error) {
	if r.DB == nil {
		return domain.Snail{}, errors.New("snail repository: DB is nil")
	}

	row := r.DB.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+snailColumns+` FROM snails WHERE id = ?;`), id)
	s, err := scanSnail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snail{}, fmt.Errorf("get snail %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.Snail{}, fmt.Errorf("get snail %s: %w", id, err)
	}
	return s, nil
}

func (r *SnailRepository) SaveSnail(ctx context.Context, s domain.Snail) (err error) {
	defer obs.Time(ctx, "snails.Save")(&err)

	if r.DB == nil {
		return errors.New("snail repository: DB is nil")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("save snail: %w", err)
	}

	q := r.dialect.Rebind(`
	INSERT INTO snails (` + snailColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET name = excluded.name,
		lat = excluded.lat,
		lon = excluded.lon,
		target_lat = excluded.target_lat,
		target_lon = excluded.target_lon,
		speed = excluded.speed,
		color = excluded.color,
		follow_user = excluded.follow_user,
		updated_at = CURRENT_TIMESTAMP;
	`)

	if _, err := r.DB.ExecContext(ctx, q, snailArgs(s)...); err != nil {
		return fmt.Errorf("save snail id=%s: %w", s.ID, err)
	}
	return nil
}

func (r *SnailRepository) DeleteSnail(ctx context.Context, id string) error {
	if r.DB == nil {
		return errors.New("snail repository: DB is nil")
	}

	res, err := r.DB.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM snails WHERE id = ?;`), id)
	if err != nil {
		return fmt.Errorf("delete snail id=%s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snail id=%s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete snail id=%s: %w", id, ports.ErrNotFound)
	}
	return nil
}

// Persist locations and targets for many snails. Snails deleted in the
// meantime are skipped rather than resurrected.
func (r *SnailRepository) SavePositions(ctx context.Context, snails []domain.Snail) (err error) {
	defer obs.Time(ctx, "snails.SavePositions")(&err)

	if r.DB == nil {
		return errors.New("snail repository: DB is nil")
	}
	if len(snails) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save positions: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(`
	UPDATE snails
	SET lat = ?, lon = ?, target_lat = ?, target_lon = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?;
	`))
	if err != nil {
		return fmt.Errorf("save positions: db prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range snails {
		_, err := stmt.ExecContext(ctx,
			s.Location.Latitude, s.Location.Longitude,
			s.TargetLocation.Latitude, s.TargetLocation.Longitude,
			s.ID,
		)
		if err != nil {
			return fmt.Errorf("save positions id=%s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save positions commit: %w", err)
	}
	return nil
}
