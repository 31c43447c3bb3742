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

// The profile table holds at most one row, keyed by id = 1.
type ProfileRepository struct {
	DB      *sql.DB
	dialect Dialect
}

func NewSqliteProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{DB: db, dialect: SQLite}
}

func NewPostgresProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{DB: db, dialect: Postgres}
}

func (r *ProfileRepository) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	if r.DB == nil {
		return domain.UserProfile{}, errors.New("profile repository: DB is nil")
	}

	var p domain.UserProfile
	err := r.DB.QueryRowContext(ctx,
		`SELECT username, bio, picture, balance FROM profile WHERE id = 1;`,
	).Scan(&p.Username, &p.Bio, &p.ProfilePicture, &p.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", ports.ErrNotFound)
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, p domain.UserProfile) (err error) {
	defer obs.Time(ctx, "profile.Save")(&err)

	if r.DB == nil {
		return errors.New("profile repository: DB is nil")
	}

	var picture any
	if len(p.ProfilePicture) > 0 {
		picture = p.ProfilePicture
	}

	q := r.dialect.Rebind(`
	INSERT INTO profile (id, username, bio, picture, balance)
	VALUES (1, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET username = excluded.username,
		bio = excluded.bio,
		picture = excluded.picture,
		balance = excluded.balance;
	`)
	if _, err := r.DB.ExecContext(ctx, q, p.Username, p.Bio, picture, p.Balance); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
