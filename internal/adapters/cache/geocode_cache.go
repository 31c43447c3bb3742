package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"snail-trail-service/internal/adapters/repositories"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/platform/obs"
	"strings"
)

// GeocodeCache is a SQL-backed address -> coordinate cache usable against
// both SQLite and Postgres. Address keys are expected to be normalized by
// the caller.
type GeocodeCache struct {
	DB      *sql.DB
	dialect repositories.Dialect
}

func NewSqliteGeocodeCache(db *sql.DB) *GeocodeCache {
	return &GeocodeCache{DB: db, dialect: repositories.SQLite}
}

func NewPostgresGeocodeCache(db *sql.DB) *GeocodeCache {
	return &GeocodeCache{DB: db, dialect: repositories.Postgres}
}

// Fetch cached coordinates for the given addresses. Misses are simply absent
// from the result.
func (c *GeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinate, err error) {
	defer obs.Time(ctx, "geocode.cache.GetMany")(&err)

	if c.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	uniq := dedupe(addresses)
	if len(uniq) == 0 {
		return map[string]domain.Coordinate{}, nil
	}

	var (
		q    string
		args []any
	)
	if c.dialect == repositories.Postgres {
		q = `SELECT address, lat, lon FROM geocode_cache WHERE address = ANY($1::text[]);`
		args = []any{uniq}
	} else {
		// SQLite cannot bind a slice; only the placeholder list is interpolated.
		q = fmt.Sprintf(
			`SELECT address, lat, lon FROM geocode_cache WHERE address IN (%s);`,
			strings.TrimSuffix(strings.Repeat("?,", len(uniq)), ","),
		)
		args = make([]any, 0, len(uniq))
		for _, a := range uniq {
			args = append(args, a)
		}
	}

	rows, err := c.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: query geocode_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Coordinate, len(uniq))
	for rows.Next() {
		var addr string
		var coord domain.Coordinate
		if err := rows.Scan(&addr, &coord.Latitude, &coord.Longitude); err != nil {
			return nil, fmt.Errorf("get geocode cache: scan rows: %w", err)
		}
		out[addr] = coord
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocode cache: row iteration: %w", err)
	}

	return out, nil
}

// Store address -> coordinate mappings, replacing existing entries.
func (c *GeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinate) error {
	if c.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	if len(results) == 0 {
		return nil
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert geocode cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, c.dialect.Rebind(`
	INSERT INTO geocode_cache (address, lat, lon)
	VALUES (?, ?, ?)
	ON CONFLICT (address) DO UPDATE
	SET lat = excluded.lat,
		lon = excluded.lon;
	`))
	if err != nil {
		return fmt.Errorf("insert geocode cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for addr, coord := range results {
		if strings.TrimSpace(addr) == "" {
			return errors.New("insert geocode cache: empty address key")
		}
		if err := coord.Validate(); err != nil {
			return fmt.Errorf("insert geocode cache address=%q: %w", addr, err)
		}

		if _, err := stmt.ExecContext(ctx, addr, coord.Latitude, coord.Longitude); err != nil {
			return fmt.Errorf("insert geocode cache address=%q: %w", addr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert geocode cache commit: %w", err)
	}

	return nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return uniq
}
