package repositories

import (
	"context"
	"os"
	"path/filepath"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/platform/db"
	"snail-trail-service/internal/ports"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SnailRepository {
	t.Helper()
	ctx := context.Background()

	sqlDB, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, InitSchema(ctx, sqlDB))
	return NewSqliteSnailRepository(sqlDB)
}

func testSnail(id string) domain.Snail {
	color := "#00FF00"
	return domain.Snail{
		ID:             id,
		Name:           "Snail " + id,
		Location:       domain.Coordinate{Latitude: 37.3349, Longitude: -122.0090},
		TargetLocation: domain.Coordinate{Latitude: 37.3318, Longitude: -122.0312},
		Speed:          domain.DefaultSpeed,
		Color:          &color,
		FollowUser:     true,
	}
}

func TestSnailRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	s := testSnail("b")
	require.NoError(t, repo.SaveSnail(ctx, s))
	require.NoError(t, repo.SaveSnail(ctx, domain.Snail{
		ID:             "a",
		Name:           "Plain",
		Location:       s.Location,
		TargetLocation: s.Location,
	}))

	got, err := repo.GetSnail(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	all, err := repo.ListSnails(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Nil(t, all[0].Color)
	assert.False(t, all[0].FollowUser)
}

func TestSnailRepositorySaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	s := testSnail("x")
	require.NoError(t, repo.SaveSnail(ctx, s))

	s.Name = "Renamed"
	s.Color = nil
	require.NoError(t, repo.SaveSnail(ctx, s))

	got, err := repo.GetSnail(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Nil(t, got.Color)
}

func TestSnailRepositoryRejectsInvalid(t *testing.T) {
	repo := openTestDB(t)

	s := testSnail("bad")
	s.Location.Latitude = 123
	err := repo.SaveSnail(context.Background(), s)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestSnailRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	_, err := repo.GetSnail(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)

	err = repo.DeleteSnail(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, repo.SaveSnail(ctx, testSnail("gone")))
	require.NoError(t, repo.DeleteSnail(ctx, "gone"))
	_, err = repo.GetSnail(ctx, "gone")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSavePositionsSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)

	s := testSnail("mover")
	require.NoError(t, repo.SaveSnail(ctx, s))

	moved := s.WithLocation(domain.Coordinate{Latitude: 37.3340, Longitude: -122.0150})
	ghost := testSnail("ghost")
	require.NoError(t, repo.SavePositions(ctx, []domain.Snail{moved, ghost}))

	got, err := repo.GetSnail(ctx, "mover")
	require.NoError(t, err)
	assert.Equal(t, moved.Location, got.Location)

	_, err = repo.GetSnail(ctx, "ghost")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	snails := openTestDB(t)
	repo := NewSqliteProfileRepository(snails.DB)

	_, err := repo.GetProfile(ctx)
	require.ErrorIs(t, err, ports.ErrNotFound)

	p := domain.UserProfile{Username: "shelly", Bio: "slow and steady", Balance: 12.5}
	require.NoError(t, repo.SaveProfile(ctx, p))

	got, err := repo.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.ProfilePicture = []byte{0x89, 'P', 'N', 'G'}
	p.Balance = 0
	require.NoError(t, repo.SaveProfile(ctx, p))

	got, err = repo.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestProfileRepositoryRejectsNegativeBalance(t *testing.T) {
	snails := openTestDB(t)
	repo := NewSqliteProfileRepository(snails.DB)

	err := repo.SaveProfile(context.Background(), domain.UserProfile{Balance: -1})
	require.Error(t, err)
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snails.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const seedJSON = `[
  {"id":"s1","name":" Speedy ","location":{"latitude":37.3349,"longitude":-122.009},
   "targetLocation":{"latitude":37.3318,"longitude":-122.0312},"speed":1.34112,"color":"#0f0"},
  {"id":"s2","name":"Turbo","location":{"latitude":40.7128,"longitude":-74.006},
   "targetLocation":{"latitude":40.7128,"longitude":-74.006},"speed":0.5}
]`

func TestReadSeed(t *testing.T) {
	snails, err := ReadSeed(writeSeed(t, seedJSON))
	require.NoError(t, err)
	require.Len(t, snails, 2)

	assert.Equal(t, "Speedy", snails[0].Name)
	require.NotNil(t, snails[0].Color)
	assert.Equal(t, "#00FF00", *snails[0].Color)
	assert.Nil(t, snails[1].Color)
}

func TestReadSeedRejectsBadRecords(t *testing.T) {
	tests := map[string]string{
		"duplicate id": `[{"id":"a","name":"A","speed":1},{"id":"a","name":"B","speed":1}]`,
		"bad color":    `[{"id":"a","name":"A","speed":1,"color":"red"}]`,
		"bad latitude": `[{"id":"a","name":"A","speed":1,"location":{"latitude":91,"longitude":0}}]`,
		"not json":     `{`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadSeed(writeSeed(t, body))
			require.Error(t, err)
		})
	}
}

func TestSeedFromJSONKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	path := writeSeed(t, seedJSON)

	n, err := SeedFromJSON(ctx, repo.DB, SQLite, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	moved, err := repo.GetSnail(ctx, "s1")
	require.NoError(t, err)
	moved = moved.WithLocation(moved.TargetLocation)
	require.NoError(t, repo.SavePositions(ctx, []domain.Snail{moved}))

	n, err = SeedFromJSON(ctx, repo.DB, SQLite, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := repo.GetSnail(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, moved.TargetLocation, got.Location)
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?;`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3;`, Postgres.Rebind(q))
	assert.Equal(t, "postgres", Postgres.String())
}
