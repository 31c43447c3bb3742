package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"snail-trail-service/internal/adapters/cache"
	"snail-trail-service/internal/adapters/distance"
	"snail-trail-service/internal/adapters/geocode"
	"snail-trail-service/internal/adapters/repositories"
	"snail-trail-service/internal/api"
	"snail-trail-service/internal/api/handlers"
	"snail-trail-service/internal/config"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/logging"
	"snail-trail-service/internal/platform/db"
	"snail-trail-service/internal/platform/metrics"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// main is the application composition root.
// It wires concrete adapters (SQLite or Postgres, Redis, ORS) behind ports,
// starts the simulation ticker and serves the HTTP API until interrupted.
func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

type storage struct {
	db       *sql.DB
	snails   *repositories.SnailRepository
	profiles *repositories.ProfileRepository
	geocodes *cache.GeocodeCache
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()

	store, err := loadState(ctx, st, cfg.StartingBalance)
	if err != nil {
		return err
	}
	logger.Info("state loaded", "snails", store.Len(), "balance", store.Balance())

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}

	provider, err := distance.NewHaversineProvider(domain.DefaultSpeed)
	if err != nil {
		return err
	}

	var geocoder ports.Geocoder
	if strings.TrimSpace(cfg.ORSAPIKey) != "" {
		g, err := geocode.NewORSGeocoder(cfg.ORSAPIKey, st.geocodes)
		if err != nil {
			return err
		}
		geocoder = g
	} else {
		logger.Info("ORS_API_KEY not set, target addresses disabled")
	}

	hub := handlers.NewStreamHub(collector)
	ticker := &services.Ticker{
		Store:           store,
		Repo:            st.snails,
		Publishers:      []ports.PositionPublisher{hub},
		Metrics:         collector,
		Logger:          logger,
		Interval:        cfg.TickInterval,
		CheckpointEvery: cfg.CheckpointEvery,
	}
	hub.Current = func() ports.PositionSnapshot {
		return ports.PositionSnapshot{Tick: ticker.Tick(), Snails: store.Snapshot()}
	}

	deps := api.Deps{
		Store: store,
		Purchaser: &services.Purchaser{
			Store:     store,
			Distances: provider,
			Geocoder:  geocoder,
			Snails:    st.snails,
			Profiles:  st.profiles,
			Metrics:   collector,
			Logger:    logger,
		},
		Snails:    st.snails,
		Profiles:  st.profiles,
		Distances: provider,
		Stream:    hub,
		Metrics:   collector,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		// Keys outlive a few missed ticks, then expire if the server dies.
		pub := cache.NewRedisPositionPublisher(rdb, 30*cfg.TickInterval)
		ticker.Publishers = append(ticker.Publishers, pub)
		deps.Forgetter = pub
		logger.Info("publishing positions to redis", "addr", cfg.RedisAddr, "channel", cache.PositionsChannel)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ticker.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if perr := st.profiles.SaveProfile(saveCtx, store.Profile()); perr != nil {
		logger.Error("save profile on shutdown failed", "err", perr)
	}

	return err
}

// openStorage picks Postgres when DATABASE_URL is set and the local SQLite
// file otherwise, then brings the schema up to date and seeds demo snails.
func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	var (
		sqlDB   *sql.DB
		dialect repositories.Dialect
		err     error
	)

	if cfg.DatabaseURL != "" {
		dialect = repositories.Postgres
		sqlDB, err = db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repositories.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	} else {
		dialect = repositories.SQLite
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir %q: %w", dir, err)
			}
		}
		sqlDB, err = db.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := repositories.InitSchema(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	if cfg.SeedPath != "" {
		n, err := repositories.SeedFromJSON(ctx, sqlDB, dialect, cfg.SeedPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("seed file not found, skipping", "path", cfg.SeedPath)
		case err != nil:
			sqlDB.Close()
			return nil, err
		default:
			slog.Info("seeded snails", "inserted", n, "dialect", dialect)
		}
	}

	st := &storage{db: sqlDB}
	if dialect == repositories.Postgres {
		st.snails = repositories.NewPostgresSnailRepository(sqlDB)
		st.profiles = repositories.NewPostgresProfileRepository(sqlDB)
		st.geocodes = cache.NewPostgresGeocodeCache(sqlDB)
	} else {
		st.snails = repositories.NewSqliteSnailRepository(sqlDB)
		st.profiles = repositories.NewSqliteProfileRepository(sqlDB)
		st.geocodes = cache.NewSqliteGeocodeCache(sqlDB)
	}
	return st, nil
}

func loadState(ctx context.Context, st *storage, startingBalance float64) (*services.AppState, error) {
	profile, err := st.profiles.GetProfile(ctx)
	if errors.Is(err, ports.ErrNotFound) {
		profile = domain.UserProfile{Balance: startingBalance}
		if err := st.profiles.SaveProfile(ctx, profile); err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	snails, err := st.snails.ListSnails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	store, err := services.NewAppState(snails, profile)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return store, nil
}
