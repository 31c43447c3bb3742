package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"snail-trail-service/internal/adapters/repositories"
	"snail-trail-service/internal/config"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/logging"
	"snail-trail-service/internal/platform/db"
	"snail-trail-service/internal/ports"
	"strings"
	"time"
)

// dbtool prepares a Postgres database: applies migrations, seeds snails and
// creates the profile row with the starting balance.
func main() {
	cfgPath := flag.String("config", "", "path to YAML config (default $CONFIG_PATH or "+config.DefaultPath+")")
	skipSeed := flag.Bool("no-seed", false, "apply migrations only")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("load config", err)
	}
	slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogFormat))

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		fatal("check config", errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sqlDB, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("open database", err)
	}
	defer sqlDB.Close()

	slog.Info("applying migrations")
	if err := repositories.RunMigrations(ctx, sqlDB); err != nil {
		fatal("migrate", err)
	}
	slog.Info("schema ready")

	if *skipSeed {
		return
	}

	n, err := repositories.SeedFromJSON(ctx, sqlDB, repositories.Postgres, cfg.SeedPath)
	if err != nil {
		fatal("seed snails", err)
	}
	slog.Info("seeding complete", "inserted", n, "path", cfg.SeedPath)

	profiles := repositories.NewPostgresProfileRepository(sqlDB)
	if _, err := profiles.GetProfile(ctx); errors.Is(err, ports.ErrNotFound) {
		if err := profiles.SaveProfile(ctx, domain.UserProfile{Balance: cfg.StartingBalance}); err != nil {
			fatal("create profile", err)
		}
		slog.Info("profile created", "balance", cfg.StartingBalance)
	} else if err != nil {
		fatal("read profile", err)
	}
}

func fatal(step string, err error) {
	slog.Error(step+" failed", "err", err)
	os.Exit(1)
}
