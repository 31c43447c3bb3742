package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the server and tools.
// Values come from an optional YAML file, overridden by environment variables.
type Config struct {
	Port            string        `yaml:"port"`
	DBPath          string        `yaml:"db_path"`
	DatabaseURL     string        `yaml:"database_url"`
	SeedPath        string        `yaml:"seed_path"`
	RedisAddr       string        `yaml:"redis_addr"`
	ORSAPIKey       string        `yaml:"ors_api_key"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	CheckpointEvery int           `yaml:"checkpoint_every"`
	StartingBalance float64       `yaml:"starting_balance"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns Config with local-development defaults.
func Default() Config {
	return Config{
		Port:            "8080",
		DBPath:          "data/snails.db",
		SeedPath:        "data/seeds/snails.json",
		TickInterval:    time.Second,
		CheckpointEvery: 10,
		StartingBalance: 1000,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// DefaultPath is the YAML file read when neither the caller nor CONFIG_PATH names one.
const DefaultPath = "config.yaml"

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides. An empty path falls back to
// CONFIG_PATH, which may itself come from .env.
func Load(path string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if path == "" {
		path = Get("CONFIG_PATH", DefaultPath)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("load config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return cfg, fmt.Errorf("load config: read %s: %w", path, err)
		}
	}

	return applyEnv(cfg)
}

func applyEnv(cfg Config) (Config, error) {
	cfg.Port = Get("PORT", cfg.Port)
	cfg.DBPath = Get("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = Get("DATABASE_URL", cfg.DatabaseURL)
	cfg.SeedPath = Get("SEED_PATH", cfg.SeedPath)
	cfg.RedisAddr = Get("REDIS_ADDR", cfg.RedisAddr)
	cfg.ORSAPIKey = Get("ORS_API_KEY", cfg.ORSAPIKey)
	cfg.LogLevel = Get("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = Get("LOG_FORMAT", cfg.LogFormat)

	if v := Get("TICK_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("load config: TICK_INTERVAL %q: %w", v, err)
		}
		cfg.TickInterval = d
	}

	if v := Get("CHECKPOINT_EVERY", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("load config: CHECKPOINT_EVERY %q: %w", v, err)
		}
		cfg.CheckpointEvery = n
	}

	if v := Get("STARTING_BALANCE", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("load config: STARTING_BALANCE %q: %w", v, err)
		}
		cfg.StartingBalance = f
	}

	if cfg.TickInterval <= 0 {
		return cfg, fmt.Errorf("load config: tick interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.CheckpointEvery < 1 {
		return cfg, fmt.Errorf("load config: checkpoint_every must be >= 1, got %d", cfg.CheckpointEvery)
	}
	if cfg.StartingBalance < 0 {
		return cfg, fmt.Errorf("load config: starting balance must not be negative, got %v", cfg.StartingBalance)
	}

	return cfg, nil
}
