// Package config loads service configuration from YAML, .env and the
// environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"event-impact-lab/internal/backtest"
	"event-impact-lab/internal/decision"
	"event-impact-lab/internal/decay"
	"event-impact-lab/internal/impact"
	"event-impact-lab/internal/logger"
	"event-impact-lab/internal/metrics"
	"event-impact-lab/internal/straddle"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EIL_"

// Config is the root configuration.
type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         logger.Config `yaml:"log"`
	Server      Server        `yaml:"server"`
	Storage     Storage       `yaml:"storage"`
	Redis       Redis         `yaml:"redis"`
	Ingest      Ingest        `yaml:"ingest"`
	Analysis    Analysis      `yaml:"analysis"`

	// Pips overrides the static pip table, e.g. {"XAUUSD": 0.1}.
	Pips map[string]float64 `yaml:"pips" validate:"dive,gt=0"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string        `yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" default:"20" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" default:"40" validate:"gte=0"`
}

// Storage selects and configures persistence.
type Storage struct {
	// Backend is memory or postgres. ClickHouse, when configured, serves
	// candles while Postgres keeps events, pip overrides and backtests.
	Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
	PostgresDSN   string        `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickHouseDSN string        `yaml:"clickhouse_dsn"`
	MaxConns      int32         `yaml:"max_conns" default:"10" validate:"gte=1"`
	LockTimeout   time.Duration `yaml:"lock_timeout" default:"5s"`
	AutoMigrate   bool          `yaml:"auto_migrate" default:"true"`
}

// Redis configures the impact profile cache.
type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl" default:"1h"`
	Prefix   string        `yaml:"prefix" default:"eil:"`
}

// Ingest configures bulk imports.
type Ingest struct {
	BatchSize int `yaml:"batch_size" default:"5000" validate:"gte=1"`
	Workers   int `yaml:"workers" default:"4" validate:"gte=1"`
}

// Analysis groups the tunables of every analysis component.
type Analysis struct {
	WindowMinutes int    `yaml:"window_minutes" default:"30" validate:"gte=1"`
	BaselineDays  int    `yaml:"baseline_days" default:"30" validate:"gte=1"`
	MinImpact     string `yaml:"min_impact" default:"HIGH" validate:"oneof=HIGH MEDIUM LOW"`
	Scenario      string `yaml:"scenario" default:"realistic" validate:"oneof=optimistic realistic pessimistic degraded"`
	// ProfileCacheTTL bounds the in-process impact profile cache.
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl" default:"10m"`
	PersistBacktests bool          `yaml:"persist_backtests" default:"true"`

	Impact     impact.Config           `yaml:"impact"`
	Heuristics straddle.Heuristics     `yaml:"heuristics"`
	Sizing     straddle.SizingConfig   `yaml:"sizing"`
	Decay      decay.Config            `yaml:"decay"`
	Backtest   backtest.Config         `yaml:"backtest"`
	Aggregate  metrics.AggregateConfig `yaml:"aggregate"`
	Decision   decision.Thresholds     `yaml:"decision"`
}

var validate = validator.New()

// Default returns a Config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads path (optional), applies .env and EIL_* overrides, and validates.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("ENV", &c.Environment)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_ADDR", &c.Server.Addr)
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickHouseDSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("SCENARIO", &c.Analysis.Scenario)

	if v, ok := os.LookupEnv(EnvPrefix + "REDIS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_ENABLED: %w", EnvPrefix, err)
		}
		c.Redis.Enabled = b
	}
	if v, ok := os.LookupEnv(EnvPrefix + "BASELINE_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBASELINE_DAYS: %w", EnvPrefix, err)
		}
		c.Analysis.BaselineDays = n
	}
	// EIL_PIPS=XAUUSD:0.1,BTCUSD:1
	if v, ok := os.LookupEnv(EnvPrefix + "PIPS"); ok && v != "" {
		if c.Pips == nil {
			c.Pips = make(map[string]float64)
		}
		for _, pair := range strings.Split(v, ",") {
			sym, val, found := strings.Cut(pair, ":")
			if !found {
				return fmt.Errorf("%sPIPS: expected SYMBOL:VALUE, got %q", EnvPrefix, pair)
			}
			pip, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				return fmt.Errorf("%sPIPS: %w", EnvPrefix, err)
			}
			c.Pips[strings.ToUpper(strings.TrimSpace(sym))] = pip
		}
	}
	return nil
}
