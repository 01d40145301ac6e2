// Package app wires configuration into stores, caches and the analysis
// service. Every command builds its dependencies through Open.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"event-impact-lab/internal/analysis"
	"event-impact-lab/internal/cache"
	"event-impact-lab/internal/candleindex"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/ingestion"
	"event-impact-lab/internal/logger"
	"event-impact-lab/internal/pip"
	"event-impact-lab/internal/storage"
	chstore "event-impact-lab/internal/storage/clickhouse"
	"event-impact-lab/internal/storage/memory"
	"event-impact-lab/internal/storage/migrations"
	pgstore "event-impact-lab/internal/storage/postgres"
)

// Stores holds all storage implementations.
type Stores struct {
	Candles   storage.CandleStore
	Events    storage.EventStore
	Symbols   storage.SymbolConfigStore
	Backtests storage.BacktestStore
}

// App is a fully wired process.
type App struct {
	Config  *config.Config
	Stores  *Stores
	Pips    *pip.Table
	Cache   cache.ProfileCache
	Feed    *ingestion.StoreFeed
	Index   *candleindex.Index
	Service *analysis.Service

	Log zerolog.Logger

	closers []func()
}

// Open connects storage, applies migrations when configured, loads pip
// overrides and builds the analysis service. Close releases connections.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	stores, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Stores = stores

	a.Pips = pip.NewTable(cfg.Pips)
	if err := a.Pips.Refresh(ctx, stores.Symbols); err != nil {
		a.Close()
		return nil, fmt.Errorf("load pip overrides: %w", err)
	}

	a.Cache = a.openCache()
	a.Feed = ingestion.NewStoreFeed(stores.Candles, stores.Events)
	a.Index = candleindex.New(a.Feed, candleindex.WithLogger(logger.Component(log, "candleindex")))
	a.Service = analysis.New(analysis.Options{
		Index:     a.Index,
		Events:    a.Feed,
		Pips:      a.Pips,
		Cache:     a.Cache,
		Backtests: stores.Backtests,
		Config:    cfg.Analysis,
		Logger:    logger.Component(log, "analysis"),
	})
	return a, nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStores(ctx context.Context) (*Stores, error) {
	sc := a.Config.Storage
	if sc.Backend == "memory" {
		a.Log.Info().Msg("using in-memory storage")
		return &Stores{
			Candles:   memory.NewCandleStore(),
			Events:    memory.NewEventStore(),
			Symbols:   memory.NewSymbolConfigStore(),
			Backtests: memory.NewBacktestStore(),
		}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, sc.PostgresDSN,
		pgstore.WithMaxConns(sc.MaxConns),
		pgstore.WithLockTimeout(sc.LockTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if sc.AutoMigrate {
		if err := migrations.RunPostgresMigrations(ctx, pool, logger.Component(a.Log, "migrations")); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	stores := &Stores{
		Candles:   pgstore.NewCandleStore(pool),
		Events:    pgstore.NewEventStore(pool),
		Symbols:   pgstore.NewSymbolConfigStore(pool),
		Backtests: pgstore.NewBacktestStore(pool),
	}
	if sc.ClickHouseDSN == "" {
		return stores, nil
	}

	// ClickHouse serves candles
	var conn *chstore.Conn
	if sc.AutoMigrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, sc.ClickHouseDSN, logger.Component(a.Log, "migrations"))
	} else {
		conn, err = chstore.NewConn(ctx, sc.ClickHouseDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	stores.Candles = chstore.NewCandleStore(conn)
	a.Log.Info().Msg("candles served from clickhouse")
	return stores, nil
}

func (a *App) openCache() cache.ProfileCache {
	rc := a.Config.Redis
	if !rc.Enabled {
		return cache.NewMemory(a.Config.Analysis.ProfileCacheTTL)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return cache.NewRedis(client, cache.RedisOptions{
		TTL:    rc.TTL,
		Prefix: rc.Prefix,
		Logger: logger.Component(a.Log, "cache"),
	})
}
