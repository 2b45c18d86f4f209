package commands

import (
	"context"
	"fmt"

	"github.com/wonny/trendhealth/internal/barcache"
	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/internal/external/marketstack"
	"github.com/wonny/trendhealth/internal/external/quotecache"
	"github.com/wonny/trendhealth/internal/external/stooq"
	"github.com/wonny/trendhealth/internal/health"
	"github.com/wonny/trendhealth/internal/history"
	"github.com/wonny/trendhealth/internal/pipeline"
	"github.com/wonny/trendhealth/internal/universe"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/database"
	"github.com/wonny/trendhealth/pkg/httputil"
	"github.com/wonny/trendhealth/pkg/logger"
	"github.com/wonny/trendhealth/pkg/redis"
)

// redisPrefix namespaces every Redis key of this service
const redisPrefix = "trendhealth"

// app holds the dependencies shared by commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *universe.Registry

	redis *redis.Client
	db    *database.DB
}

// newApp loads config, logger and universes.
// needsProvider checks provider credentials (commands that fetch).
func newApp(needsProvider bool) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if universeFile != "" {
		cfg.UniverseFile = universeFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if needsProvider {
		if err := cfg.RequireProvider(); err != nil {
			return nil, err
		}
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load universes
	reg, err := universe.Load(cfg.UniverseFile)
	if err != nil {
		return nil, fmt.Errorf("load universes: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"universes":   len(reg.All()),
		"symbols":     len(reg.ProviderSymbols()),
		"config_hash": reg.Hash(),
		"provider":    cfg.Provider.Name,
	}).Debug("Universe registry loaded")

	return &app{cfg: cfg, log: log, registry: reg}, nil
}

// Close releases optional connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// provider builds the configured price provider wrapped in the latest-bar memo
func (a *app) provider(ctx context.Context) (contracts.PriceProvider, error) {
	httpClient := httputil.New(a.cfg, a.log)

	var inner contracts.PriceProvider
	switch a.cfg.Provider.Name {
	case marketstack.ProviderName:
		inner = marketstack.NewClient(httpClient, a.cfg.Marketstack, a.log)
	case stooq.ProviderName:
		inner = stooq.NewClient(httpClient, a.cfg.Stooq, a.log)
	default:
		return nil, fmt.Errorf("unknown provider %q", a.cfg.Provider.Name)
	}

	// Redis 는 선택 사항: 연결 실패 시 memo 없이 진행
	rc, err := redis.New(ctx, a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, latest-bar memo disabled")
		rc = redis.Disabled()
	}
	a.redis = rc

	return quotecache.New(inner, redis.NewCache(rc, redisPrefix), a.cfg.Cache.LatestCacheTTL, a.log), nil
}

// orchestrator builds the cache refresh orchestrator
func (a *app) orchestrator(ctx context.Context) (*barcache.Orchestrator, error) {
	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	return barcache.New(a.cfg, p, a.log), nil
}

// barStores opens the cache stores without a provider (read-only use)
func (a *app) barStores() (*barcache.Store, *barcache.MetadataStore) {
	dir := a.cfg.CacheDir()
	return barcache.NewStore(dir, a.cfg.Cache.WindowDays, a.log), barcache.NewMetadataStore(dir, a.log)
}

// historyStore opens the health-history store
func (a *app) historyStore() *history.Store {
	return history.NewStore(a.cfg.HistoryDir(), a.cfg.Health.RetentionDays, a.log)
}

// updater builds the history updater (with the Postgres mirror when configured)
func (a *app) updater(ctx context.Context) (*history.Updater, error) {
	bars, _ := a.barStores()
	agg := health.NewAggregator(a.cfg.Health.MinKnownPct, a.log)
	u := history.NewUpdater(a.historyStore(), bars, agg, a.cfg.Health.HistoryWindowDays, a.log)

	if !a.cfg.Database.Enabled() {
		return u, nil
	}

	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db

	mirror := history.NewPGMirror(db.Pool)
	if err := mirror.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.log.Info("Postgres health-history mirror enabled")
	return u.WithMirror(mirror), nil
}

// pipeline builds refresh + history
func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	orch, err := a.orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	upd, err := a.updater(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(a.registry, orch, upd, a.log), nil
}
