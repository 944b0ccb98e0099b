package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/dualtrack/internal/blob/s3"
	"github.com/alanyoungcy/dualtrack/internal/cache/redis"
	"github.com/alanyoungcy/dualtrack/internal/config"
	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/metrics"
	"github.com/alanyoungcy/dualtrack/internal/notify"
	"github.com/alanyoungcy/dualtrack/internal/oracle"
	"github.com/alanyoungcy/dualtrack/internal/service"
	"github.com/alanyoungcy/dualtrack/internal/settlement"
	"github.com/alanyoungcy/dualtrack/internal/store/postgres"
	"github.com/alanyoungcy/dualtrack/internal/valuation"
)

// Dependencies holds every concrete component built by Wire.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client // nil unless archiving is configured

	AssetStore domain.AssetStore
	TradeStore *postgres.TradeStore
	AuditStore domain.AuditStore

	PriceCache  domain.PriceCache
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	Archiver *s3blob.ArchiveImpl // nil unless archiving is configured

	Metrics  *metrics.Metrics
	Notifier *notify.Notifier

	Prices *service.PriceService
	Stats  *service.StatsService
	Trades *service.TradeService
	Assets *service.AssetService
	Engine *settlement.Engine
}

// needsArchive reports whether the S3 client and archiver are built.
func needsArchive(cfg *config.Config) bool {
	return cfg.Archive.Enabled || strings.EqualFold(cfg.Mode, "archive")
}

// Wire constructs all dependencies from cfg. The returned cleanup releases
// them in reverse order and must be called even when err is nil.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- PostgreSQL ---
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:            cfg.Postgres.DSN,
		Host:           cfg.Postgres.Host,
		Port:           cfg.Postgres.Port,
		Database:       cfg.Postgres.Database,
		User:           cfg.Postgres.User,
		Password:       cfg.Postgres.Password,
		SSLMode:        cfg.Postgres.SSLMode,
		MaxConns:       cfg.Postgres.PoolMaxConns,
		MinConns:       cfg.Postgres.PoolMinConns,
		ConnectTimeout: cfg.Postgres.ConnectTimeout.Duration,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: postgres: %w", err))
	}
	closers = append(closers, pg.Close)
	deps.Postgres = pg

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
	}

	pool := pg.Pool()
	deps.AssetStore = postgres.NewAssetStore(pool)
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: redis: %w", err))
	}
	closers = append(closers, func() { _ = rc.Close() })
	deps.Redis = rc

	deps.PriceCache = redis.NewPriceCache(rc, cfg.Oracle.CacheTTL.Duration)
	deps.LockManager = redis.NewLockManager(rc)
	deps.RateLimiter = redis.NewRateLimiter(rc)
	deps.SignalBus = redis.NewSignalBus(rc)

	// --- S3 snapshots ---
	if needsArchive(cfg) {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.S3 = sc
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(sc),
			s3blob.NewReader(sc),
			deps.TradeStore,
			deps.AssetStore,
			deps.AuditStore,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Price sources ---
	sources, err := priceSources(cfg)
	if err != nil {
		return fail(err)
	}
	if len(sources) == 0 {
		return fail(errors.New("wire: no price source configured"))
	}
	deps.Prices = service.NewPriceService(
		sources, deps.PriceCache, deps.SignalBus, cfg.Oracle.StaleAfter.Duration, deps.Metrics, logger,
	)

	// --- Services ---
	date, btc, eth, err := cfg.Anchor.Parse()
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	anchor := valuation.Anchor{Date: date, BTC: btc, ETH: eth}

	deps.Stats = service.NewStatsService(deps.AssetStore, deps.TradeStore, deps.Prices, anchor, deps.Metrics, logger)
	deps.Trades = service.NewTradeService(deps.TradeStore, deps.AuditStore, logger)
	deps.Assets = service.NewAssetService(deps.AssetStore, deps.AuditStore, logger)

	opts := []settlement.Option{
		settlement.WithLocks(deps.LockManager, cfg.Settlement.LockTTL.Duration),
		settlement.WithBus(deps.SignalBus),
		settlement.WithAudit(deps.AuditStore),
		settlement.WithRecorder(deps.Metrics),
	}
	if deps.Notifier.Enabled() {
		opts = append(opts, settlement.WithNotifier(deps.Notifier))
	}
	deps.Engine = settlement.NewEngine(deps.TradeStore, deps.Prices, logger, opts...)

	return deps, cleanup, nil
}

// priceSources returns the live sources in priority order: CoinMarketCap
// when a key is configured, then Binance when enabled.
func priceSources(cfg *config.Config) ([]oracle.Source, error) {
	var sources []oracle.Source

	key, err := cfg.OracleAPIKey()
	if err != nil {
		return nil, fmt.Errorf("wire: oracle api key: %w", err)
	}
	if key != "" {
		sources = append(sources, oracle.NewCoinMarketCap(
			cfg.Oracle.CoinMarketCapURL,
			key,
			cfg.Oracle.RequestsPerMinute,
			cfg.Oracle.Timeout.Duration,
		))
	}
	if cfg.Oracle.BinanceEnabled {
		sources = append(sources, oracle.NewBinance(cfg.Oracle.BinanceURL))
	}
	return sources, nil
}
