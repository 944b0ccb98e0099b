package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dualtrack/internal/scheduler"
	"github.com/alanyoungcy/dualtrack/internal/server"
	"github.com/alanyoungcy/dualtrack/internal/server/handler"
	"github.com/alanyoungcy/dualtrack/internal/server/ws"
)

// ServerMode serves the HTTP API and websocket hub and runs the scheduled
// settlement and archive jobs until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	// Scheduled jobs.
	runner := scheduler.New(ctx, a.logger)
	if a.cfg.Settlement.Enabled {
		job := scheduler.SettlementJob(deps.Engine, deps.Metrics, deps.Notifier, a.logger)
		if _, err := runner.Add("settlement", a.cfg.Settlement.Cron, job); err != nil {
			return fmt.Errorf("app: schedule settlement: %w", err)
		}
	}
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		job := scheduler.ArchiveJob(deps.Archiver, a.cfg.Archive.Retention(), a.logger)
		if _, err := runner.Add("archive", a.cfg.Archive.Cron, job); err != nil {
			return fmt.Errorf("app: schedule archive: %w", err)
		}
	}
	g.Go(func() error {
		return runner.Run(ctx)
	})

	// Websocket hub: bridges "prices" and "settlements" to browsers.
	hub := ws.NewHub(deps.SignalBus, func(ctx context.Context) any {
		summary, err := deps.Stats.Ledger(ctx)
		if err != nil {
			return nil
		}
		return summary
	}, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Addr:            a.cfg.Server.Addr,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, a.handlers(deps), hub, deps.Metrics.Handler(), deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) handlers(deps *Dependencies) server.Handlers {
	health := map[string]handler.HealthChecker{
		"postgres": handler.HealthCheckFunc(deps.Postgres.Health),
		"redis":    handler.HealthCheckFunc(deps.Redis.Ping),
	}
	if deps.S3 != nil {
		health["s3"] = handler.HealthCheckFunc(deps.S3.Health)
	}

	// A nil *ArchiveImpl must not become a non-nil interface.
	var snapshots handler.SnapshotLister
	if deps.Archiver != nil {
		snapshots = deps.Archiver
	}

	return server.Handlers{
		Health: handler.NewHealthHandler(health, a.logger),
		Assets: handler.NewAssetHandler(deps.Assets, a.logger),
		Trades: handler.NewTradeHandler(deps.Trades, a.logger),
		Settle: handler.NewSettleHandler(deps.Engine, a.logger),
		Stats:  handler.NewStatsHandler(deps.Stats, deps.Prices, a.logger),
		Cron:   handler.NewCronHandler(deps.Engine, deps.Metrics, a.logger),
		Debug:  handler.NewDebugHandler(deps.Stats, deps.Assets, deps.SignalBus, deps.AuditStore, snapshots, a.logger),
	}
}

// SettleMode runs one settlement scan and returns. It suits an external
// scheduler such as a Kubernetes CronJob.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	settled, err := deps.Engine.ScanAndSettle(ctx, time.Now().UTC())
	if err != nil {
		_ = deps.Notifier.Notify(ctx, "scan_failed", "Settlement scan failed", err.Error())
		return fmt.Errorf("app: settlement scan: %w", err)
	}
	deps.Metrics.SetLastScanSettled(len(settled))
	a.logger.InfoContext(ctx, "settle mode finished", slog.Int("settled", len(settled)))
	return nil
}

// ArchiveMode writes one ledger snapshot to S3 and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3 configuration")
	}
	if _, err := scheduler.RunArchive(ctx, deps.Archiver, time.Now().UTC(), a.cfg.Archive.Retention(), a.logger); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}
