package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

// Scanner settles all due trades.
type Scanner interface {
	ScanAndSettle(ctx context.Context, now time.Time) ([]domain.Trade, error)
}

// ScanGauge receives the size of the latest scan.
type ScanGauge interface {
	SetLastScanSettled(n int)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SettlementJob returns a cron job that runs one settlement scan. gauge and
// notifier may be nil.
func SettlementJob(s Scanner, gauge ScanGauge, notifier Notifier, logger *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		settled, err := s.ScanAndSettle(ctx, time.Now().UTC())
		if err != nil {
			logger.ErrorContext(ctx, "scheduled settlement scan failed", slog.String("error", err.Error()))
			if notifier != nil {
				_ = notifier.Notify(ctx, "scan_failed", "Settlement scan failed", err.Error())
			}
			return
		}
		if gauge != nil {
			gauge.SetLastScanSettled(len(settled))
		}
	}
}

// ArchiveJob returns a cron job that snapshots trades older than retention.
func ArchiveJob(a domain.Archiver, retention time.Duration, logger *slog.Logger) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := RunArchive(ctx, a, time.Now().UTC(), retention, logger); err != nil {
			logger.ErrorContext(ctx, "scheduled archive failed", slog.String("error", err.Error()))
		}
	}
}

// RunArchive snapshots the ledger with cutoff now-retention.
func RunArchive(ctx context.Context, a domain.Archiver, now time.Time, retention time.Duration, logger *slog.Logger) (int64, error) {
	before := now.Add(-retention)
	n, err := a.ArchiveLedger(ctx, before)
	if err != nil {
		return n, fmt.Errorf("scheduler: archive before %s: %w", before.Format(time.RFC3339), err)
	}
	logger.InfoContext(ctx, "ledger archived",
		slog.Int64("records", n),
		slog.Time("before", before),
	)
	return n, nil
}
