package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubScanner struct {
	settled []domain.Trade
	err     error
}

func (s stubScanner) ScanAndSettle(context.Context, time.Time) ([]domain.Trade, error) {
	return s.settled, s.err
}

type gauge struct{ last int }

func (g *gauge) SetLastScanSettled(n int) { g.last = n }

type recNotifier struct{ events []string }

func (r *recNotifier) Notify(_ context.Context, event, _, _ string) error {
	r.events = append(r.events, event)
	return nil
}

func TestSettlementJob(t *testing.T) {
	g := &gauge{last: -1}
	n := &recNotifier{}
	SettlementJob(stubScanner{settled: make([]domain.Trade, 2)}, g, n, quietLogger())(context.Background())
	if g.last != 2 || len(n.events) != 0 {
		t.Fatalf("gauge=%d events=%v", g.last, n.events)
	}

	SettlementJob(stubScanner{err: errors.New("db down")}, g, n, quietLogger())(context.Background())
	if g.last != 2 {
		t.Fatalf("gauge updated on failure: %d", g.last)
	}
	if len(n.events) != 1 || n.events[0] != "scan_failed" {
		t.Fatalf("events=%v", n.events)
	}
}

type stubArchiver struct{ before time.Time }

func (s *stubArchiver) ArchiveLedger(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return 4, nil
}

func TestRunArchiveCutoff(t *testing.T) {
	a := &stubArchiver{}
	now := time.Date(2025, 6, 30, 3, 0, 0, 0, time.UTC)
	n, err := RunArchive(context.Background(), a, now, 30*24*time.Hour, quietLogger())
	if err != nil || n != 4 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if want := time.Date(2025, 5, 31, 3, 0, 0, 0, time.UTC); !a.before.Equal(want) {
		t.Fatalf("before=%s want=%s", a.before, want)
	}
}

func TestRunnerAddRejectsBadSpec(t *testing.T) {
	r := New(context.Background(), quietLogger())
	if _, err := r.Add("bad", "not a cron", func(context.Context) {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if _, err := r.Add("scan", "0 */5 * * * *", func(context.Context) {}); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestRunnerRunsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, quietLogger())
	ran := make(chan struct{}, 1)
	if _, err := r.Add("tick", "* * * * * *", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatal(err)
	}
	r.Start()
	defer r.Stop()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
