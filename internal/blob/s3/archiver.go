package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/dualtrack/internal/domain"
)

const ndjsonContentType = "application/x-ndjson"

// TradeArchiveStore is the trade query the archiver needs.
type TradeArchiveStore interface {
	ListCreatedBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// AssetArchiveStore is the asset query the archiver needs.
type AssetArchiveStore interface {
	List(ctx context.Context) ([]domain.Asset, error)
}

// ArchiveImpl writes JSONL snapshots of the ledger. Records are never
// removed from the primary store.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	trades TradeArchiveStore
	assets AssetArchiveStore
	audit  domain.AuditStore
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates an ArchiveImpl. reader may be nil.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	assets AssetArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{writer: writer, reader: reader, trades: trades, assets: assets, audit: audit}
}

// ArchiveLedger snapshots trades created before the cutoff plus all assets
// to archive/{trades,assets}/YYYY-MM-DD.jsonl and returns the number of
// records written. Re-running on the same day replaces the objects.
func (a *ArchiveImpl) ArchiveLedger(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListCreatedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	assets, err := a.assets.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive assets query: %w", err)
	}

	tradeLines, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}
	assetLines, err := marshalJSONL(assets)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive assets marshal: %w", err)
	}

	var total int64
	detail := map[string]any{"before": before.UTC().Format(time.RFC3339)}
	for _, part := range []struct {
		kind  string
		lines []byte
		n     int
	}{
		{"trades", tradeLines, len(trades)},
		{"assets", assetLines, len(assets)},
	} {
		if part.n == 0 {
			continue
		}
		path := ArchivePath(part.kind, before)
		replaced, err := a.upload(ctx, path, part.lines)
		if err != nil {
			return total, err
		}
		total += int64(part.n)
		detail[part.kind] = map[string]any{"path": path, "count": part.n, "replaced": replaced}
	}

	if total == 0 {
		return 0, nil
	}
	if err := a.audit.Log(ctx, "archive.ledger", detail); err != nil {
		return total, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return total, nil
}

// Snapshots lists objects previously written by ArchiveLedger.
func (a *ArchiveImpl) Snapshots(ctx context.Context) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, nil
	}
	return a.reader.List(ctx, "archive/")
}

func (a *ArchiveImpl) upload(ctx context.Context, path string, lines []byte) (bool, error) {
	var replaced bool
	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return false, err
		}
		replaced = ok
	}

	var err error
	if int64(len(lines)) > MinPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(lines), MinPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(lines), ndjsonContentType)
	}
	if err != nil {
		return false, fmt.Errorf("s3blob: archive upload: %w", err)
	}
	return replaced, nil
}

// ArchivePath is the snapshot key for kind on the cutoff's UTC date.
//
//	archive/trades/2025-01-31.jsonl
func ArchivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02"))
}

// marshalJSONL writes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
