package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// multipartThreshold is the serialized-batch size above which the archiver
// switches to multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// TradeArchiveSource is the narrow slice of the trade store the archiver
// needs: read aged records and prune them once the archive is durable.
type TradeArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveWriter is the upload surface the archiver needs. Writer satisfies
// it.
type ArchiveWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

var _ ArchiveWriter = (*Writer)(nil)

// Archiver moves aged trade records from the primary ledger to object
// storage. Records are serialized to JSONL, uploaded under a year-month key,
// and pruned from the database only after the upload succeeds; a failed
// upload leaves the ledger untouched.
type Archiver struct {
	writer ArchiveWriter
	trades TradeArchiveSource
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer ArchiveWriter, trades TradeArchiveSource, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades uploads every trade record executed strictly before the
// cutoff to archive/trades/YYYY-MM.jsonl, records the event in the audit log,
// and deletes the archived rows. It returns the number of archived records.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "trade records archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			a.logger.WarnContext(ctx, "archive audit log failed",
				slog.String("error", err.Error()),
			)
		}
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		// The archive is durable; pruning can be retried on the next run.
		return count, fmt.Errorf("s3blob: prune archived trades: %w", err)
	}
	if deleted != count {
		a.logger.WarnContext(ctx, "archived and pruned counts differ",
			slog.Int64("archived", count),
			slog.Int64("pruned", deleted),
		)
	}
	return count, nil
}

// RunPeriodic archives on every tick until the context is cancelled,
// archiving everything older than retention at each pass.
func (a *Archiver) RunPeriodic(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.ArchiveTrades(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// archivePath builds the object key, partitioned by the cutoff's year-month.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
