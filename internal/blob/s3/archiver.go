package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Narrow store surfaces the archiver needs; the Postgres stores satisfy
// them implicitly.

// OpportunitySource reads and prunes aged opportunity rows.
type OpportunitySource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SettlementSource reads and prunes aged settlement rows.
type SettlementSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SettlementRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads one object. *Writer satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ArchiverConfig shapes the retention run.
type ArchiverConfig struct {
	RetentionDays int
	Interval      time.Duration
	Prune         bool // delete archived rows once the upload succeeded
}

// Archiver periodically moves history older than the retention window out
// of PostgreSQL into JSONL objects. Each run writes to a fresh timestamped
// key, so pruned rows can never be overwritten away by a later run.
type Archiver struct {
	cfg    ArchiverConfig
	writer BlobWriter
	opps   OpportunitySource
	setts  SettlementSource
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(cfg ArchiverConfig, writer BlobWriter, opps OpportunitySource, setts SettlementSource, logger *slog.Logger) *Archiver {
	return &Archiver{
		cfg:    cfg,
		writer: writer,
		opps:   opps,
		setts:  setts,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on the configured interval until the context ends.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started",
		slog.Int("retention_days", a.cfg.RetentionDays),
		slog.Duration("interval", a.cfg.Interval),
		slog.Bool("prune", a.cfg.Prune),
	)
	defer a.logger.Info("archiver stopped")

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce executes a single archive pass over both tables.
func (a *Archiver) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.RetentionDays)

	oppCount, err := a.archiveOpportunities(ctx, cutoff)
	if err != nil {
		return err
	}
	settCount, err := a.archiveSettlements(ctx, cutoff)
	if err != nil {
		return err
	}
	a.logger.Info("archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("opportunities", oppCount),
		slog.Int64("settlements", settCount),
	)
	return nil
}

func (a *Archiver) archiveOpportunities(ctx context.Context, cutoff time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}
	path := archivePath("opportunities", time.Now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	if a.cfg.Prune {
		if _, err := a.opps.DeleteBefore(ctx, cutoff); err != nil {
			return 0, fmt.Errorf("s3blob: prune opportunities: %w", err)
		}
	}
	return int64(len(opps)), nil
}

func (a *Archiver) archiveSettlements(ctx context.Context, cutoff time.Time) (int64, error) {
	setts, err := a.setts.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(setts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(setts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements marshal: %w", err)
	}
	path := archivePath("settlements", time.Now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements upload: %w", err)
	}

	if a.cfg.Prune {
		if _, err := a.setts.DeleteBefore(ctx, cutoff); err != nil {
			return 0, fmt.Errorf("s3blob: prune settlements: %w", err)
		}
	}
	return int64(len(setts)), nil
}

// archivePath builds the object key for one archive run,
// e.g. archive/settlements/20250825T031500.jsonl.
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.Format("20060102T150405"))
}

// marshalJSONL serialises a slice as newline-delimited JSON, one compact
// line per record.
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
