// Package journal fans scan results out to the durable sinks: the Postgres
// history, the Redis quote cache and event stream, and the operator notifier.
// Every sink is optional and every sink failure is absorbed after a log line;
// recording never fails a scan cycle.
package journal

import (
	"context"
	"log/slog"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// OpportunityStore persists detected spreads. *postgres.OpportunityStore
// satisfies it.
type OpportunityStore interface {
	Insert(ctx context.Context, opp domain.Opportunity) error
}

// SettlementStore persists settlement attempts. *postgres.SettlementStore
// satisfies it.
type SettlementStore interface {
	Upsert(ctx context.Context, rec domain.SettlementRecord) error
}

// Cache holds the latest quote set per pair for the status surface.
// *redis.QuoteCache satisfies it.
type Cache interface {
	SetQuotes(ctx context.Context, pairID string, quotes []domain.VenueQuote) error
}

// Stream publishes events for downstream consumers. *redis.EventStream
// satisfies it.
type Stream interface {
	PublishOpportunity(ctx context.Context, opp domain.Opportunity) error
	PublishSettlement(ctx context.Context, rec domain.SettlementRecord) error
}

// Notifier pings the operator channels. *notify.Notifier satisfies it.
type Notifier interface {
	OpportunityFound(ctx context.Context, opp domain.Opportunity) error
	SettlementSubmitted(ctx context.Context, rec domain.SettlementRecord) error
	SettlementSettled(ctx context.Context, rec domain.SettlementRecord) error
	SettlementFailed(ctx context.Context, rec domain.SettlementRecord) error
}

// Recorder is the single write path out of the scan loop. Any of its sinks
// may be nil when the operator runs without that backend.
type Recorder struct {
	opps     OpportunityStore
	setts    SettlementStore
	cache    Cache
	stream   Stream
	notifier Notifier
	logger   *slog.Logger
}

func New(opps OpportunityStore, setts SettlementStore, cache Cache, stream Stream, notifier Notifier, logger *slog.Logger) *Recorder {
	return &Recorder{
		opps:     opps,
		setts:    setts,
		cache:    cache,
		stream:   stream,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "journal")),
	}
}

// RecordQuotes refreshes the cached quote set for a pair.
func (r *Recorder) RecordQuotes(ctx context.Context, pairID string, quotes []domain.VenueQuote) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetQuotes(ctx, pairID, quotes); err != nil {
		r.sinkFailed(ctx, "quote cache", err)
	}
}

// RecordOpportunities persists and publishes a ranked opportunity list. The
// list arrives best-first; only the head is worth an operator ping.
func (r *Recorder) RecordOpportunities(ctx context.Context, opps []domain.Opportunity) {
	for _, opp := range opps {
		if r.opps != nil {
			if err := r.opps.Insert(ctx, opp); err != nil {
				r.sinkFailed(ctx, "opportunity store", err)
			}
		}
		if r.stream != nil {
			if err := r.stream.PublishOpportunity(ctx, opp); err != nil {
				r.sinkFailed(ctx, "opportunity stream", err)
			}
		}
	}
	if r.notifier != nil && len(opps) > 0 {
		if err := r.notifier.OpportunityFound(ctx, opps[0]); err != nil {
			r.sinkFailed(ctx, "notifier", err)
		}
	}
}

// SettlementSubmitted records a loan request the moment it is in flight,
// ahead of the final record.
func (r *Recorder) SettlementSubmitted(ctx context.Context, rec domain.SettlementRecord) {
	if r.setts != nil {
		if err := r.setts.Upsert(ctx, rec); err != nil {
			r.sinkFailed(ctx, "settlement store", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.SettlementSubmitted(ctx, rec); err != nil {
			r.sinkFailed(ctx, "notifier", err)
		}
	}
}

// RecordSettlement persists and publishes a finished settlement attempt.
func (r *Recorder) RecordSettlement(ctx context.Context, rec domain.SettlementRecord) {
	if r.setts != nil {
		if err := r.setts.Upsert(ctx, rec); err != nil {
			r.sinkFailed(ctx, "settlement store", err)
		}
	}
	if r.stream != nil {
		if err := r.stream.PublishSettlement(ctx, rec); err != nil {
			r.sinkFailed(ctx, "settlement stream", err)
		}
	}
	if r.notifier == nil {
		return
	}
	var err error
	switch rec.Status {
	case domain.SettlementSettled:
		err = r.notifier.SettlementSettled(ctx, rec)
	case domain.SettlementFailed:
		err = r.notifier.SettlementFailed(ctx, rec)
	}
	if err != nil {
		r.sinkFailed(ctx, "notifier", err)
	}
}

func (r *Recorder) sinkFailed(ctx context.Context, sink string, err error) {
	r.logger.ErrorContext(ctx, "sink write failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
}
