// Package scanner drives the recurring market scan: each cycle prices every
// configured pair across its venues, ranks the spreads, and hands the single
// best opportunity to the trader.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/venue"
)

// QuoteSource snapshots one pair across venues. *venue.Adapter satisfies it.
type QuoteSource interface {
	Snapshot(ctx context.Context, spec venue.PairSpec) []domain.VenueQuote
}

// Matcher ranks a pair's quote set. *arbitrage.Matcher satisfies it.
type Matcher interface {
	Match(pairID string, quotes []domain.VenueQuote) []domain.Opportunity
}

// Trader executes one opportunity to completion. *executor.Executor
// satisfies it.
type Trader interface {
	Execute(ctx context.Context, opp domain.Opportunity, pair domain.TokenPair) (domain.SettlementRecord, error)
}

// Recorder receives scan results for history, caches, and notifications.
// *journal.Recorder satisfies it.
type Recorder interface {
	RecordQuotes(ctx context.Context, pairID string, quotes []domain.VenueQuote)
	RecordOpportunities(ctx context.Context, opps []domain.Opportunity)
	RecordSettlement(ctx context.Context, rec domain.SettlementRecord)
}

// Config shapes the scan loop.
type Config struct {
	Interval time.Duration
	Pairs    []venue.PairSpec
	Execute  bool // hand the best opportunity of each cycle to the trader
}

// Stats are the cycle counters exposed on the status endpoint.
type Stats struct {
	Cycles        uint64        `json:"cycles"`
	Dropped       uint64        `json:"dropped_triggers"`
	Opportunities uint64        `json:"opportunities"`
	Settlements   uint64        `json:"settlements"`
	LastCycle     time.Time     `json:"last_cycle"`
	LastDuration  time.Duration `json:"last_duration_ns"`
}

// Scanner owns the only mutable scan state: the counters and the latest
// quote set per pair, both guarded by a mutex. Cycles themselves never
// overlap; a trigger that lands while a cycle is still running, including
// a settlement it is waiting on, is dropped rather than queued.
type Scanner struct {
	cfg     Config
	source  QuoteSource
	matcher Matcher
	trader  Trader   // nil when the process never submits
	journal Recorder // optional
	logger  *slog.Logger

	busy atomic.Bool

	mu    sync.Mutex
	stats Stats
	last  map[string][]domain.VenueQuote
}

func New(cfg Config, source QuoteSource, matcher Matcher, trader Trader, journal Recorder, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		source:  source,
		matcher: matcher,
		trader:  trader,
		journal: journal,
		logger:  logger.With(slog.String("component", "scanner")),
		last:    make(map[string][]domain.VenueQuote),
	}
}

// Run scans on a fixed interval until the context ends.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("pairs", len(s.cfg.Pairs)),
		slog.Bool("execute", s.cfg.Execute),
	)
	defer s.logger.Info("scanner stopped")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}

// RunOnHeads scans when new block numbers arrive instead of on a timer.
func (s *Scanner) RunOnHeads(ctx context.Context, heads <-chan uint64) error {
	s.logger.Info("scanner started on head triggers", slog.Int("pairs", len(s.cfg.Pairs)))
	defer s.logger.Info("scanner stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-heads:
			if !ok {
				return nil
			}
			s.logger.Debug("head trigger", slog.Uint64("block", n))
			s.Trigger(ctx)
		}
	}
}

// Trigger attempts one cycle, dropping the attempt when the previous cycle
// has not finished.
func (s *Scanner) Trigger(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Debug("cycle still running, trigger dropped")
		return
	}
	defer s.busy.Store(false)
	s.cycle(ctx)
}

// cycle scans pairs sequentially; venue queries inside a pair fan out in the
// quote source. The best opportunity across all pairs, first seen on ties,
// is the one executed.
func (s *Scanner) cycle(ctx context.Context) {
	start := time.Now()
	var (
		best     domain.Opportunity
		bestPair domain.TokenPair
		found    uint64
	)
	for _, spec := range s.cfg.Pairs {
		if ctx.Err() != nil {
			return
		}
		quotes := s.source.Snapshot(ctx, spec)
		s.remember(spec.ID(), quotes)
		if s.journal != nil {
			s.journal.RecordQuotes(ctx, spec.ID(), quotes)
		}
		if len(quotes) < 2 {
			s.logger.Debug("not enough venues to compare",
				slog.String("pair", spec.ID()),
				slog.Int("venues", len(quotes)),
			)
			continue
		}
		opps := s.matcher.Match(spec.ID(), quotes)
		if len(opps) == 0 {
			continue
		}
		found += uint64(len(opps))
		if s.journal != nil {
			s.journal.RecordOpportunities(ctx, opps)
		}
		if best.ID == "" || opps[0].SpreadBps > best.SpreadBps {
			best = opps[0]
			bestPair = spec.TokenPair
		}
	}

	var settled uint64
	if best.ID != "" {
		s.logger.Info("best opportunity",
			slog.String("pair", best.Pair),
			slog.String("buy", best.Buy.Venue),
			slog.String("sell", best.Sell.Venue),
			slog.Int64("spread_bps", best.SpreadBps),
			slog.String("buy_price", best.Buy.PriceDecimal().String()),
			slog.String("sell_price", best.Sell.PriceDecimal().String()),
		)
		if s.cfg.Execute && s.trader != nil {
			rec, err := s.trader.Execute(ctx, best, bestPair)
			if err != nil {
				s.logger.Error("settlement attempt failed",
					slog.String("opportunity_id", best.ID),
					slog.String("error", err.Error()),
				)
			} else {
				settled++
			}
			if s.journal != nil && rec.ID != "" {
				s.journal.RecordSettlement(ctx, rec)
			}
		}
	}

	s.mu.Lock()
	s.stats.Cycles++
	s.stats.Opportunities += found
	s.stats.Settlements += settled
	s.stats.LastCycle = start.UTC()
	s.stats.LastDuration = time.Since(start)
	s.mu.Unlock()
	s.logger.Debug("cycle done",
		slog.Uint64("opportunities", found),
		slog.Duration("took", time.Since(start)),
	)
}

// Stats returns a copy of the counters.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// LastQuotes returns the most recent quote set per pair.
func (s *Scanner) LastQuotes() map[string][]domain.VenueQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]domain.VenueQuote, len(s.last))
	for pair, quotes := range s.last {
		cp := make([]domain.VenueQuote, len(quotes))
		copy(cp, quotes)
		out[pair] = cp
	}
	return out
}

func (s *Scanner) remember(pairID string, quotes []domain.VenueQuote) {
	s.mu.Lock()
	s.last[pairID] = quotes
	s.mu.Unlock()
}
