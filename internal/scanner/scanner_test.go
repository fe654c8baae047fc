package scanner

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/venue"
)

func pairSpec(base, quote string) venue.PairSpec {
	return venue.PairSpec{TokenPair: domain.TokenPair{
		Base:  domain.Token{Symbol: base, Decimals: 18},
		Quote: domain.Token{Symbol: quote, Decimals: 6},
	}}
}

func twoQuotes() []domain.VenueQuote {
	return []domain.VenueQuote{
		{Venue: "a", Price: big.NewInt(1), Liquidity: big.NewInt(1)},
		{Venue: "b", Price: big.NewInt(2), Liquidity: big.NewInt(1)},
	}
}

type fakeSource struct {
	quotes map[string][]domain.VenueQuote

	// When set, the first snapshot parks until released.
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *fakeSource) Snapshot(_ context.Context, spec venue.PairSpec) []domain.VenueQuote {
	if s.entered != nil {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.quotes[spec.ID()]
}

type fakeMatcher struct {
	opps  map[string][]domain.Opportunity
	calls int
}

func (m *fakeMatcher) Match(pairID string, _ []domain.VenueQuote) []domain.Opportunity {
	m.calls++
	return m.opps[pairID]
}

type fakeTrader struct {
	opps  []domain.Opportunity
	pairs []domain.TokenPair
	err   error
}

func (t *fakeTrader) Execute(_ context.Context, opp domain.Opportunity, pair domain.TokenPair) (domain.SettlementRecord, error) {
	t.opps = append(t.opps, opp)
	t.pairs = append(t.pairs, pair)
	return domain.SettlementRecord{ID: "rec-" + opp.ID, OpportunityID: opp.ID}, t.err
}

type fakeJournal struct {
	quoteCalls  int
	opps        []domain.Opportunity
	settlements []domain.SettlementRecord
}

func (j *fakeJournal) RecordQuotes(context.Context, string, []domain.VenueQuote) { j.quoteCalls++ }
func (j *fakeJournal) RecordOpportunities(_ context.Context, opps []domain.Opportunity) {
	j.opps = append(j.opps, opps...)
}
func (j *fakeJournal) RecordSettlement(_ context.Context, rec domain.SettlementRecord) {
	j.settlements = append(j.settlements, rec)
}

func newTestScanner(cfg Config, source QuoteSource, matcher Matcher, trader Trader, journal Recorder) *Scanner {
	return New(cfg, source, matcher, trader, journal, slog.New(slog.DiscardHandler))
}

func TestTriggerDropsOverlapping(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{
		quotes:  map[string][]domain.VenueQuote{spec.ID(): twoQuotes()},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{spec}}, source, &fakeMatcher{}, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Trigger(context.Background())
		close(done)
	}()
	<-source.entered

	// A trigger landing mid-cycle is dropped, not queued.
	s.Trigger(context.Background())
	s.Trigger(context.Background())
	if got := s.Stats().Dropped; got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}

	close(source.release)
	<-done
	stats := s.Stats()
	if stats.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", stats.Cycles)
	}
	if stats.LastCycle.IsZero() {
		t.Error("LastCycle not recorded")
	}

	// The slot frees up for the next trigger.
	s.Trigger(context.Background())
	if got := s.Stats().Cycles; got != 2 {
		t.Errorf("Cycles after release = %d, want 2", got)
	}
}

func TestCycleExecutesBestAcrossPairs(t *testing.T) {
	specA := pairSpec("WETH", "USDC")
	specB := pairSpec("WBTC", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{
		specA.ID(): twoQuotes(),
		specB.ID(): twoQuotes(),
	}}
	matcher := &fakeMatcher{opps: map[string][]domain.Opportunity{
		specA.ID(): {{ID: "o1", Pair: specA.ID(), SpreadBps: 30}},
		specB.ID(): {{ID: "o2", Pair: specB.ID(), SpreadBps: 50}},
	}}
	trader := &fakeTrader{}
	journal := &fakeJournal{}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{specA, specB}, Execute: true}, source, matcher, trader, journal)

	s.Trigger(context.Background())

	// Only the best spread across every pair is handed to the trader.
	if len(trader.opps) != 1 || trader.opps[0].ID != "o2" {
		t.Fatalf("trader executed %+v, want exactly o2", trader.opps)
	}
	if trader.pairs[0].ID() != specB.ID() {
		t.Errorf("trader pair = %s, want %s", trader.pairs[0].ID(), specB.ID())
	}

	if journal.quoteCalls != 2 {
		t.Errorf("quote journal calls = %d, want 2", journal.quoteCalls)
	}
	if len(journal.opps) != 2 {
		t.Errorf("journaled opportunities = %d, want 2", len(journal.opps))
	}
	if len(journal.settlements) != 1 || journal.settlements[0].OpportunityID != "o2" {
		t.Errorf("journaled settlements = %+v, want one for o2", journal.settlements)
	}

	stats := s.Stats()
	if stats.Opportunities != 2 || stats.Settlements != 1 {
		t.Errorf("stats = %d opps / %d settlements, want 2/1", stats.Opportunities, stats.Settlements)
	}
}

func TestCycleRecordsFailedSettlement(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{spec.ID(): twoQuotes()}}
	matcher := &fakeMatcher{opps: map[string][]domain.Opportunity{
		spec.ID(): {{ID: "o1", Pair: spec.ID(), SpreadBps: 30}},
	}}
	trader := &fakeTrader{err: errors.New("reverted")}
	journal := &fakeJournal{}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{spec}, Execute: true}, source, matcher, trader, journal)

	s.Trigger(context.Background())

	// The attempt is journaled even though it failed, and does not count as
	// a settlement.
	if len(journal.settlements) != 1 {
		t.Fatalf("journaled settlements = %d, want 1", len(journal.settlements))
	}
	if got := s.Stats().Settlements; got != 0 {
		t.Errorf("Settlements = %d, want 0", got)
	}
}

func TestCycleWithoutExecuteNeverTrades(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{spec.ID(): twoQuotes()}}
	matcher := &fakeMatcher{opps: map[string][]domain.Opportunity{
		spec.ID(): {{ID: "o1", Pair: spec.ID(), SpreadBps: 30}},
	}}
	trader := &fakeTrader{}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{spec}}, source, matcher, trader, nil)

	s.Trigger(context.Background())
	if len(trader.opps) != 0 {
		t.Fatalf("trader executed %d opportunities with execute off, want 0", len(trader.opps))
	}
}

func TestCycleSkipsThinQuoteSets(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{
		spec.ID(): {{Venue: "only", Price: big.NewInt(1)}},
	}}
	matcher := &fakeMatcher{}
	journal := &fakeJournal{}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{spec}}, source, matcher, nil, journal)

	s.Trigger(context.Background())
	if matcher.calls != 0 {
		t.Errorf("matcher called %d times on a single-venue pair, want 0", matcher.calls)
	}
	// The thin quote set is still journaled and visible.
	if journal.quoteCalls != 1 {
		t.Errorf("quote journal calls = %d, want 1", journal.quoteCalls)
	}
	if got := s.LastQuotes()[spec.ID()]; len(got) != 1 {
		t.Errorf("LastQuotes() kept %d quotes, want 1", len(got))
	}
}

func TestRunOnHeads(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{spec.ID(): twoQuotes()}}
	s := newTestScanner(Config{Interval: time.Second, Pairs: []venue.PairSpec{spec}}, source, &fakeMatcher{}, nil, nil)

	heads := make(chan uint64, 2)
	heads <- 100
	heads <- 101
	close(heads)

	if err := s.RunOnHeads(context.Background(), heads); err != nil {
		t.Fatalf("RunOnHeads() error = %v", err)
	}
	if got := s.Stats().Cycles; got != 2 {
		t.Errorf("Cycles = %d, want 2", got)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	spec := pairSpec("WETH", "USDC")
	source := &fakeSource{quotes: map[string][]domain.VenueQuote{spec.ID(): twoQuotes()}}
	s := newTestScanner(Config{Interval: time.Millisecond, Pairs: []venue.PairSpec{spec}}, source, &fakeMatcher{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
}
