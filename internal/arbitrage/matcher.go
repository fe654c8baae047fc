package arbitrage

import (
	"log/slog"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// MatcherConfig configures opportunity detection.
type MatcherConfig struct {
	MinProfitBps int64 // spreads below this are discarded; exactly equal is kept
}

// Matcher compares venue quotes pairwise and keeps every spread at or above
// the threshold. Ranking looks at quoted prices only: venue fees and gas are
// deliberately not deducted here, the per-leg settlement minimums carry that
// protection instead.
type Matcher struct {
	cfg    MatcherConfig
	logger *slog.Logger
}

func NewMatcher(cfg MatcherConfig, logger *slog.Logger) *Matcher {
	return &Matcher{cfg: cfg, logger: logger.With(slog.String("component", "matcher"))}
}

// Match returns opportunities for one pair's quote set, sorted by spread
// descending. The sort is stable and comparison order is fixed, so the same
// quote set always yields the same ranking.
func (m *Matcher) Match(pairID string, quotes []domain.VenueQuote) []domain.Opportunity {
	var opps []domain.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			opp, ok := m.compare(pairID, quotes[i], quotes[j])
			if !ok {
				continue
			}
			opps = append(opps, opp)
		}
	}
	sort.SliceStable(opps, func(a, b int) bool { return opps[a].SpreadBps > opps[b].SpreadBps })
	return opps
}

func (m *Matcher) compare(pairID string, a, b domain.VenueQuote) (domain.Opportunity, bool) {
	// Unpriceable venues are excluded upstream; skip rather than trust that.
	if a.Price == nil || b.Price == nil || a.Price.Sign() <= 0 || b.Price.Sign() <= 0 {
		return domain.Opportunity{}, false
	}
	buy, sell := a, b
	if buy.Price.Cmp(sell.Price) > 0 {
		buy, sell = sell, buy
	}
	bps := SpreadBps(buy.Price, sell.Price)
	if bps < m.cfg.MinProfitBps {
		return domain.Opportunity{}, false
	}
	opp := domain.Opportunity{
		ID:         uuid.Must(uuid.NewRandom()).String(),
		Pair:       pairID,
		Buy:        buy,
		Sell:       sell,
		SpreadBps:  bps,
		DetectedAt: time.Now().UTC(),
	}
	m.logger.Debug("spread retained",
		slog.String("pair", pairID),
		slog.String("buy", buy.Venue),
		slog.String("sell", sell.Venue),
		slog.Int64("spread_bps", bps),
	)
	return opp, true
}

// SpreadBps is the symmetric spread between two scaled prices in basis
// points: round(|a-b| * 10000 / min(a, b)), rounded half up, on integers
// all the way through.
func SpreadBps(a, b *big.Int) int64 {
	lo, hi := a, b
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	diff := new(big.Int).Sub(hi, lo)
	num := diff.Mul(diff, big.NewInt(10000))
	q, r := new(big.Int).QuoRem(num, lo, new(big.Int))
	if r.Lsh(r, 1).Cmp(lo) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsInt64() {
		// Only reachable with degenerate prices; cap instead of wrapping.
		return math.MaxInt64
	}
	return q.Int64()
}
