package arbitrage

import (
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

func scaled(whole, tenths int64) *big.Int {
	v := new(big.Int).Mul(big.NewInt(whole*10+tenths), big.NewInt(1e17))
	return v
}

func testQuote(venue string, price *big.Int) domain.VenueQuote {
	return domain.VenueQuote{
		Venue:     venue,
		Kind:      domain.VenueConstantProduct,
		Price:     price,
		Liquidity: big.NewInt(1),
		At:        time.Now().UTC(),
	}
}

func TestSpreadBps(t *testing.T) {
	tests := []struct {
		name string
		a, b *big.Int
		want int64
	}{
		{"equal prices", scaled(100, 0), scaled(100, 0), 0},
		{"twenty bps", scaled(100, 0), scaled(100, 2), 20},
		{"one percent", scaled(100, 0), scaled(101, 0), 100},
		{"doubled price", scaled(100, 0), scaled(200, 0), 10_000},
		{"rounds half up", big.NewInt(20_000), big.NewInt(20_001), 1},
		{"rounds below half down", big.NewInt(30_000), big.NewInt(30_001), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpreadBps(tt.a, tt.b); got != tt.want {
				t.Errorf("SpreadBps(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// The spread is symmetric in its arguments.
			if got := SpreadBps(tt.b, tt.a); got != tt.want {
				t.Errorf("SpreadBps(%s, %s) = %d, want %d", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestMatchThreshold(t *testing.T) {
	cheap := testQuote("uniswap_v2", scaled(100, 0))
	dear := testQuote("uniswap_v3_3000", scaled(100, 2))

	tests := []struct {
		name         string
		minProfitBps int64
		quotes       []domain.VenueQuote
		wantOpps     int
	}{
		{"spread above threshold", 10, []domain.VenueQuote{cheap, dear}, 1},
		{"spread exactly at threshold", 20, []domain.VenueQuote{cheap, dear}, 1},
		{"spread below threshold", 25, []domain.VenueQuote{cheap, dear}, 0},
		{"dear venue listed first", 10, []domain.VenueQuote{dear, cheap}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(MatcherConfig{MinProfitBps: tt.minProfitBps}, slog.New(slog.DiscardHandler))
			opps := m.Match("WETH/USDC", tt.quotes)
			if len(opps) != tt.wantOpps {
				t.Fatalf("Match() returned %d opportunities, want %d", len(opps), tt.wantOpps)
			}
			if tt.wantOpps == 0 {
				return
			}
			opp := opps[0]
			if opp.Buy.Venue != "uniswap_v2" || opp.Sell.Venue != "uniswap_v3_3000" {
				t.Errorf("buy/sell orientation = %s/%s, want uniswap_v2/uniswap_v3_3000", opp.Buy.Venue, opp.Sell.Venue)
			}
			if opp.SpreadBps != 20 {
				t.Errorf("SpreadBps = %d, want 20", opp.SpreadBps)
			}
			if opp.ID == "" {
				t.Error("opportunity ID is empty")
			}
			if opp.DetectedAt.IsZero() {
				t.Error("DetectedAt is zero")
			}
			if opp.Pair != "WETH/USDC" {
				t.Errorf("Pair = %q, want WETH/USDC", opp.Pair)
			}
		})
	}
}

func TestMatchRankingDeterministic(t *testing.T) {
	quotes := []domain.VenueQuote{
		testQuote("a", scaled(100, 0)),
		testQuote("b", scaled(100, 2)),
		testQuote("c", scaled(100, 2)),
		testQuote("d", scaled(101, 0)),
	}
	m := NewMatcher(MatcherConfig{MinProfitBps: 10}, slog.New(slog.DiscardHandler))

	// The same quote set must always produce the same ranking: spreads
	// descending, ties in first-seen comparison order.
	want := []struct {
		buy, sell string
		bps       int64
	}{
		{"a", "d", 100},
		{"b", "d", 80},
		{"c", "d", 80},
		{"a", "b", 20},
		{"a", "c", 20},
	}
	for run := 0; run < 3; run++ {
		opps := m.Match("WETH/USDC", quotes)
		if len(opps) != len(want) {
			t.Fatalf("run %d: Match() returned %d opportunities, want %d", run, len(opps), len(want))
		}
		for i, w := range want {
			got := opps[i]
			if got.Buy.Venue != w.buy || got.Sell.Venue != w.sell || got.SpreadBps != w.bps {
				t.Errorf("run %d: opps[%d] = %s->%s @%d, want %s->%s @%d",
					run, i, got.Buy.Venue, got.Sell.Venue, got.SpreadBps, w.buy, w.sell, w.bps)
			}
		}
	}
}

func TestMatchSkipsUnpriceableQuotes(t *testing.T) {
	m := NewMatcher(MatcherConfig{MinProfitBps: 0}, slog.New(slog.DiscardHandler))
	quotes := []domain.VenueQuote{
		testQuote("priced", scaled(100, 0)),
		testQuote("nil price", nil),
		testQuote("zero price", big.NewInt(0)),
	}
	if opps := m.Match("WETH/USDC", quotes); len(opps) != 0 {
		t.Fatalf("Match() returned %d opportunities from unpriceable quotes, want 0", len(opps))
	}
}
