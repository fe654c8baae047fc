package executor

import (
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

var (
	wethAddr = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdcAddr = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func testTokens() []domain.Token {
	return []domain.Token{
		{Symbol: "WETH", Address: wethAddr, Decimals: 18},
		{Symbol: "USDC", Address: usdcAddr, Decimals: 6},
	}
}

func testPair() domain.TokenPair {
	return domain.TokenPair{
		Base:  domain.Token{Symbol: "WETH", Address: wethAddr, Decimals: 18},
		Quote: domain.Token{Symbol: "USDC", Address: usdcAddr, Decimals: 6},
	}
}

func testOpportunity(buyKind, sellKind domain.VenueKind) domain.Opportunity {
	return domain.Opportunity{
		ID:   "opp-1",
		Pair: "WETH/USDC",
		Buy: domain.VenueQuote{
			Venue:   "buy",
			Kind:    buyKind,
			Pool:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
			FeeTier: 3000,
			CoinI:   2,
			CoinJ:   1,
			Price:   big.NewInt(2_000_000_000), // 2000 quote/base at 6/18 decimals
		},
		Sell: domain.VenueQuote{
			Venue:   "sell",
			Kind:    sellKind,
			Pool:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
			FeeTier: 500,
			CoinI:   2,
			CoinJ:   1,
			Price:   big.NewInt(2_010_000_000),
		},
		SpreadBps: 50,
	}
}

func testPlanner(t *testing.T, cfg PlannerConfig, tokens []domain.Token) *Planner {
	t.Helper()
	return NewPlanner(cfg, tokens, slog.New(slog.DiscardHandler))
}

func TestPlannerBuild(t *testing.T) {
	p := testPlanner(t, PlannerConfig{NotionalWhole: 10_000, SlippageBps: 50, PremiumBps: 5}, testTokens())
	opp := testOpportunity(domain.VenueConstantProduct, domain.VenueConcentratedLiquidity)

	plan, loan, err := p.Build(opp, testPair())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// 10k whole USDC at 6 decimals.
	wantBorrow := big.NewInt(10_000_000_000)
	if plan.BorrowAmount.Cmp(wantBorrow) != 0 {
		t.Errorf("BorrowAmount = %s, want %s", plan.BorrowAmount, wantBorrow)
	}
	if plan.Borrowed != usdcAddr || plan.Intermediate != wethAddr {
		t.Errorf("assets = %s/%s, want USDC/WETH", plan.Borrowed.Hex(), plan.Intermediate.Hex())
	}

	if plan.Leg1.Venue != domain.VenueConstantProduct || plan.Leg1.Pool != opp.Buy.Pool {
		t.Errorf("Leg1 = %+v, want buy venue fields", plan.Leg1)
	}
	if plan.Leg2.Venue != domain.VenueConcentratedLiquidity || plan.Leg2.Pool != opp.Sell.Pool || plan.Leg2.FeeTier != 500 {
		t.Errorf("Leg2 = %+v, want sell venue fields", plan.Leg2)
	}

	// Expected leg1 output: 10k USDC at 2000 gives 5 WETH, minus 50 bps.
	wantMin1 := new(big.Int).Mul(big.NewInt(4_975), exp10(15))
	if plan.Leg1.MinOut.Cmp(wantMin1) != 0 {
		t.Errorf("Leg1.MinOut = %s, want %s", plan.Leg1.MinOut, wantMin1)
	}
	// Expected leg2 output: 5 WETH at 2010 gives 10050 USDC, minus 50 bps.
	wantMin2 := big.NewInt(9_999_750_000)
	if plan.Leg2.MinOut.Cmp(wantMin2) != 0 {
		t.Errorf("Leg2.MinOut = %s, want %s", plan.Leg2.MinOut, wantMin2)
	}

	if loan.Asset != usdcAddr {
		t.Errorf("loan asset = %s, want USDC", loan.Asset.Hex())
	}
	if loan.Principal.Cmp(wantBorrow) != 0 {
		t.Errorf("Principal = %s, want %s", loan.Principal, wantBorrow)
	}
	// 5 bps on 10k USDC.
	if loan.Premium.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Errorf("Premium = %s, want 5000000", loan.Premium)
	}
}

func TestPlannerStableswapCoinOrder(t *testing.T) {
	p := testPlanner(t, PlannerConfig{NotionalWhole: 100, SlippageBps: 50, PremiumBps: 5}, testTokens())
	opp := testOpportunity(domain.VenueStableSwap, domain.VenueStableSwap)

	plan, _, err := p.Build(opp, testPair())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// Quotes carry indices base-first. Leg 1 swaps quote in, base out, so the
	// indices invert; leg 2 runs base in, quote out, and keeps them.
	if plan.Leg1.CoinI != 1 || plan.Leg1.CoinJ != 2 {
		t.Errorf("Leg1 coins = %d/%d, want 1/2", plan.Leg1.CoinI, plan.Leg1.CoinJ)
	}
	if plan.Leg2.CoinI != 2 || plan.Leg2.CoinJ != 1 {
		t.Errorf("Leg2 coins = %d/%d, want 2/1", plan.Leg2.CoinI, plan.Leg2.CoinJ)
	}
}

func TestPlannerDefaultsUnknownDecimals(t *testing.T) {
	// Empty registry: the quote token is unknown, so sizing falls back to 18.
	p := testPlanner(t, PlannerConfig{NotionalWhole: 3, SlippageBps: 0, PremiumBps: 0}, nil)
	opp := testOpportunity(domain.VenueConstantProduct, domain.VenueConstantProduct)

	plan, _, err := p.Build(opp, testPair())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(3), exp10(18))
	if plan.BorrowAmount.Cmp(want) != 0 {
		t.Errorf("BorrowAmount = %s, want %s", plan.BorrowAmount, want)
	}
}

func TestPlannerRejectsUnknownVenue(t *testing.T) {
	p := testPlanner(t, PlannerConfig{NotionalWhole: 100, SlippageBps: 50, PremiumBps: 5}, testTokens())

	opp := testOpportunity(domain.VenueKind(9), domain.VenueConstantProduct)
	if _, _, err := p.Build(opp, testPair()); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("Build() leg1 error = %v, want %v", err, domain.ErrUnknownVenue)
	}

	opp = testOpportunity(domain.VenueConstantProduct, domain.VenueKind(9))
	if _, _, err := p.Build(opp, testPair()); !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("Build() leg2 error = %v, want %v", err, domain.ErrUnknownVenue)
	}
}

func TestPlannerZeroSlippageKeepsQuotedOutput(t *testing.T) {
	p := testPlanner(t, PlannerConfig{NotionalWhole: 10_000, SlippageBps: 0, PremiumBps: 5}, testTokens())
	opp := testOpportunity(domain.VenueConstantProduct, domain.VenueConstantProduct)

	plan, _, err := p.Build(opp, testPair())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(5), exp10(18))
	if plan.Leg1.MinOut.Cmp(want) != 0 {
		t.Errorf("Leg1.MinOut = %s, want %s", plan.Leg1.MinOut, want)
	}
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
