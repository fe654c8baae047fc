// Package executor turns detected opportunities into settlement plans and
// carries them through signing, submission, and receipt decoding.
package executor

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// PlannerConfig sizes and protects the plans the planner emits.
type PlannerConfig struct {
	NotionalWhole int64 // borrow size in whole units of the borrowed token
	SlippageBps   int64 // haircut applied to quoted outputs for leg minimums
	PremiumBps    int64 // loan facility premium rate
}

// Planner maps opportunities onto executable settlement plans. It holds the
// token registry used for decimals lookups; everything else arrives with the
// opportunity.
type Planner struct {
	cfg    PlannerConfig
	tokens map[common.Address]domain.Token
	logger *slog.Logger
}

func NewPlanner(cfg PlannerConfig, tokens []domain.Token, logger *slog.Logger) *Planner {
	reg := make(map[common.Address]domain.Token, len(tokens))
	for _, t := range tokens {
		reg[t.Address] = t
	}
	return &Planner{
		cfg:    cfg,
		tokens: reg,
		logger: logger.With(slog.String("component", "planner")),
	}
}

// Build produces the plan and matching loan terms for one opportunity. The
// borrowed asset is the pair's quote token: leg 1 spends it on the buy venue
// for the base token, leg 2 sells the base back on the sell venue. A venue
// kind the planner cannot map fails the plan and nothing else.
func (p *Planner) Build(opp domain.Opportunity, pair domain.TokenPair) (domain.SettlementPlan, domain.LoanTerms, error) {
	dec := p.decimals(pair.Quote.Address)
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)
	borrow := new(big.Int).Mul(big.NewInt(p.cfg.NotionalWhole), unit)

	leg1, err := p.leg(opp.Buy, false)
	if err != nil {
		return domain.SettlementPlan{}, domain.LoanTerms{}, fmt.Errorf("executor: plan leg1 (%s): %w", opp.Buy.Venue, err)
	}
	leg2, err := p.leg(opp.Sell, true)
	if err != nil {
		return domain.SettlementPlan{}, domain.LoanTerms{}, fmt.Errorf("executor: plan leg2 (%s): %w", opp.Sell.Venue, err)
	}

	// Leg 1 buys base with the borrowed quote: expected = borrow / buyPrice.
	exp1 := new(big.Int).Mul(borrow, domain.PriceScale)
	exp1.Quo(exp1, opp.Buy.Price)
	leg1.MinOut = haircut(exp1, p.cfg.SlippageBps)

	// Leg 2 sells that base at the sell venue: expected = baseOut * sellPrice.
	exp2 := new(big.Int).Mul(exp1, opp.Sell.Price)
	exp2.Quo(exp2, domain.PriceScale)
	leg2.MinOut = haircut(exp2, p.cfg.SlippageBps)

	plan := domain.SettlementPlan{
		Borrowed:     pair.Quote.Address,
		Intermediate: pair.Base.Address,
		BorrowAmount: borrow,
		Leg1:         leg1,
		Leg2:         leg2,
	}
	loan := domain.LoanTerms{
		Asset:     pair.Quote.Address,
		Principal: borrow,
		Premium:   domain.PremiumFor(borrow, p.cfg.PremiumBps),
	}
	p.logger.Debug("plan built",
		slog.String("pair", opp.Pair),
		slog.String("borrow", borrow.String()),
		slog.String("min_out_leg1", leg1.MinOut.String()),
		slog.String("min_out_leg2", leg2.MinOut.String()),
	)
	return plan, loan, nil
}

// leg maps one quote onto a plan leg. baseIn tells a stableswap leg which
// way around its coin indices go: quotes carry them base-first, and leg 1
// swaps into the base while leg 2 swaps out of it.
func (p *Planner) leg(q domain.VenueQuote, baseIn bool) (domain.PlanLeg, error) {
	switch q.Kind {
	case domain.VenueConstantProduct:
		return domain.PlanLeg{Venue: q.Kind, Pool: q.Pool}, nil
	case domain.VenueConcentratedLiquidity:
		return domain.PlanLeg{Venue: q.Kind, Pool: q.Pool, FeeTier: q.FeeTier}, nil
	case domain.VenueStableSwap:
		leg := domain.PlanLeg{Venue: q.Kind, Pool: q.Pool, CoinI: q.CoinJ, CoinJ: q.CoinI}
		if baseIn {
			leg.CoinI, leg.CoinJ = q.CoinI, q.CoinJ
		}
		return leg, nil
	default:
		return domain.PlanLeg{}, domain.ErrUnknownVenue
	}
}

// decimals resolves the registered decimals for an asset. Unknown tokens and
// tokens registered without decimals fall back to the default of 18; sizing
// for those is only as good as that assumption, which is why the fallback is
// logged every time.
func (p *Planner) decimals(asset common.Address) uint8 {
	if t, ok := p.tokens[asset]; ok && t.Decimals > 0 {
		return t.Decimals
	}
	p.logger.Warn("token decimals unknown, assuming default",
		slog.String("asset", asset.Hex()),
		slog.Int("decimals", domain.DefaultDecimals),
	)
	return domain.DefaultDecimals
}

func haircut(amount *big.Int, bps int64) *big.Int {
	cut := new(big.Int).Mul(amount, big.NewInt(10000-bps))
	return cut.Quo(cut, big.NewInt(10000))
}
