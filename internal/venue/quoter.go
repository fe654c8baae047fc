package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// AmountOut asks the leg's venue what amountIn of tokenIn currently buys in
// tokenOut. Constant-product legs go through the router, concentrated legs
// through the quoter, stable legs straight to the pool. The preflight
// simulator drives its swaps through this, so a plan is rehearsed against
// the same read paths the settlement contract will hit.
func (a *Adapter) AmountOut(ctx context.Context, leg domain.PlanLeg, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	switch leg.Venue {
	case domain.VenueConstantProduct:
		out, err := a.call(ctx, a.cfg.Router, routerABI, "getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
		if err != nil {
			return nil, err
		}
		amounts := out[0].([]*big.Int)
		if len(amounts) != 2 {
			return nil, fmt.Errorf("venue: getAmountsOut returned %d hops, want 2", len(amounts))
		}
		return amounts[1], nil

	case domain.VenueConcentratedLiquidity:
		out, err := a.call(ctx, a.cfg.Quoter, quoterABI, "quoteExactInputSingle",
			tokenIn, tokenOut, big.NewInt(int64(leg.FeeTier)), amountIn, big.NewInt(0))
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil

	case domain.VenueStableSwap:
		out, err := a.call(ctx, leg.Pool, stablePoolABI, "get_dy",
			big.NewInt(leg.CoinI), big.NewInt(leg.CoinJ), amountIn)
		if err != nil {
			return nil, err
		}
		return out[0].(*big.Int), nil

	default:
		return nil, fmt.Errorf("venue: leg venue %d: %w", leg.Venue, domain.ErrUnknownVenue)
	}
}
