package settlement

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Ledger is the engine's view of balances and swaps during one settlement.
// Implementations must behave transactionally: everything between Advance
// and a completed repayment either sticks as a whole or is undone by Revert.
type Ledger interface {
	// Advance credits the loan principal to the settlement balance.
	Advance(ctx context.Context, loan domain.LoanTerms) error
	// BalanceOf reports the current settlement balance of an asset.
	BalanceOf(ctx context.Context, asset common.Address) (*big.Int, error)
	// Swap trades amountIn of tokenIn for tokenOut on the leg's venue and
	// returns the realized output. Minimum-output enforcement belongs to
	// the engine, not the ledger.
	Swap(ctx context.Context, leg domain.PlanLeg, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
	// Repay returns principal plus premium to the loan facility.
	Repay(ctx context.Context, asset common.Address, amount *big.Int) error
	// Revert drops every effect since Advance.
	Revert(ctx context.Context)
}
