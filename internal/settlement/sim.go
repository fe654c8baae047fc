package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// LegQuoter prices one swap leg against live venue state. The venue adapter
// satisfies it.
type LegQuoter interface {
	AmountOut(ctx context.Context, leg domain.PlanLeg, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
}

// SimLedger rehearses a settlement against current venue quotes without
// touching the chain. Balances are virtual and start empty; Revert drops
// them. Not safe for concurrent use, which matches the engine's one-flight
// discipline.
type SimLedger struct {
	quoter   LegQuoter
	balances map[common.Address]*big.Int
	repaid   *big.Int
}

func NewSimLedger(quoter LegQuoter) *SimLedger {
	return &SimLedger{
		quoter:   quoter,
		balances: make(map[common.Address]*big.Int),
		repaid:   new(big.Int),
	}
}

// Repaid reports the total returned to the facility, for inspection after a
// simulated run.
func (l *SimLedger) Repaid() *big.Int { return new(big.Int).Set(l.repaid) }

func (l *SimLedger) Advance(_ context.Context, loan domain.LoanTerms) error {
	if loan.Principal == nil || loan.Principal.Sign() <= 0 {
		return fmt.Errorf("settlement: sim advance of %v", loan.Principal)
	}
	l.credit(loan.Asset, loan.Principal)
	return nil
}

func (l *SimLedger) BalanceOf(_ context.Context, asset common.Address) (*big.Int, error) {
	if bal, ok := l.balances[asset]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (l *SimLedger) Swap(ctx context.Context, leg domain.PlanLeg, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	bal := l.balances[tokenIn]
	if bal == nil || bal.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("settlement: sim swap wants %s of %s, holds %s", amountIn, tokenIn.Hex(), bal)
	}
	out, err := l.quoter.AmountOut(ctx, leg, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	bal.Sub(bal, amountIn)
	l.credit(tokenOut, out)
	return new(big.Int).Set(out), nil
}

func (l *SimLedger) Repay(_ context.Context, asset common.Address, amount *big.Int) error {
	bal := l.balances[asset]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("settlement: sim repay of %s exceeds balance %s", amount, bal)
	}
	bal.Sub(bal, amount)
	l.repaid.Add(l.repaid, amount)
	return nil
}

func (l *SimLedger) Revert(context.Context) {
	l.balances = make(map[common.Address]*big.Int)
	l.repaid = new(big.Int)
}

func (l *SimLedger) credit(asset common.Address, amount *big.Int) {
	if bal, ok := l.balances[asset]; ok {
		bal.Add(bal, amount)
		return
	}
	l.balances[asset] = new(big.Int).Set(amount)
}

var _ Ledger = (*SimLedger)(nil)
