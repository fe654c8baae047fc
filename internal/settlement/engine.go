package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// State is one step of the settlement lifecycle.
type State uint8

const (
	StateNone State = iota // before the advance is accepted
	StateAdvanced
	StateLeg1Swapped
	StateLeg2Swapped
	StateRepaymentVerified
	StateSettled
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAdvanced:
		return "advanced"
	case StateLeg1Swapped:
		return "leg1_swapped"
	case StateLeg2Swapped:
		return "leg2_swapped"
	case StateRepaymentVerified:
		return "repayment_verified"
	case StateSettled:
		return "settled"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Call is one settlement request as the engine sees it.
type Call struct {
	Caller    common.Address // the loan facility delivering the advance
	Initiator common.Address // whoever asked for the loan
	Loan      domain.LoanTerms
	Plan      domain.SettlementPlan
}

// Outcome reports where a settlement ended and what it left behind.
type Outcome struct {
	State        State    // StateSettled or StateAborted
	AbortedFrom  State    // state the abort interrupted; StateNone when rejected up front
	FailedLeg    int      // 1 or 2 when a swap leg caused the abort
	FinalBalance *big.Int // borrowed-asset balance at verification; nil if never reached
	Profit       *big.Int // balance minus owed; only set when settled
}

// Recorder receives the engine's lifecycle events. Calls must not block.
type Recorder interface {
	SettlementInitiated(asset common.Address, amount *big.Int)
	SettlementCompleted(asset common.Address, principal, profit *big.Int)
}

// Config pins the two identities allowed to drive the engine.
type Config struct {
	Operator common.Address // only accepted initiator
	Lender   common.Address // only accepted caller
}

// Engine drives a settlement through its states. Exactly one settlement may
// be in flight at a time; overlapping calls are rejected, never queued.
// Every failure path reverts the ledger, so a settlement either completes
// with the loan repaid in full or leaves no trace.
type Engine struct {
	cfg    Config
	rec    Recorder
	logger *slog.Logger
	busy   atomic.Bool
}

// New builds an engine. rec may be nil.
func New(cfg Config, rec Recorder, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		rec:    rec,
		logger: logger.With(slog.String("component", "settlement")),
	}
}

// Settle runs one settlement to completion against the given ledger.
// Authorization is checked before any state transition: the initiator must
// be the operator and the caller must be the loan facility.
func (e *Engine) Settle(ctx context.Context, ledger Ledger, call Call) (Outcome, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return Outcome{State: StateAborted}, domain.ErrSettlementBusy
	}
	defer e.busy.Store(false)

	if call.Initiator != e.cfg.Operator {
		return Outcome{State: StateAborted}, fmt.Errorf("settlement: initiator %s: %w", call.Initiator.Hex(), domain.ErrUnauthorized)
	}
	if call.Caller != e.cfg.Lender {
		return Outcome{State: StateAborted}, fmt.Errorf("settlement: caller %s: %w", call.Caller.Hex(), domain.ErrUnauthorized)
	}
	if call.Plan.Borrowed != call.Loan.Asset {
		return Outcome{State: StateAborted}, fmt.Errorf("settlement: plan borrows %s but the advance is %s", call.Plan.Borrowed.Hex(), call.Loan.Asset.Hex())
	}

	if err := ledger.Advance(ctx, call.Loan); err != nil {
		return Outcome{State: StateAborted}, fmt.Errorf("settlement: advance: %w", err)
	}
	state := StateAdvanced
	e.transition(state)
	if e.rec != nil {
		e.rec.SettlementInitiated(call.Loan.Asset, call.Loan.Principal)
	}

	// Leg 1: borrowed -> intermediate.
	if !call.Plan.Leg1.Venue.Valid() {
		return e.abort(ctx, ledger, state, 1, fmt.Errorf("settlement: leg1 venue %d: %w", call.Plan.Leg1.Venue, domain.ErrUnknownVenue))
	}
	out1, err := ledger.Swap(ctx, call.Plan.Leg1, call.Plan.Borrowed, call.Plan.Intermediate, call.Loan.Principal)
	if err != nil {
		return e.abort(ctx, ledger, state, 1, fmt.Errorf("settlement: leg1 swap: %w", err))
	}
	state = StateLeg1Swapped
	e.transition(state)
	if below(out1, call.Plan.Leg1.MinOut) {
		return e.abort(ctx, ledger, state, 1, fmt.Errorf("settlement: leg1 out %s below min %s: %w", out1, call.Plan.Leg1.MinOut, domain.ErrSlippage))
	}

	// Leg 2: intermediate -> borrowed.
	if !call.Plan.Leg2.Venue.Valid() {
		return e.abort(ctx, ledger, state, 2, fmt.Errorf("settlement: leg2 venue %d: %w", call.Plan.Leg2.Venue, domain.ErrUnknownVenue))
	}
	out2, err := ledger.Swap(ctx, call.Plan.Leg2, call.Plan.Intermediate, call.Plan.Borrowed, out1)
	if err != nil {
		return e.abort(ctx, ledger, state, 2, fmt.Errorf("settlement: leg2 swap: %w", err))
	}
	state = StateLeg2Swapped
	e.transition(state)
	if below(out2, call.Plan.Leg2.MinOut) {
		return e.abort(ctx, ledger, state, 2, fmt.Errorf("settlement: leg2 out %s below min %s: %w", out2, call.Plan.Leg2.MinOut, domain.ErrSlippage))
	}

	balance, err := ledger.BalanceOf(ctx, call.Loan.Asset)
	if err != nil {
		return e.abort(ctx, ledger, state, 0, fmt.Errorf("settlement: balance: %w", err))
	}
	owed := call.Loan.Owed()
	if balance.Cmp(owed) < 0 {
		return e.abort(ctx, ledger, state, 0, fmt.Errorf("settlement: balance %s below owed %s: %w", balance, owed, domain.ErrInsufficientRepayment))
	}
	state = StateRepaymentVerified
	e.transition(state)

	if err := ledger.Repay(ctx, call.Loan.Asset, owed); err != nil {
		return e.abort(ctx, ledger, state, 0, fmt.Errorf("settlement: repay: %w", err))
	}
	profit := new(big.Int).Sub(balance, owed)
	state = StateSettled
	e.transition(state)
	if e.rec != nil {
		e.rec.SettlementCompleted(call.Loan.Asset, call.Loan.Principal, profit)
	}
	e.logger.Info("settlement complete",
		slog.String("asset", call.Loan.Asset.Hex()),
		slog.String("principal", call.Loan.Principal.String()),
		slog.String("profit", profit.String()),
	)
	return Outcome{State: StateSettled, FinalBalance: balance, Profit: profit}, nil
}

func (e *Engine) abort(ctx context.Context, ledger Ledger, from State, leg int, err error) (Outcome, error) {
	ledger.Revert(ctx)
	e.logger.Warn("settlement aborted",
		slog.String("from", from.String()),
		slog.Int("leg", leg),
		slog.String("error", err.Error()),
	)
	return Outcome{State: StateAborted, AbortedFrom: from, FailedLeg: leg}, err
}

func (e *Engine) transition(s State) {
	e.logger.Debug("settlement state", slog.String("state", s.String()))
}

func below(amount, min *big.Int) bool {
	return min != nil && amount.Cmp(min) < 0
}
