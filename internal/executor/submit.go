package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/settlement"
	"github.com/SMSDAO/aaveflashloan/internal/wallet"
)

// Backend is the node surface the executor needs. *ethclient.Client
// satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// BundleSender submits transactions privately. *relay.Client satisfies it.
type BundleSender interface {
	SendBundle(ctx context.Context, txs []*types.Transaction, targetBlock uint64) (string, error)
}

// Journal observes the submission checkpoint while the receipt wait is still
// ahead; the finished record comes back from Execute. *journal.Recorder
// satisfies it.
type Journal interface {
	SettlementSubmitted(ctx context.Context, rec domain.SettlementRecord)
}

// TradeGuard keeps two replicas of the same operator wallet from submitting
// at once. *redis.TradeLock satisfies it.
type TradeGuard interface {
	Acquire(ctx context.Context, ttl time.Duration) (func(), error)
}

// guardTTL outlives any plausible settlement wait so a crashed holder
// cannot wedge the fleet.
const guardTTL = 2 * time.Minute

// gasSafetyPct pads gas estimates. Swap outputs move between estimation and
// inclusion, and a settlement that runs out of gas mid-callback still burns
// the whole fee.
const gasSafetyPct = 30

// Config pins the executor to one deployed contract and one loan facility.
type Config struct {
	Contract    common.Address
	Lender      common.Address
	ChainID     *big.Int
	Live        bool          // submission is refused while false; planning and preflight still run
	Preflight   bool          // rehearse the settlement before submitting
	WaitTimeout time.Duration // cap on waiting for the receipt; 0 waits on ctx alone
}

// Executor carries one opportunity at a time through planning, preflight,
// submission, and confirmation. The scanner is its only caller and runs
// cycles single-flight, so no internal queueing exists.
type Executor struct {
	cfg     Config
	backend Backend
	wallet  *wallet.Wallet
	planner *Planner
	engine  *settlement.Engine
	quoter  settlement.LegQuoter
	bundles BundleSender // nil submits through the public mempool
	journal Journal      // nil skips the mid-flight checkpoint
	guard   TradeGuard   // nil runs unguarded, fine for a single replica
	logger  *slog.Logger
}

func New(cfg Config, backend Backend, w *wallet.Wallet, planner *Planner, engine *settlement.Engine, quoter settlement.LegQuoter, bundles BundleSender, journal Journal, guard TradeGuard, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		backend: backend,
		wallet:  w,
		planner: planner,
		engine:  engine,
		quoter:  quoter,
		bundles: bundles,
		journal: journal,
		guard:   guard,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Execute runs one settlement attempt end to end and reports it as a record
// whatever happens. Nothing is retried: by the next block the prices that
// made the opportunity are stale, so the scanner finds a fresh one instead.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity, pair domain.TokenPair) (domain.SettlementRecord, error) {
	rec := domain.SettlementRecord{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		Pair:          opp.Pair,
		Status:        domain.SettlementPending,
	}
	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("pair", opp.Pair),
	)

	// 1. Plan and encode.
	plan, loan, err := e.planner.Build(opp, pair)
	if err != nil {
		return fail(rec, 0, err), err
	}
	rec.Asset = loan.Asset
	rec.Principal = loan.Principal
	rec.Premium = loan.Premium

	params, err := settlement.EncodePlan(plan)
	if err != nil {
		return fail(rec, 0, err), err
	}

	// 2. Rehearse the settlement against live venue state.
	if e.cfg.Preflight {
		outcome, simErr := e.engine.Settle(ctx, settlement.NewSimLedger(e.quoter), settlement.Call{
			Caller:    e.cfg.Lender,
			Initiator: e.wallet.Address(),
			Loan:      loan,
			Plan:      plan,
		})
		if simErr != nil {
			err := fmt.Errorf("executor: preflight aborted from %s: %w", outcome.AbortedFrom, simErr)
			return fail(rec, outcome.FailedLeg, err), err
		}
		log.Debug("preflight passed", slog.String("sim_profit", outcome.Profit.String()))
	}

	// A dry run stops here with the plan and rehearsal on record.
	if !e.cfg.Live {
		err := domain.ErrLiveTradingDisabled
		return fail(rec, 0, err), err
	}

	// The guard only covers real submissions: everything above is read-only,
	// and the nonce below must be fetched under the lock.
	if e.guard != nil {
		unlock, err := e.guard.Acquire(ctx, guardTTL)
		if err != nil {
			return rec, fmt.Errorf("executor: trade guard: %w", err)
		}
		defer unlock()
	}

	// 3. Build and sign the loan request.
	calldata, err := contractABI.Pack("requestFlashLoan", loan.Asset, loan.Principal, params)
	if err != nil {
		err = fmt.Errorf("executor: pack loan request: %w", err)
		return fail(rec, 0, err), err
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: e.wallet.Address(),
		To:   &e.cfg.Contract,
		Data: calldata,
	})
	if err != nil {
		err = fmt.Errorf("executor: estimate gas: %w", err)
		return fail(rec, 0, err), err
	}
	gas += gas * gasSafetyPct / 100

	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		err = fmt.Errorf("executor: head: %w", err)
		return fail(rec, 0, err), err
	}
	tip, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		err = fmt.Errorf("executor: gas tip: %w", err)
		return fail(rec, 0, err), err
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	nonce, err := e.backend.PendingNonceAt(ctx, e.wallet.Address())
	if err != nil {
		err = fmt.Errorf("executor: nonce: %w", err)
		return fail(rec, 0, err), err
	}
	signed, err := e.wallet.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   e.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &e.cfg.Contract,
		Data:      calldata,
	}))
	if err != nil {
		return fail(rec, 0, err), err
	}
	rec.TxHash = signed.Hash()
	rec.SubmittedAt = time.Now().UTC()
	rec.Status = domain.SettlementSubmitted
	log.Info("loan requested",
		slog.String("asset", loan.Asset.Hex()),
		slog.String("amount", loan.Principal.String()),
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("gas_limit", gas),
	)

	// 4. Submit, privately when a relay is wired.
	if e.bundles != nil {
		block, err := e.backend.BlockNumber(ctx)
		if err != nil {
			err = fmt.Errorf("executor: block number: %w", err)
			return fail(rec, 0, err), err
		}
		if _, err := e.bundles.SendBundle(ctx, []*types.Transaction{signed}, block+1); err != nil {
			return fail(rec, 0, err), err
		}
	} else if err := e.backend.SendTransaction(ctx, signed); err != nil {
		err = fmt.Errorf("executor: send: %w", err)
		return fail(rec, 0, err), err
	}
	if e.journal != nil {
		e.journal.SettlementSubmitted(ctx, rec)
	}

	// 5. Wait for the receipt and decode the completion event.
	waitCtx := ctx
	if e.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.WaitTimeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, e.backend, signed)
	if err != nil {
		err = fmt.Errorf("executor: wait mined: %w", err)
		return fail(rec, 0, err), err
	}
	rec.GasUsed = receipt.GasUsed
	if receipt.Status != types.ReceiptStatusSuccessful {
		err := fmt.Errorf("executor: settlement reverted in block %s", receipt.BlockNumber)
		return fail(rec, 0, err), err
	}
	now := time.Now().UTC()
	rec.CompletedAt = &now
	rec.Status = domain.SettlementSettled
	if ev, ok := DecodeSettled(e.cfg.Contract, receipt.Logs); ok {
		rec.Profit = ev.Profit
	}
	log.Info("settlement confirmed",
		slog.String("tx", rec.TxHash.Hex()),
		slog.Uint64("gas_used", rec.GasUsed),
		slog.String("profit", bigStr(rec.Profit)),
	)
	return rec, nil
}

func fail(rec domain.SettlementRecord, leg int, err error) domain.SettlementRecord {
	rec.Status = domain.SettlementFailed
	rec.FailReason = err.Error()
	rec.FailedLeg = leg
	now := time.Now().UTC()
	rec.CompletedAt = &now
	return rec
}

func bigStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
