package notify

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Event types emitted by the scan and settlement pipeline. The operator's
// notify events config selects which of these reach the channels.
const (
	EventOpportunity         = "opportunity"
	EventSettlementSubmitted = "settlement_submitted"
	EventSettlementSettled   = "settlement_settled"
	EventSettlementFailed    = "settlement_failed"
	EventError               = "error"
)

// OpportunityFound reports a ranked spread between two venues.
func (n *Notifier) OpportunityFound(ctx context.Context, opp domain.Opportunity) error {
	msg := fmt.Sprintf("%s: buy %s @ %s, sell %s @ %s (%d bps)",
		opp.Pair,
		opp.Buy.Venue, opp.Buy.PriceDecimal().StringFixed(6),
		opp.Sell.Venue, opp.Sell.PriceDecimal().StringFixed(6),
		opp.SpreadBps,
	)
	return n.Notify(ctx, EventOpportunity, "Arbitrage opportunity", msg)
}

// SettlementSubmitted reports a flash-loan request in flight.
func (n *Notifier) SettlementSubmitted(ctx context.Context, rec domain.SettlementRecord) error {
	msg := fmt.Sprintf("%s: principal %s, premium %s\ntx %s",
		rec.Pair, bigText(rec.Principal), bigText(rec.Premium), rec.TxHash.Hex())
	return n.Notify(ctx, EventSettlementSubmitted, "Flash loan submitted", msg)
}

// SettlementSettled reports a confirmed completion event.
func (n *Notifier) SettlementSettled(ctx context.Context, rec domain.SettlementRecord) error {
	msg := fmt.Sprintf("%s: profit %s, gas used %d\ntx %s",
		rec.Pair, bigText(rec.Profit), rec.GasUsed, rec.TxHash.Hex())
	return n.Notify(ctx, EventSettlementSettled, "Arbitrage settled", msg)
}

// SettlementFailed reports an aborted or reverted settlement.
func (n *Notifier) SettlementFailed(ctx context.Context, rec domain.SettlementRecord) error {
	msg := fmt.Sprintf("%s: %s", rec.Pair, rec.FailReason)
	if rec.FailedLeg > 0 {
		msg = fmt.Sprintf("%s (leg %d)", msg, rec.FailedLeg)
	}
	if rec.TxHash != (common.Hash{}) {
		msg = fmt.Sprintf("%s\ntx %s", msg, rec.TxHash.Hex())
	}
	return n.Notify(ctx, EventSettlementFailed, "Settlement failed", msg)
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
