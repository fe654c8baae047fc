package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LoanTerms is the flash-loan advance as presented to the settlement engine.
type LoanTerms struct {
	Asset     common.Address
	Principal *big.Int
	Premium   *big.Int
}

// Owed is the total the loan facility reclaims at settlement.
func (t LoanTerms) Owed() *big.Int { return new(big.Int).Add(t.Principal, t.Premium) }

// PremiumFor computes the facility premium on a principal at the given rate
// in basis points, rounding half up the way the facility's own math does.
func PremiumFor(principal *big.Int, bps int64) *big.Int {
	p := new(big.Int).Mul(principal, big.NewInt(bps))
	p.Add(p, big.NewInt(5000))
	return p.Quo(p, big.NewInt(10000))
}

// SettlementStatus tracks a settlement record through its lifecycle.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementSubmitted SettlementStatus = "submitted"
	SettlementSettled   SettlementStatus = "settled"
	SettlementFailed    SettlementStatus = "failed"
)

// SettlementSummary aggregates lifetime settlement counts and realized
// profit in raw units of the borrowed asset.
type SettlementSummary struct {
	Attempts    int64
	Settled     int64
	Failed      int64
	TotalProfit *big.Int
}

// SettlementRecord is the persisted outcome of one settlement attempt,
// from submission through the on-chain completion event.
type SettlementRecord struct {
	ID            string
	OpportunityID string
	Pair          string
	Asset         common.Address
	Principal     *big.Int
	Premium       *big.Int
	Profit        *big.Int
	TxHash        common.Hash
	GasUsed       uint64
	Status        SettlementStatus
	FailReason    string
	FailedLeg     int // 0 when no leg failed
	SubmittedAt   time.Time
	CompletedAt   *time.Time
}
