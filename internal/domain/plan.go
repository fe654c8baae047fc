package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PlanLeg is one swap hop of a settlement plan. Only the fields relevant to
// the leg's venue kind are meaningful; the rest stay zero and still encode.
type PlanLeg struct {
	Venue   VenueKind
	Pool    common.Address
	FeeTier uint32 // concentrated liquidity only
	CoinI   int64  // stableswap only
	CoinJ   int64
	MinOut  *big.Int
}

// SettlementPlan is the full instruction set for one settlement: borrow
// BorrowAmount of Borrowed, swap to Intermediate on Leg1's venue, swap back
// on Leg2's venue, repay principal plus premium, keep the remainder. Built
// once by the planner and treated as immutable afterwards.
type SettlementPlan struct {
	Borrowed     common.Address
	Intermediate common.Address
	BorrowAmount *big.Int
	Leg1         PlanLeg
	Leg2         PlanLeg
}
