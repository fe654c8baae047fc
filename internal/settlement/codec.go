// Package settlement implements the flash-loan settlement state machine and
// the wire format of the plans it executes.
package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// planArgs is the fixed word layout carried in the loan callback's params.
// Fourteen static ABI words, one field each; legs that do not use a field
// keep it zero and it still occupies its slot, so offsets never move.
var planArgs = abi.Arguments{
	{Name: "venueLeg1", Type: mustType("uint8")},
	{Name: "venueLeg2", Type: mustType("uint8")},
	{Name: "borrowed", Type: mustType("address")},
	{Name: "intermediate", Type: mustType("address")},
	{Name: "feeLeg1", Type: mustType("uint24")},
	{Name: "feeLeg2", Type: mustType("uint24")},
	{Name: "poolLeg1", Type: mustType("address")},
	{Name: "poolLeg2", Type: mustType("address")},
	{Name: "coinInLeg1", Type: mustType("int128")},
	{Name: "coinOutLeg1", Type: mustType("int128")},
	{Name: "coinInLeg2", Type: mustType("int128")},
	{Name: "coinOutLeg2", Type: mustType("int128")},
	{Name: "minOutLeg1", Type: mustType("uint256")},
	{Name: "minOutLeg2", Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic("settlement: bad ABI type " + t + ": " + err.Error())
	}
	return typ
}

// EncodePlan packs a plan into the callback params layout. The borrow amount
// is not part of the layout; it rides in the loan request itself.
func EncodePlan(p domain.SettlementPlan) ([]byte, error) {
	if !p.Leg1.Venue.Valid() || !p.Leg2.Venue.Valid() {
		return nil, fmt.Errorf("settlement: encode plan: %w", domain.ErrUnknownVenue)
	}
	data, err := planArgs.Pack(
		uint8(p.Leg1.Venue),
		uint8(p.Leg2.Venue),
		p.Borrowed,
		p.Intermediate,
		big.NewInt(int64(p.Leg1.FeeTier)),
		big.NewInt(int64(p.Leg2.FeeTier)),
		p.Leg1.Pool,
		p.Leg2.Pool,
		big.NewInt(p.Leg1.CoinI),
		big.NewInt(p.Leg1.CoinJ),
		big.NewInt(p.Leg2.CoinI),
		big.NewInt(p.Leg2.CoinJ),
		orZero(p.Leg1.MinOut),
		orZero(p.Leg2.MinOut),
	)
	if err != nil {
		return nil, fmt.Errorf("settlement: encode plan: %w", err)
	}
	return data, nil
}

// DecodePlan is the exact inverse of EncodePlan. The decoded plan carries no
// borrow amount; the engine takes the principal from the loan terms.
func DecodePlan(data []byte) (domain.SettlementPlan, error) {
	vals, err := planArgs.Unpack(data)
	if err != nil {
		return domain.SettlementPlan{}, fmt.Errorf("settlement: decode plan: %w", err)
	}
	var p domain.SettlementPlan
	p.Leg1.Venue = domain.VenueKind(vals[0].(uint8))
	p.Leg2.Venue = domain.VenueKind(vals[1].(uint8))
	p.Borrowed = vals[2].(common.Address)
	p.Intermediate = vals[3].(common.Address)
	p.Leg1.FeeTier = uint32(vals[4].(*big.Int).Uint64())
	p.Leg2.FeeTier = uint32(vals[5].(*big.Int).Uint64())
	p.Leg1.Pool = vals[6].(common.Address)
	p.Leg2.Pool = vals[7].(common.Address)
	p.Leg1.CoinI = vals[8].(*big.Int).Int64()
	p.Leg1.CoinJ = vals[9].(*big.Int).Int64()
	p.Leg2.CoinI = vals[10].(*big.Int).Int64()
	p.Leg2.CoinJ = vals[11].(*big.Int).Int64()
	p.Leg1.MinOut = vals[12].(*big.Int)
	p.Leg2.MinOut = vals[13].(*big.Int)
	if !p.Leg1.Venue.Valid() || !p.Leg2.Venue.Valid() {
		return domain.SettlementPlan{}, fmt.Errorf("settlement: decode plan: %w", domain.ErrUnknownVenue)
	}
	return p, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
