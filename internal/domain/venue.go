package domain

import "fmt"

// VenueKind identifies the pricing model of a swap venue. The settlement
// plan encodes the same numeric codes, so the values are wire format, not
// just enum ordinals.
type VenueKind uint8

const (
	VenueConstantProduct       VenueKind = iota // x*y=k pair pools
	VenueConcentratedLiquidity                  // tick-range pools, per fee tier
	VenueStableSwap                             // stable invariant pools with coin indices
)

// Valid reports whether k is one of the known venue kinds. Construction
// paths reject anything else up front; the settlement dispatcher treats an
// invalid kind as fatal to the whole plan.
func (k VenueKind) Valid() bool {
	switch k {
	case VenueConstantProduct, VenueConcentratedLiquidity, VenueStableSwap:
		return true
	}
	return false
}

func (k VenueKind) String() string {
	switch k {
	case VenueConstantProduct:
		return "constant_product"
	case VenueConcentratedLiquidity:
		return "concentrated_liquidity"
	case VenueStableSwap:
		return "stableswap"
	default:
		return fmt.Sprintf("venue(%d)", uint8(k))
	}
}
