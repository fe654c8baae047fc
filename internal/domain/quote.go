package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceScale is the shared fixed-point scale for venue prices (1e18).
// All ranking and plan math stays on scaled integers; anything floating
// point is presentation only and never feeds back in.
var PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// VenueQuote is one venue's price for a token pair at scan time. A quote is
// built fresh every cycle and never mutated after construction.
type VenueQuote struct {
	Venue     string // e.g. "uniswap_v2", "uniswap_v3_3000", "curve_3pool"
	Kind      VenueKind
	Pool      common.Address
	FeeTier   uint32 // concentrated liquidity fee in ppm; 0 when n/a
	CoinI     int64  // stableswap coin indices; 0 when n/a
	CoinJ     int64
	Price     *big.Int // Quote per Base, scaled by PriceScale
	Liquidity *big.Int // venue-native magnitude, only used to exclude empty pools
	At        time.Time
}

// PriceDecimal renders the scaled price for logs and notifications.
func (q VenueQuote) PriceDecimal() decimal.Decimal {
	if q.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(q.Price, -18)
}
