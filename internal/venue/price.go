package venue

import (
	"math/big"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// q192 is 2^192, the divisor that takes a squared 96-bit fixed-point sqrt
// ratio back to a plain ratio.
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceFromReserves derives the scaled quote-per-base price of a constant
// product pool from its raw reserves. Either reserve at zero means the pool
// cannot be priced and yields domain.ErrNoLiquidity.
func PriceFromReserves(reserveBase, reserveQuote *big.Int) (*big.Int, error) {
	if reserveBase == nil || reserveQuote == nil || reserveBase.Sign() <= 0 || reserveQuote.Sign() <= 0 {
		return nil, domain.ErrNoLiquidity
	}
	price := new(big.Int).Mul(reserveQuote, domain.PriceScale)
	price.Quo(price, reserveBase)
	if price.Sign() == 0 {
		return nil, domain.ErrNoLiquidity
	}
	return price, nil
}

// PriceFromSqrtRatio derives the scaled price from a concentrated-liquidity
// pool's sqrtPriceX96. The raw ratio prices token1 in units of token0;
// flipped inverts it for pairs whose base token sorts second.
func PriceFromSqrtRatio(sqrtPriceX96 *big.Int, flipped bool) (*big.Int, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, domain.ErrNoLiquidity
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	var price *big.Int
	if flipped {
		price = new(big.Int).Mul(domain.PriceScale, q192)
		price.Quo(price, sq)
	} else {
		price = new(big.Int).Mul(sq, domain.PriceScale)
		price.Quo(price, q192)
	}
	if price.Sign() == 0 {
		return nil, domain.ErrNoLiquidity
	}
	return price, nil
}

// PriceFromSwapOut derives the scaled price from the output of swapping
// exactly one whole base unit (10^baseDecimals raw units) into the quote
// token, as stableswap pools report via get_dy.
func PriceFromSwapOut(dy *big.Int, baseDecimals uint8) (*big.Int, error) {
	if dy == nil || dy.Sign() <= 0 {
		return nil, domain.ErrNoLiquidity
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(baseDecimals)), nil)
	price := new(big.Int).Mul(dy, domain.PriceScale)
	price.Quo(price, unit)
	if price.Sign() == 0 {
		return nil, domain.ErrNoLiquidity
	}
	return price, nil
}
