package domain

import "github.com/ethereum/go-ethereum/common"

// DefaultDecimals is assumed for tokens missing from the registry. Notional
// sizing for such tokens is off by the decimals delta, so scanned tokens
// should always be registered; the fallback only keeps planning total.
const DefaultDecimals = 18

// Token is an ERC-20 asset as configured for the active network.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// TokenPair is an ordered pair. Prices are always quoted as raw units of
// Quote per raw unit of Base, scaled by PriceScale, regardless of venue.
type TokenPair struct {
	Base  Token
	Quote Token
}

// ID is the stable pair identifier used in logs, caches and stores.
func (p TokenPair) ID() string { return p.Base.Symbol + "/" + p.Quote.Symbol }
