package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNoLiquidity           = errors.New("no liquidity")
	ErrUnknownVenue          = errors.New("unknown venue kind")
	ErrSlippage              = errors.New("output below leg minimum")
	ErrInsufficientRepayment = errors.New("balance below principal plus premium")
	ErrSettlementBusy        = errors.New("settlement already in flight")
	ErrRelayRejected         = errors.New("relay rejected bundle")
	ErrLiveTradingDisabled   = errors.New("live trading disabled")
	ErrLockHeld              = errors.New("trade lock held elsewhere")
)
