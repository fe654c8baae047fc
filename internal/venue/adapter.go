package venue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Caller is the read-only chain surface the adapter needs.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StablePool pins one stableswap venue for a pair. Stable pools carry their
// own coin ordering and cannot be discovered through a factory lookup the way
// uniswap pools can, so they are configured explicitly.
type StablePool struct {
	Name  string
	Pool  common.Address
	CoinI int64 // index of the base token inside the pool
	CoinJ int64 // index of the quote token
}

// PairSpec is one scannable pair plus its optional pinned stable venues.
type PairSpec struct {
	domain.TokenPair
	Stable []StablePool
}

// Config carries the per-network venue addresses. Everything arrives through
// configuration at construction time; the adapter holds no global state.
type Config struct {
	PairFactory common.Address // constant product factory
	Router      common.Address // constant product router, used for leg quotes
	PoolFactory common.Address // concentrated liquidity factory
	Quoter      common.Address // concentrated liquidity quoter, used for leg quotes
	FeeTiers    []uint32       // ppm fee tiers probed per pair
}

// Adapter reads venue state over JSON-RPC and normalizes every pricing model
// to the shared scaled-integer price form.
type Adapter struct {
	caller Caller
	cfg    Config
	logger *slog.Logger
}

func NewAdapter(caller Caller, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		caller: caller,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "venue")),
	}
}

// Snapshot collects every available quote for the pair: one constant-product
// quote, one concentrated quote per fee tier, one per pinned stable pool.
// Individual venue failures are logged and skipped so a single dead pool
// cannot sink the scan cycle. The result keeps descriptor order regardless
// of which query finishes first.
func (a *Adapter) Snapshot(ctx context.Context, spec PairSpec) []domain.VenueQuote {
	slots := make([]*domain.VenueQuote, 1+len(a.cfg.FeeTiers)+len(spec.Stable))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q, err := a.QuoteConstantProduct(gctx, spec.TokenPair)
		if err != nil {
			a.skip(spec.ID(), "uniswap_v2", err)
			return nil
		}
		slots[0] = &q
		return nil
	})
	for i, tier := range a.cfg.FeeTiers {
		slot := 1 + i
		g.Go(func() error {
			q, err := a.QuoteConcentratedLiquidity(gctx, spec.TokenPair, tier)
			if err != nil {
				a.skip(spec.ID(), fmt.Sprintf("uniswap_v3_%d", tier), err)
				return nil
			}
			slots[slot] = &q
			return nil
		})
	}
	for i, sp := range spec.Stable {
		slot := 1 + len(a.cfg.FeeTiers) + i
		g.Go(func() error {
			q, err := a.QuoteStableSwap(gctx, spec.TokenPair, sp)
			if err != nil {
				a.skip(spec.ID(), sp.Name, err)
				return nil
			}
			slots[slot] = &q
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]domain.VenueQuote, 0, len(slots))
	for _, q := range slots {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

// QuoteConstantProduct prices the pair on the factory's x*y=k pool.
func (a *Adapter) QuoteConstantProduct(ctx context.Context, pair domain.TokenPair) (domain.VenueQuote, error) {
	out, err := a.call(ctx, a.cfg.PairFactory, pairFactoryABI, "getPair", pair.Base.Address, pair.Quote.Address)
	if err != nil {
		return domain.VenueQuote{}, err
	}
	pool := out[0].(common.Address)
	if pool == (common.Address{}) {
		return domain.VenueQuote{}, fmt.Errorf("venue: pair %s has no constant-product pool: %w", pair.ID(), domain.ErrNoLiquidity)
	}

	out, err = a.call(ctx, pool, pairABI, "getReserves")
	if err != nil {
		return domain.VenueQuote{}, err
	}
	reserve0 := out[0].(*big.Int)
	reserve1 := out[1].(*big.Int)

	reserveBase, reserveQuote := reserve0, reserve1
	if flippedPair(pair) {
		reserveBase, reserveQuote = reserve1, reserve0
	}
	price, err := PriceFromReserves(reserveBase, reserveQuote)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("venue: pool %s: %w", pool.Hex(), err)
	}
	return domain.VenueQuote{
		Venue:     "uniswap_v2",
		Kind:      domain.VenueConstantProduct,
		Pool:      pool,
		Price:     price,
		Liquidity: new(big.Int).Add(reserve0, reserve1),
		At:        time.Now().UTC(),
	}, nil
}

// QuoteConcentratedLiquidity prices the pair on the tick-range pool for one
// fee tier. Each tier is an independent venue with its own pool and price.
func (a *Adapter) QuoteConcentratedLiquidity(ctx context.Context, pair domain.TokenPair, feeTier uint32) (domain.VenueQuote, error) {
	name := fmt.Sprintf("uniswap_v3_%d", feeTier)
	out, err := a.call(ctx, a.cfg.PoolFactory, poolFactoryABI, "getPool", pair.Base.Address, pair.Quote.Address, big.NewInt(int64(feeTier)))
	if err != nil {
		return domain.VenueQuote{}, err
	}
	pool := out[0].(common.Address)
	if pool == (common.Address{}) {
		return domain.VenueQuote{}, fmt.Errorf("venue: %s has no pool for %s: %w", name, pair.ID(), domain.ErrNoLiquidity)
	}

	out, err = a.call(ctx, pool, poolABI, "slot0")
	if err != nil {
		return domain.VenueQuote{}, err
	}
	sqrtPriceX96 := out[0].(*big.Int)

	out, err = a.call(ctx, pool, poolABI, "liquidity")
	if err != nil {
		return domain.VenueQuote{}, err
	}
	liquidity := out[0].(*big.Int)
	if liquidity.Sign() == 0 {
		return domain.VenueQuote{}, fmt.Errorf("venue: pool %s has no in-range liquidity: %w", pool.Hex(), domain.ErrNoLiquidity)
	}

	price, err := PriceFromSqrtRatio(sqrtPriceX96, flippedPair(pair))
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("venue: pool %s: %w", pool.Hex(), err)
	}
	return domain.VenueQuote{
		Venue:     name,
		Kind:      domain.VenueConcentratedLiquidity,
		Pool:      pool,
		FeeTier:   feeTier,
		Price:     price,
		Liquidity: liquidity,
		At:        time.Now().UTC(),
	}, nil
}

// QuoteStableSwap prices the pair on a pinned stable pool by asking it for
// the output of one whole base unit.
func (a *Adapter) QuoteStableSwap(ctx context.Context, pair domain.TokenPair, sp StablePool) (domain.VenueQuote, error) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pair.Base.Decimals)), nil)
	out, err := a.call(ctx, sp.Pool, stablePoolABI, "get_dy", big.NewInt(sp.CoinI), big.NewInt(sp.CoinJ), unit)
	if err != nil {
		return domain.VenueQuote{}, err
	}
	dy := out[0].(*big.Int)
	price, err := PriceFromSwapOut(dy, pair.Base.Decimals)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("venue: pool %s: %w", sp.Pool.Hex(), err)
	}
	return domain.VenueQuote{
		Venue:     sp.Name,
		Kind:      domain.VenueStableSwap,
		Pool:      sp.Pool,
		CoinI:     sp.CoinI,
		CoinJ:     sp.CoinJ,
		Price:     price,
		Liquidity: dy,
		At:        time.Now().UTC(),
	}, nil
}

func (a *Adapter) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("venue: pack %s: %w", method, err)
	}
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("venue: call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("venue: unpack %s: %w", method, err)
	}
	return out, nil
}

func (a *Adapter) skip(pairID, venueName string, err error) {
	a.logger.Debug("venue skipped",
		slog.String("pair", pairID),
		slog.String("venue", venueName),
		slog.String("error", err.Error()),
	)
}

// flippedPair reports whether the pair's base token sorts second in the
// pool's canonical token ordering. Both factories sort pool tokens by
// address, so the raw reserve and sqrt-price orientation follows from a
// byte comparison.
func flippedPair(pair domain.TokenPair) bool {
	return bytes.Compare(pair.Base.Address.Bytes(), pair.Quote.Address.Bytes()) > 0
}
