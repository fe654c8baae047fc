package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// OpportunityStore persists detected spreads in PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, pair,
	buy_venue, buy_kind, buy_pool, buy_fee_tier, buy_price,
	sell_venue, sell_kind, sell_pool, sell_fee_tier, sell_price,
	spread_bps, detected_at`

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, pair,
			buy_venue, buy_kind, buy_pool, buy_fee_tier, buy_price,
			sell_venue, sell_kind, sell_pool, sell_fee_tier, sell_price,
			spread_bps, detected_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Pair,
		opp.Buy.Venue, int16(opp.Buy.Kind), opp.Buy.Pool.Hex(), int32(opp.Buy.FeeTier), amountText(opp.Buy.Price),
		opp.Sell.Venue, int16(opp.Sell.Kind), opp.Sell.Pool.Hex(), int32(opp.Sell.FeeTier), amountText(opp.Sell.Price),
		opp.SpreadBps, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// ListBefore returns all opportunities detected strictly before the cutoff,
// oldest first, for archival.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %v: %w", before, err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// DeleteBefore removes opportunities detected strictly before the cutoff and
// reports how many rows went away.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			opp                  domain.Opportunity
			buyKind, sellKind    int16
			buyPool, sellPool    string
			buyFee, sellFee      int32
			buyPrice, sellPrice  string
		)
		if err := rows.Scan(
			&opp.ID, &opp.Pair,
			&opp.Buy.Venue, &buyKind, &buyPool, &buyFee, &buyPrice,
			&opp.Sell.Venue, &sellKind, &sellPool, &sellFee, &sellPrice,
			&opp.SpreadBps, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Buy.Kind = domain.VenueKind(buyKind)
		opp.Buy.Pool = common.HexToAddress(buyPool)
		opp.Buy.FeeTier = uint32(buyFee)
		opp.Buy.Price = amountBig(buyPrice)
		opp.Buy.At = opp.DetectedAt
		opp.Sell.Kind = domain.VenueKind(sellKind)
		opp.Sell.Pool = common.HexToAddress(sellPool)
		opp.Sell.FeeTier = uint32(sellFee)
		opp.Sell.Price = amountBig(sellPrice)
		opp.Sell.At = opp.DetectedAt
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// amountText renders a raw amount for a TEXT column.
func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// amountBig parses a TEXT amount column; rows only ever hold what
// amountText wrote, so a parse failure means a corrupt row.
func amountBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
