package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// SettlementStore persists settlement attempts in PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

const settlementSelectCols = `id, opportunity_id, pair, asset,
	principal, premium, profit, tx_hash, gas_used,
	status, fail_reason, failed_leg, submitted_at, completed_at`

// Upsert writes a settlement record, replacing any earlier checkpoint of
// the same attempt. The submitted row lands first; the final row with the
// outcome overwrites it.
func (s *SettlementStore) Upsert(ctx context.Context, rec domain.SettlementRecord) error {
	const query = `
		INSERT INTO settlements (
			id, opportunity_id, pair, asset,
			principal, premium, profit, tx_hash, gas_used,
			status, fail_reason, failed_leg, submitted_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
		ON CONFLICT (id) DO UPDATE SET
			profit       = EXCLUDED.profit,
			tx_hash      = EXCLUDED.tx_hash,
			gas_used     = EXCLUDED.gas_used,
			status       = EXCLUDED.status,
			fail_reason  = EXCLUDED.fail_reason,
			failed_leg   = EXCLUDED.failed_leg,
			submitted_at = EXCLUDED.submitted_at,
			completed_at = EXCLUDED.completed_at`

	var submittedAt *time.Time
	if !rec.SubmittedAt.IsZero() {
		submittedAt = &rec.SubmittedAt
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.OpportunityID, rec.Pair, rec.Asset.Hex(),
		amountText(rec.Principal), amountText(rec.Premium), amountText(rec.Profit),
		txHashText(rec.TxHash), int64(rec.GasUsed),
		string(rec.Status), rec.FailReason, rec.FailedLeg, submittedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert settlement %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent settlement attempts, newest first.
func (s *SettlementStore) ListRecent(ctx context.Context, limit int) ([]domain.SettlementRecord, error) {
	query := `SELECT ` + settlementSelectCols + ` FROM settlements ORDER BY submitted_at DESC NULLS LAST`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent settlements: %w", err)
	}
	defer rows.Close()
	return scanSettlements(rows)
}

// ListBefore returns all settlements submitted strictly before the cutoff,
// oldest first, for archival.
func (s *SettlementStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SettlementRecord, error) {
	query := `SELECT ` + settlementSelectCols + ` FROM settlements
		WHERE submitted_at IS NOT NULL AND submitted_at < $1 ORDER BY submitted_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements before %v: %w", before, err)
	}
	defer rows.Close()
	return scanSettlements(rows)
}

// DeleteBefore removes settlements submitted strictly before the cutoff and
// reports how many rows went away.
func (s *SettlementStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM settlements WHERE submitted_at IS NOT NULL AND submitted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settlements before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Summarize computes the lifetime totals for the status endpoint. Profit is
// summed in the database by casting the TEXT column to NUMERIC.
func (s *SettlementStore) Summarize(ctx context.Context) (domain.SettlementSummary, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'settled'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(profit::NUMERIC) FILTER (WHERE status = 'settled'), 0)::TEXT
		FROM settlements`

	var (
		sum    domain.SettlementSummary
		profit string
	)
	if err := s.pool.QueryRow(ctx, query).Scan(&sum.Attempts, &sum.Settled, &sum.Failed, &profit); err != nil {
		return domain.SettlementSummary{}, fmt.Errorf("postgres: summarize settlements: %w", err)
	}
	sum.TotalProfit = amountBig(profit)
	return sum, nil
}

func scanSettlements(rows pgx.Rows) ([]domain.SettlementRecord, error) {
	var recs []domain.SettlementRecord
	for rows.Next() {
		var (
			rec                        domain.SettlementRecord
			asset, txHash, status      string
			principal, premium, profit string
			gasUsed                    int64
			submittedAt                *time.Time
		)
		if err := rows.Scan(
			&rec.ID, &rec.OpportunityID, &rec.Pair, &asset,
			&principal, &premium, &profit, &txHash, &gasUsed,
			&status, &rec.FailReason, &rec.FailedLeg, &submittedAt, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		rec.Asset = common.HexToAddress(asset)
		rec.Principal = amountBig(principal)
		rec.Premium = amountBig(premium)
		rec.Profit = amountBig(profit)
		if txHash != "" {
			rec.TxHash = common.HexToHash(txHash)
		}
		rec.GasUsed = uint64(gasUsed)
		rec.Status = domain.SettlementStatus(status)
		if submittedAt != nil {
			rec.SubmittedAt = *submittedAt
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: settlement rows: %w", err)
	}
	return recs, nil
}

// txHashText renders a tx hash, empty when the attempt never got signed.
func txHashText(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
