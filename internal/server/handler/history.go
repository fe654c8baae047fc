package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// OpportunitySource lists detected opportunities from persistent storage.
// *postgres.OpportunityStore satisfies it.
type OpportunitySource interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// SettlementSource lists settlement attempts and lifetime totals.
// *postgres.SettlementStore satisfies it.
type SettlementSource interface {
	ListRecent(ctx context.Context, limit int) ([]domain.SettlementRecord, error)
	Summarize(ctx context.Context) (domain.SettlementSummary, error)
}

// HistoryHandler serves persisted scan and settlement history. Both sources
// may be nil when Postgres is not configured; the endpoints then return 501.
type HistoryHandler struct {
	opps   OpportunitySource
	setts  SettlementSource
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler over the given stores.
func NewHistoryHandler(opps OpportunitySource, setts SettlementSource, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{opps: opps, setts: setts, logger: logger}
}

type opportunityView struct {
	ID         string    `json:"id"`
	Pair       string    `json:"pair"`
	Buy        quoteView `json:"buy"`
	Sell       quoteView `json:"sell"`
	SpreadBps  int64     `json:"spread_bps"`
	DetectedAt string    `json:"detected_at"`
}

// ListOpportunities returns the most recently detected opportunities.
// GET /api/opportunities/recent?limit=50
func (h *HistoryHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	if h.opps == nil {
		writeError(w, http.StatusNotImplemented, "history storage not configured")
		return
	}
	limit := parseLimit(r, 50, 200)

	opps, err := h.opps.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	views := make([]opportunityView, 0, len(opps))
	for _, opp := range opps {
		views = append(views, opportunityView{
			ID:         opp.ID,
			Pair:       opp.Pair,
			Buy:        newQuoteView(opp.Buy),
			Sell:       newQuoteView(opp.Sell),
			SpreadBps:  opp.SpreadBps,
			DetectedAt: opp.DetectedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": views})
}

type settlementView struct {
	ID            string `json:"id"`
	OpportunityID string `json:"opportunity_id"`
	Pair          string `json:"pair"`
	Asset         string `json:"asset"`
	Principal     string `json:"principal"`
	Premium       string `json:"premium"`
	Profit        string `json:"profit"`
	TxHash        string `json:"tx_hash,omitempty"`
	GasUsed       uint64 `json:"gas_used,omitempty"`
	Status        string `json:"status"`
	FailReason    string `json:"fail_reason,omitempty"`
	FailedLeg     int    `json:"failed_leg,omitempty"`
	SubmittedAt   string `json:"submitted_at,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// ListSettlements returns the most recent settlement attempts.
// GET /api/settlements/recent?limit=50
func (h *HistoryHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	if h.setts == nil {
		writeError(w, http.StatusNotImplemented, "history storage not configured")
		return
	}
	limit := parseLimit(r, 50, 200)

	recs, err := h.setts.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list settlements failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}

	views := make([]settlementView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newSettlementView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": views})
}

// Summarize returns lifetime settlement counts and realized profit.
// GET /api/settlements/summary
func (h *HistoryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	if h.setts == nil {
		writeError(w, http.StatusNotImplemented, "history storage not configured")
		return
	}
	sum, err := h.setts.Summarize(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: settlement summary failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to summarize settlements")
		return
	}
	profit := "0"
	if sum.TotalProfit != nil {
		profit = sum.TotalProfit.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"attempts":     sum.Attempts,
		"settled":      sum.Settled,
		"failed":       sum.Failed,
		"total_profit": profit,
	})
}

func newSettlementView(rec domain.SettlementRecord) settlementView {
	v := settlementView{
		ID:            rec.ID,
		OpportunityID: rec.OpportunityID,
		Pair:          rec.Pair,
		Asset:         rec.Asset.Hex(),
		Principal:     bigText(rec.Principal),
		Premium:       bigText(rec.Premium),
		Profit:        bigText(rec.Profit),
		GasUsed:       rec.GasUsed,
		Status:        string(rec.Status),
		FailReason:    rec.FailReason,
		FailedLeg:     rec.FailedLeg,
	}
	if rec.TxHash != (common.Hash{}) {
		v.TxHash = rec.TxHash.Hex()
	}
	if !rec.SubmittedAt.IsZero() {
		v.SubmittedAt = rec.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if rec.CompletedAt != nil {
		v.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
