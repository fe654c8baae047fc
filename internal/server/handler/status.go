package handler

import (
	"net/http"
	"time"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/scanner"
)

// ScanSource exposes the live state of the scan loop. *scanner.Scanner
// satisfies it.
type ScanSource interface {
	Stats() scanner.Stats
	LastQuotes() map[string][]domain.VenueQuote
}

// StatusHandler serves the bot's runtime status and the latest quotes seen
// per pair.
type StatusHandler struct {
	Mode    string
	scans   ScanSource
	started time.Time
}

// NewStatusHandler creates a StatusHandler for the given mode and scanner.
func NewStatusHandler(mode string, scans ScanSource) *StatusHandler {
	return &StatusHandler{Mode: mode, scans: scans, started: time.Now().UTC()}
}

// GetStatus responds with the mode, uptime, and scan-loop counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"mode":   h.Mode,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.scans != nil {
		body["scan"] = h.scans.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// quoteView flattens a venue quote for the API; prices travel as decimal
// strings so clients never parse 18-decimal fixed-point integers.
type quoteView struct {
	Venue     string `json:"venue"`
	Kind      uint8  `json:"kind"`
	Pool      string `json:"pool"`
	FeeTier   uint32 `json:"fee_tier,omitempty"`
	Price     string `json:"price"`
	Liquidity string `json:"liquidity"`
	At        string `json:"at"`
}

func newQuoteView(q domain.VenueQuote) quoteView {
	liq := "0"
	if q.Liquidity != nil {
		liq = q.Liquidity.String()
	}
	return quoteView{
		Venue:     q.Venue,
		Kind:      uint8(q.Kind),
		Pool:      q.Pool.Hex(),
		FeeTier:   q.FeeTier,
		Price:     q.PriceDecimal().StringFixed(6),
		Liquidity: liq,
		At:        q.At.UTC().Format(time.RFC3339),
	}
}

// GetQuotes responds with the most recent quote set for every scanned pair.
// GET /api/quotes
func (h *StatusHandler) GetQuotes(w http.ResponseWriter, r *http.Request) {
	if h.scans == nil {
		writeError(w, http.StatusNotImplemented, "scanner not running")
		return
	}
	out := map[string][]quoteView{}
	for pair, quotes := range h.scans.LastQuotes() {
		views := make([]quoteView, 0, len(quotes))
		for _, q := range quotes {
			views = append(views, newQuoteView(q))
		}
		out[pair] = views
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": out})
}
