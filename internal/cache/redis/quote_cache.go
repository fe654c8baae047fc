package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// quoteTTL expires cached quote sets that the scanner stopped refreshing.
// Anything older than a few cycles is only misleading.
const quoteTTL = 5 * time.Minute

// QuoteCache keeps the most recent venue quote set per pair, stored as a
// JSON blob at "quotes:{pair}". It serves the status surface; the scan loop
// itself never reads from it.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.rdb}
}

func quoteKey(pairID string) string {
	return "quotes:" + pairID
}

// SetQuotes replaces the cached quote set for a pair.
func (qc *QuoteCache) SetQuotes(ctx context.Context, pairID string, quotes []domain.VenueQuote) error {
	payload, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("redis: marshal quotes %s: %w", pairID, err)
	}
	if err := qc.rdb.Set(ctx, quoteKey(pairID), payload, quoteTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quotes %s: %w", pairID, err)
	}
	return nil
}

// GetQuotes returns the cached quote set for a pair, or domain.ErrNotFound
// when nothing fresh exists.
func (qc *QuoteCache) GetQuotes(ctx context.Context, pairID string) ([]domain.VenueQuote, error) {
	payload, err := qc.rdb.Get(ctx, quoteKey(pairID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get quotes %s: %w", pairID, err)
	}
	var quotes []domain.VenueQuote
	if err := json.Unmarshal(payload, &quotes); err != nil {
		return nil, fmt.Errorf("redis: unmarshal quotes %s: %w", pairID, err)
	}
	return quotes, nil
}
