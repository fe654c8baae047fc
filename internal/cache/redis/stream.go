package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// Stream names exposed for consumers.
const (
	OpportunityStream = "stream:opportunities"
	SettlementStream  = "stream:settlements"
)

// streamMaxLen is the approximate maximum length for Redis streams, enforced
// via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// EventStream publishes scan and settlement events to Redis Streams so
// consumers outside this process get a durable, ordered feed. The trimmed
// tail also feeds the recent-events endpoint.
type EventStream struct {
	rdb *redis.Client
}

// NewEventStream creates an EventStream backed by the given Client.
func NewEventStream(c *Client) *EventStream {
	return &EventStream{rdb: c.rdb}
}

// PublishOpportunity appends a detected opportunity to OpportunityStream.
func (es *EventStream) PublishOpportunity(ctx context.Context, opp domain.Opportunity) error {
	return es.append(ctx, OpportunityStream, opp)
}

// PublishSettlement appends a settlement record to SettlementStream.
func (es *EventStream) PublishSettlement(ctx context.Context, rec domain.SettlementRecord) error {
	return es.append(ctx, SettlementStream, rec)
}

func (es *EventStream) append(ctx context.Context, stream string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal for %s: %w", stream, err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := es.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// Tail returns up to count newest entries of a stream, newest first.
func (es *EventStream) Tail(ctx context.Context, stream string, count int64) ([]domain.StreamMessage, error) {
	msgs, err := es.rdb.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: stream tail %s: %w", stream, err)
	}
	entries := make([]domain.StreamMessage, 0, len(msgs))
	for _, msg := range msgs {
		payload, ok := msg.Values["payload"]
		if !ok {
			continue
		}
		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}
		entries = append(entries, domain.StreamMessage{ID: msg.ID, Payload: data})
	}
	return entries, nil
}
