// Package headstream follows the chain head over a node's websocket endpoint
// and turns each new block into a scan trigger.
package headstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Stream is a minimal eth_subscribe(newHeads) client. It owns one
// subscription for the life of the process and hides reconnects from the
// consumer; the heads channel just goes quiet until the node is back.
type Stream struct {
	url    string
	logger *slog.Logger
	heads  chan uint64
}

func New(url string, logger *slog.Logger) *Stream {
	return &Stream{
		url:    url,
		logger: logger.With(slog.String("component", "headstream")),
		heads:  make(chan uint64, 1),
	}
}

// Heads is the block number feed. It closes when Run returns.
func (s *Stream) Heads() <-chan uint64 { return s.heads }

// Run dials the node and forwards head numbers until the context ends.
// Dropped connections are redialed with exponential backoff, resubscribing
// each time; the backoff resets once a connection delivers a head.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.heads)

	delay := reconnectDelay
	for {
		delivered, err := s.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			delay = reconnectDelay
		}
		s.logger.Warn("head stream dropped",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// stream runs one connection: dial, subscribe, forward heads until the
// connection breaks. Reports whether at least one head came through.
func (s *Stream) stream(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, fmt.Errorf("headstream: dial: %w", err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []string{"newHeads"},
	}); err != nil {
		return false, fmt.Errorf("headstream: subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The ping loop also tears the connection down on cancellation so the
	// blocked read below returns.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-pingDone:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	var delivered bool
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return delivered, fmt.Errorf("headstream: read: %w", err)
		}

		var msg struct {
			ID     int             `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
			Method string `json:"method"`
			Params struct {
				Result struct {
					Number *hexutil.Big `json:"number"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Error != nil {
			return delivered, fmt.Errorf("headstream: rpc error %d: %s", msg.Error.Code, msg.Error.Message)
		}
		if msg.ID == 1 {
			s.logger.Info("subscribed to new heads", slog.String("subscription", string(msg.Result)))
			continue
		}
		if msg.Method != "eth_subscription" || msg.Params.Result.Number == nil {
			continue
		}

		n := msg.Params.Result.Number.ToInt().Uint64()
		delivered = true
		select {
		case s.heads <- n:
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
			// The scanner is mid-cycle; this head is stale by the time it
			// would be read, so drop it.
		}
	}
}
