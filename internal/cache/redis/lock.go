package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// unlockLua deletes the lock key only if its value matches the caller's
// token, so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// tradeLockKey is shared by every replica pointed at the same Redis.
const tradeLockKey = "lock:settlement"

// TradeLock serializes settlement submission across bot replicas using
// SETNX with a TTL and a Lua-based conditional unlock. Within one process
// the scanner already runs cycles single-flight; this guards against a
// second deployment of the same operator wallet double-spending a nonce.
type TradeLock struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewTradeLock creates a TradeLock backed by the given Client.
func NewTradeLock(c *Client) *TradeLock {
	return &TradeLock{
		rdb:      c.rdb,
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire takes the trade lock for at most ttl. On success it returns an
// unlock function that is safe to call more than once. It returns
// domain.ErrLockHeld when another replica is mid-settlement.
func (l *TradeLock) Acquire(ctx context.Context, ttl time.Duration) (func(), error) {
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, tradeLockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire trade lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// Background context so unlock still runs when the caller's context
		// is already cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{tradeLockKey}, token).Err()
	}
	return unlock, nil
}
