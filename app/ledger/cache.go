package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const balanceTTL = 5 * time.Minute

// BalanceCache is a Redis read-side cache for lumi balances. The balance
// screen polls frequently while a child watches the feed; the cache keeps
// those reads off the profiles table. Entries are invalidated on every
// credit, so a collected lumi shows up immediately.
type BalanceCache struct {
	client *redis.Client
}

func NewBalanceCache(addr string) (*BalanceCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &BalanceCache{client: client}, nil
}

func (c *BalanceCache) Get(ctx context.Context, userID string) (*Balance, bool) {
	data, err := c.client.Get(ctx, balanceKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("Balance cache read failed", "user", userID, "error", err)
		return nil, false
	}

	var balance Balance
	if err := json.Unmarshal(data, &balance); err != nil {
		slog.Warn("Balance cache entry is corrupt, dropping", "user", userID, "error", err)
		c.Invalidate(ctx, userID)
		return nil, false
	}
	return &balance, true
}

func (c *BalanceCache) Set(ctx context.Context, userID string, balance *Balance) {
	data, err := json.Marshal(balance)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(userID), data, balanceTTL).Err(); err != nil {
		slog.Warn("Balance cache write failed", "user", userID, "error", err)
	}
}

func (c *BalanceCache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, balanceKey(userID)).Err(); err != nil {
		slog.Warn("Balance cache invalidation failed", "user", userID, "error", err)
	}
}

func (c *BalanceCache) Close() error {
	return c.client.Close()
}

func balanceKey(userID string) string {
	return "lumifeed:balance:" + userID
}
