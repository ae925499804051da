package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// BalanceCache implements usecase.BalanceCache. Each account has a version
// counter; values are stored under the version they were computed at, so an
// Invalidate (INCR) orphans every earlier value until its TTL expires.
type BalanceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBalanceCache creates a new BalanceCache.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &BalanceCache{
		client: client,
		prefix: "tableledger:balance:",
		ttl:    ttl,
	}
}

func (c *BalanceCache) versionKey(accountID string) string {
	return c.prefix + "ver:" + accountID
}

func (c *BalanceCache) valueKey(accountID string, version int64, asOf time.Time) string {
	return fmt.Sprintf("%sval:%s:%d:%s", c.prefix, accountID, version, asOf.UTC().Format(dateLayout))
}

// Get returns the cached balance of accountID as of asOf. On a miss it still
// reports the current version for a subsequent Set.
func (c *BalanceCache) Get(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, int64, bool, error) {
	version, err := c.version(ctx, accountID)
	if err != nil {
		return decimal.Zero, 0, false, err
	}

	raw, err := c.client.Get(ctx, c.valueKey(accountID, version, asOf)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, version, false, nil
	}
	if err != nil {
		return decimal.Zero, version, false, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, version, false, fmt.Errorf("corrupt cached balance for %s: %w", accountID, err)
	}

	return balance, version, true, nil
}

// Set stores balance under version. A value computed at a version that has
// since been invalidated is written to an unreachable key.
func (c *BalanceCache) Set(ctx context.Context, accountID string, version int64, asOf time.Time, balance decimal.Decimal) error {
	return c.client.Set(ctx, c.valueKey(accountID, version, asOf), balance.String(), c.ttl).Err()
}

// Invalidate bumps the version of every given account.
func (c *BalanceCache) Invalidate(ctx context.Context, accountIDs ...string) error {
	if len(accountIDs) == 0 {
		return nil
	}

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range accountIDs {
			pipe.Incr(ctx, c.versionKey(id))
		}
		return nil
	})

	return err
}

func (c *BalanceCache) version(ctx context.Context, accountID string) (int64, error) {
	raw, err := c.client.Get(ctx, c.versionKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(raw, 10, 64)
}
