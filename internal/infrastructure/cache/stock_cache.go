package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "fulfillment:subtree-total:"
	generationPrefix = "fulfillment:subtree-gen:"
)

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DefaultConfig returns local defaults. The TTL bounds how long a total can stay
// stale when an invalidation is lost.
func DefaultConfig() *Config {
	return &Config{
		Addr: "localhost:6379",
		TTL:  5 * time.Minute,
	}
}

// NewClient connects to Redis and pings it
func NewClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolTimeout:  2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// StockCache keeps subtree stock totals in Redis. Every shelf has a
// generation counter next to its total. Invalidate bumps it, and a total is
// only stored if the generation is still the one read before summing, so a
// sum that raced a ledger commit is dropped instead of cached.
type StockCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewStockCache(rdb redis.UniversalClient, ttl time.Duration) *StockCache {
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &StockCache{rdb: rdb, ttl: ttl}
}

// generations outlive any in-flight sum by a wide margin
const generationTTL = 24 * time.Hour

func key(shelfID string) string {
	return keyPrefix + shelfID
}

func generationKey(shelfID string) string {
	return generationPrefix + shelfID
}

// setIfGeneration: KEYS[1] total, KEYS[2] generation; ARGV generation, total, ttl ms
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetSubtreeTotal returns the cached total, if any, and the shelf's current
// generation to hand back to SetSubtreeTotal.
func (c *StockCache) GetSubtreeTotal(ctx context.Context, shelfID string) (int64, bool, int64, error) {
	values, err := c.rdb.MGet(ctx, key(shelfID), generationKey(shelfID)).Result()
	if err != nil {
		return 0, false, 0, fmt.Errorf("failed to read cached total: %w", err)
	}
	generation, _, err := parseInt(values[1])
	if err != nil {
		return 0, false, 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	total, ok, err := parseInt(values[0])
	if err != nil {
		return 0, false, generation, fmt.Errorf("failed to read cached total: %w", err)
	}
	return total, ok, generation, nil
}

func parseInt(v interface{}) (int64, bool, error) {
	if v == nil {
		return 0, false, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, false, fmt.Errorf("unexpected value %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// SetSubtreeTotal stores total unless the shelf was invalidated after
// generation was read. stored reports whether it was written.
func (c *StockCache) SetSubtreeTotal(ctx context.Context, shelfID string, total, generation int64) (bool, error) {
	stored, err := setIfGeneration.Run(ctx, c.rdb,
		[]string{key(shelfID), generationKey(shelfID)},
		strconv.FormatInt(generation, 10), total, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cache total: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the cached totals and bumps the generations in one
// transaction.
func (c *StockCache) Invalidate(ctx context.Context, shelfIDs ...string) error {
	if len(shelfIDs) == 0 {
		return nil
	}
	keys := make([]string, len(shelfIDs))
	for i, id := range shelfIDs {
		keys[i] = key(id)
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range shelfIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate cached totals: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (c *StockCache) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
