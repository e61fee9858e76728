// Package cache memoizes catalog listings in Redis.
//
// Every listing key embeds the current value of a generation counter. Any
// product mutation bumps the counter, which orphans every listing cached
// under the previous generation at once; orphaned keys expire with their TTL.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

const (
	DefaultPrefix = "storefront:catalog"
	DefaultTTL    = time.Hour
)

type CatalogCache struct {
	rdb     redis.Cmdable
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
}

func NewCatalogCache(rdb redis.Cmdable, ttl time.Duration, m *metrics.Metrics) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CatalogCache{rdb: rdb, ttl: ttl, prefix: DefaultPrefix, metrics: m}
}

func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

func (c *CatalogCache) generationKey() string {
	return GenerateKey(c.prefix, "generation")
}

// Generation returns the current namespace generation. A missing counter is
// seeded from the clock so it cannot restart at a value used before eviction.
func (c *CatalogCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if err == nil {
		return gen, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if err := c.seed(ctx); err != nil {
		return 0, err
	}
	return c.rdb.Get(ctx, c.generationKey()).Int64()
}

// Invalidate bumps the generation, orphaning every cached listing.
func (c *CatalogCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	if err := c.seed(ctx); err != nil {
		return 0, err
	}
	return c.rdb.Incr(ctx, c.generationKey()).Result()
}

func (c *CatalogCache) seed(ctx context.Context) error {
	return c.rdb.SetNX(ctx, c.generationKey(), time.Now().UnixNano(), 0).Err()
}

// ListingKey builds the key of one filter set under a generation.
func (c *CatalogCache) ListingKey(gen int64, filters any) (string, error) {
	fp, err := Fingerprint(filters)
	if err != nil {
		return "", err
	}
	return GenerateKey(c.prefix, "products", "v"+strconv.FormatInt(gen, 10), fp), nil
}

// Fingerprint hashes the canonical JSON encoding of filters.
func Fingerprint(filters any) (string, error) {
	raw, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("fingerprint filters: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}

// GetOrLoad returns the cached listing for filters or computes it with load
// and stores it for the cache TTL. Cache failures degrade to calling load.
// The bool result reports a cache hit. A nil cache always loads.
func GetOrLoad[T any](ctx context.Context, c *CatalogCache, filters any, load func(context.Context) (T, error)) (T, bool, error) {
	if c == nil {
		v, err := load(ctx)
		return v, false, err
	}
	l := logging.FromContext(ctx).With("component", "catalog_cache")

	gen, err := c.Generation(ctx)
	if err != nil {
		c.metrics.ObserveCache("error")
		l.WarnContext(ctx, "cache_generation_error", "error", err)
		v, err := load(ctx)
		return v, false, err
	}

	key, err := c.ListingKey(gen, filters)
	if err != nil {
		var zero T
		return zero, false, err
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			c.metrics.ObserveCache("hit")
			return v, true, nil
		}
		l.WarnContext(ctx, "cache_entry_corrupt", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.metrics.ObserveCache("error")
		l.WarnContext(ctx, "cache_get_error", "key", key, "error", err)
		v, err := load(ctx)
		return v, false, err
	}

	c.metrics.ObserveCache("miss")
	v, err := load(ctx)
	if err != nil {
		return v, false, err
	}

	payload, err := json.Marshal(v)
	if err != nil {
		l.WarnContext(ctx, "cache_encode_error", "key", key, "error", err)
		return v, false, nil
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		l.WarnContext(ctx, "cache_set_error", "key", key, "error", err)
	}
	return v, false, nil
}
