package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

const defaultCacheTTL = 5 * time.Minute

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CouponKey(code string) string
}

// CachedRuleSet is a read-through Redis cache in front of another RuleSet. Misses
// (unknown codes) are not cached, and cache faults fall through to the source.
type CachedRuleSet struct {
	source RuleSet
	cache  cacheStore
	ttl    time.Duration
	logg   *logger.Logger
}

// NewCachedRuleSet wraps source. A zero ttl uses five minutes.
func NewCachedRuleSet(source RuleSet, cache cacheStore, ttl time.Duration, logg *logger.Logger) *CachedRuleSet {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &CachedRuleSet{source: source, cache: cache, ttl: ttl, logg: logg}
}

func (c *CachedRuleSet) Resolve(ctx context.Context, code string) (Rule, error) {
	key := c.cache.CouponKey(NormalizeCode(code))

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var rule Rule
		if jsonErr := json.Unmarshal([]byte(raw), &rule); jsonErr == nil {
			return rule, nil
		}
		c.logg.Warn(c.logg.WithField(ctx, "key", key), "discarding undecodable cached coupon")
	case !errors.Is(err, redis.Nil):
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "coupon cache read failed")
	}

	rule, err := c.source.Resolve(ctx, code)
	if err != nil {
		return Rule{}, err
	}
	if payload, err := json.Marshal(rule); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "coupon cache write failed")
		}
	}
	return rule, nil
}

// Invalidate drops code from the cache so the next Resolve reloads it.
func (c *CachedRuleSet) Invalidate(ctx context.Context, code string) error {
	return c.cache.Del(ctx, c.cache.CouponKey(NormalizeCode(code)))
}
