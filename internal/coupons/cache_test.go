package coupons

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

type memoryCache struct {
	data   map[string]string
	getErr error
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) CouponKey(code string) string { return "tb:coupon:" + code }

type countingRuleSet struct {
	inner RuleSet
	calls int
}

func (c *countingRuleSet) Resolve(ctx context.Context, code string) (Rule, error) {
	c.calls++
	return c.inner.Resolve(ctx, code)
}

func TestCachedRuleSetReadsThrough(t *testing.T) {
	static, err := NewStaticRuleSet(DefaultRules()...)
	require.NoError(t, err)
	source := &countingRuleSet{inner: static}
	cache := newMemoryCache()
	cached := NewCachedRuleSet(source, cache, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.Resolve(ctx, "welcome10")
	require.NoError(t, err)
	second, err := cached.Resolve(ctx, "WELCOME10")
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first.Code, second.Code)
	assert.True(t, second.Value.Equal(first.Value))
	assert.Equal(t, time.Minute, cache.ttls["tb:coupon:WELCOME10"])

	require.NoError(t, cached.Invalidate(ctx, "welcome10"))
	_, err = cached.Resolve(ctx, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCachedRuleSetDoesNotCacheMisses(t *testing.T) {
	static, err := NewStaticRuleSet()
	require.NoError(t, err)
	cache := newMemoryCache()
	cached := NewCachedRuleSet(static, cache, 0, nil)

	_, err = cached.Resolve(context.Background(), "nope")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCouponNotFound))
	assert.Empty(t, cache.data)
}

func TestCachedRuleSetFallsThroughOnCacheFault(t *testing.T) {
	static, err := NewStaticRuleSet(DefaultRules()...)
	require.NoError(t, err)
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	cached := NewCachedRuleSet(static, cache, time.Minute, nil)

	rule, err := cached.Resolve(context.Background(), "FIXED50")
	require.NoError(t, err)
	assert.Equal(t, "FIXED50", rule.Code)
}

func TestCachedRuleSetDiscardsCorruptEntries(t *testing.T) {
	static, err := NewStaticRuleSet(DefaultRules()...)
	require.NoError(t, err)
	cache := newMemoryCache()
	cache.data["tb:coupon:FIXED50"] = "{not json"
	cached := NewCachedRuleSet(static, cache, time.Minute, nil)

	rule, err := cached.Resolve(context.Background(), "FIXED50")
	require.NoError(t, err)
	assert.True(t, rule.MinimumPurchase.Equal(dec("500")))
}
