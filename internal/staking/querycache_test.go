package staking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCacheStaleness(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache().WithClock(clock.now)

	cache.Set(KindBalance, testOwner, "v1")

	// 新鲜
	v, stale, ok := cache.Get(KindBalance, testOwner)
	require.True(t, ok)
	assert.Equal(t, "v1", v)
	assert.False(t, stale)

	// 超过 15 秒陈旧但仍可读
	clock.advance(16 * time.Second)
	v, stale, ok = cache.Get(KindBalance, testOwner)
	require.True(t, ok)
	assert.Equal(t, "v1", v)
	assert.True(t, stale)
}

func TestQueryCachePerKindStaleTime(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache().WithClock(clock.now)

	cache.Set(KindBalance, testOwner, "bal")
	cache.Set(KindIdentity, testOwner, "id")

	// 30 秒后余额陈旧，身份 (3 分钟阈值) 还新鲜
	clock.advance(30 * time.Second)
	_, stale, _ := cache.Get(KindBalance, testOwner)
	assert.True(t, stale)
	_, stale, _ = cache.Get(KindIdentity, testOwner)
	assert.False(t, stale)
}

func TestQueryCacheWithStaleTime(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache().WithClock(clock.now).WithStaleTime(KindBalance, time.Minute)

	cache.Set(KindBalance, testOwner, "v1")

	// 默认 15 秒阈值被覆盖为 1 分钟
	clock.advance(30 * time.Second)
	_, stale, _ := cache.Get(KindBalance, testOwner)
	assert.False(t, stale)

	clock.advance(31 * time.Second)
	_, stale, _ = cache.Get(KindBalance, testOwner)
	assert.True(t, stale)

	// 非正数不生效
	cache.WithStaleTime(KindIdentity, 0)
	cache.Set(KindIdentity, testOwner, "id")
	clock.advance(time.Minute)
	_, stale, _ = cache.Get(KindIdentity, testOwner)
	assert.False(t, stale, "零值不应覆盖身份缓存的默认阈值")
}

func TestQueryCacheKeyCaseInsensitive(t *testing.T) {
	cache := NewQueryCache()

	cache.Set(KindBalance, "0xABCDEF1234567890123456789012345678901234", "v")
	_, _, ok := cache.Get(KindBalance, "0xabcdef1234567890123456789012345678901234")
	assert.True(t, ok, "同一地址的大小写变体应该命中同一条目")
}

func TestQueryCacheInvalidateKeepsValue(t *testing.T) {
	cache := NewQueryCache()

	cache.Set(KindBalance, testOwner, "v1")
	cache.Invalidate(KindBalance, testOwner)

	// 失效后值还在，只是标记陈旧
	v, stale, ok := cache.Get(KindBalance, testOwner)
	require.True(t, ok)
	assert.Equal(t, "v1", v)
	assert.True(t, stale)
}

func TestQueryCacheRemove(t *testing.T) {
	cache := NewQueryCache()

	cache.Set(KindBalance, testOwner, "v1")
	cache.Remove(KindBalance, testOwner)

	_, _, ok := cache.Get(KindBalance, testOwner)
	assert.False(t, ok)
}

func TestQueryCacheClearStale(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache().WithClock(clock.now)

	cache.Set(KindBalance, "0x1111111111111111111111111111111111111111", "old")
	clock.advance(31 * time.Minute)
	cache.Set(KindBalance, "0x2222222222222222222222222222222222222222", "new")

	removed := cache.ClearStale(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, _, ok := cache.Get(KindBalance, "0x1111111111111111111111111111111111111111")
	assert.False(t, ok, "过老的条目应该被清掉")
	_, _, ok = cache.Get(KindBalance, "0x2222222222222222222222222222222222222222")
	assert.True(t, ok)
}

func TestQueryCacheStats(t *testing.T) {
	clock := newFakeClock()
	cache := NewQueryCache().WithClock(clock.now)

	cache.Set(KindBalance, "0x1111111111111111111111111111111111111111", "a")
	cache.Set(KindIdentity, "0x1111111111111111111111111111111111111111", "b")
	clock.advance(20 * time.Second)

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Stale, "只有余额条目过了陈旧阈值")
	assert.Equal(t, 1, stats.ByKind["balance"])
	assert.Equal(t, 1, stats.ByKind["identity"])
}
