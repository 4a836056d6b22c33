package staking

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CacheKind 缓存条目类别，决定各自的陈旧判定时间
type CacheKind string

const (
	KindBalance  CacheKind = "balance"
	KindIdentity CacheKind = "identity"
	KindRewards  CacheKind = "rewards"
)

// 各类别的陈旧时间: 陈旧条目仍可读 (stale-while-revalidate)，
// 由调用方决定是否发起后台刷新。
const (
	BalanceStaleTime  = 15 * time.Second
	IdentityStaleTime = 3 * time.Minute
	RewardsStaleTime  = time.Minute

	// DefaultCacheMaxAge 定期清扫时的条目最大存活时间
	DefaultCacheMaxAge = 30 * time.Minute
)

type cacheEntry struct {
	Value     interface{}
	UpdatedAt time.Time
}

// CacheStats 缓存观测快照
type CacheStats struct {
	Total  int            `json:"total"`
	Stale  int            `json:"stale"`
	ByKind map[string]int `json:"byKind"`
	Oldest time.Time      `json:"oldest"`
}

// QueryCache 进程内查询缓存。条目永不因陈旧而自动不可读: 陈旧只是
// 一个标记，过期清理由 ClearStale 显式驱动。
type QueryCache struct {
	mu         sync.Mutex
	store      *gocache.Cache
	staleTimes map[CacheKind]time.Duration
	now        func() time.Time
}

func NewQueryCache() *QueryCache {
	return &QueryCache{
		// go-cache 自身不设过期，生命周期完全由 ClearStale 控制
		store: gocache.New(gocache.NoExpiration, 0),
		staleTimes: map[CacheKind]time.Duration{
			KindBalance:  BalanceStaleTime,
			KindIdentity: IdentityStaleTime,
			KindRewards:  RewardsStaleTime,
		},
		now: time.Now,
	}
}

// WithClock 注入时钟 (测试用)
func (c *QueryCache) WithClock(now func() time.Time) *QueryCache {
	c.now = now
	return c
}

// WithStaleTime 覆盖某一类别的陈旧判定时间，d <= 0 时保持默认
func (c *QueryCache) WithStaleTime(kind CacheKind, d time.Duration) *QueryCache {
	if d > 0 {
		c.staleTimes[kind] = d
	}
	return c
}

func cacheKey(kind CacheKind, address string) string {
	return string(kind) + ":" + strings.ToLower(address)
}

// Get 返回值和陈旧标记。陈旧值照常返回，由调用方决定是否刷新。
func (c *QueryCache) Get(kind CacheKind, address string) (interface{}, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.store.Get(cacheKey(kind, address))
	if !ok {
		return nil, false, false
	}
	entry := raw.(cacheEntry)
	stale := c.now().Sub(entry.UpdatedAt) > c.staleTimes[kind]
	return entry.Value, stale, true
}

// Set 写入新值并刷新时间戳
func (c *QueryCache) Set(kind CacheKind, address string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Set(cacheKey(kind, address), cacheEntry{Value: value, UpdatedAt: c.now()}, gocache.NoExpiration)
}

// Invalidate 把条目标记为陈旧但保留数据，下次读取会带 stale 标记。
// 与 Remove 不同，旧值仍然可用作展示兜底。
func (c *QueryCache) Invalidate(kind CacheKind, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(kind, address)
	raw, ok := c.store.Get(key)
	if !ok {
		return
	}
	entry := raw.(cacheEntry)
	entry.UpdatedAt = time.Time{}
	c.store.Set(key, entry, gocache.NoExpiration)
}

// Remove 彻底删除条目
func (c *QueryCache) Remove(kind CacheKind, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(cacheKey(kind, address))
}

// ClearStale 删除所有超过 maxAge 的条目，返回删除数量。
// maxAge <= 0 时使用 DefaultCacheMaxAge。
func (c *QueryCache) ClearStale(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-maxAge)
	removed := 0
	for key, item := range c.store.Items() {
		entry := item.Object.(cacheEntry)
		if entry.UpdatedAt.Before(cutoff) {
			c.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Stats 汇总当前缓存状态，供 /cache/stats 端点观测
func (c *QueryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{ByKind: make(map[string]int)}
	for key, item := range c.store.Items() {
		entry := item.Object.(cacheEntry)
		stats.Total++

		kind := key
		if idx := strings.Index(key, ":"); idx > 0 {
			kind = key[:idx]
		}
		stats.ByKind[kind]++

		staleTime, ok := c.staleTimes[CacheKind(kind)]
		if ok && c.now().Sub(entry.UpdatedAt) > staleTime {
			stats.Stale++
		}
		if stats.Oldest.IsZero() || entry.UpdatedAt.Before(stats.Oldest) {
			stats.Oldest = entry.UpdatedAt
		}
	}
	return stats
}
