package staking

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, owner string) error {
	f.invalidated = append(f.invalidated, owner)
	return nil
}

func seededBalance(b3tr, vot3 int64) *AccountBalance {
	bal := ZeroBalance()
	bal.B3TR.SetInt64(b3tr)
	bal.VOT3.SetInt64(vot3)
	bal.AvailableB3TR.SetInt64(b3tr)
	bal.AvailableVOT3.SetInt64(vot3)
	return bal
}

func getBalance(t *testing.T, cache *QueryCache, addr string) *AccountBalance {
	t.Helper()
	v, _, ok := cache.Get(KindBalance, addr)
	require.True(t, ok)
	return v.(*AccountBalance)
}

func TestOptimisticStake(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	cache.Set(KindBalance, testOwner, seededBalance(1000, 0))
	cache.Set(KindBalance, testSmartAccount, seededBalance(0, 500))

	rec.OptimisticallyUpdateBalance(testOwner, testSmartAccount, big.NewInt(300), OpStake)

	owner := getBalance(t, cache, testOwner)
	assert.Equal(t, int64(700), owner.B3TR.Int64())
	assert.Equal(t, int64(700), owner.AvailableB3TR.Int64())

	smart := getBalance(t, cache, testSmartAccount)
	assert.Equal(t, int64(800), smart.VOT3.Int64())
}

func TestOptimisticUnstake(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	cache.Set(KindBalance, testOwner, seededBalance(100, 0))
	cache.Set(KindBalance, testSmartAccount, seededBalance(0, 500))

	rec.OptimisticallyUpdateBalance(testOwner, testSmartAccount, big.NewInt(200), OpUnstake)

	assert.Equal(t, int64(300), getBalance(t, cache, testSmartAccount).VOT3.Int64())
	assert.Equal(t, int64(300), getBalance(t, cache, testOwner).B3TR.Int64())
}

func TestOptimisticClampsAtZero(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	cache.Set(KindBalance, testOwner, seededBalance(100, 0))
	cache.Set(KindBalance, testSmartAccount, seededBalance(0, 0))

	// 扣减超过缓存值时在 0 截断，缓存里不出现负余额
	rec.OptimisticallyUpdateBalance(testOwner, testSmartAccount, big.NewInt(500), OpStake)

	assert.Equal(t, int64(0), getBalance(t, cache, testOwner).B3TR.Int64())
}

func TestOptimisticNoEntryNoop(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	// 没有缓存条目时不无中生有
	rec.OptimisticallyUpdateBalance(testOwner, testSmartAccount, big.NewInt(100), OpStake)

	_, _, ok := cache.Get(KindBalance, testOwner)
	assert.False(t, ok)
}

func TestOptimisticDoesNotMutateOriginal(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	original := seededBalance(1000, 0)
	cache.Set(KindBalance, testOwner, original)
	cache.Set(KindBalance, testSmartAccount, seededBalance(0, 0))

	rec.OptimisticallyUpdateBalance(testOwner, testSmartAccount, big.NewInt(300), OpStake)

	// 更新发生在深拷贝上，原对象不被改动
	assert.Equal(t, int64(1000), original.B3TR.Int64())
}

func TestRevertOptimisticUpdates(t *testing.T) {
	cache := NewQueryCache()
	rec := NewCacheReconciler(cache, nil)

	cache.Set(KindBalance, testOwner, seededBalance(1000, 0))
	rec.RevertOptimisticUpdates(context.Background(), testOwner, testSmartAccount)

	// 回滚不做反向算术，只标记陈旧
	v, stale, ok := cache.Get(KindBalance, testOwner)
	require.True(t, ok)
	assert.True(t, stale)
	assert.Equal(t, int64(1000), v.(*AccountBalance).B3TR.Int64())
}

func TestInvalidateStakingData(t *testing.T) {
	cache := NewQueryCache()
	inv := &fakeInvalidator{}
	rec := NewCacheReconciler(cache, inv)

	cache.Set(KindBalance, testOwner, seededBalance(1, 1))
	cache.Set(KindRewards, testSmartAccount, "rewards")

	rec.InvalidateStakingData(context.Background(), testOwner, testSmartAccount)

	_, stale, _ := cache.Get(KindBalance, testOwner)
	assert.True(t, stale)
	_, stale, _ = cache.Get(KindRewards, testSmartAccount)
	assert.True(t, stale)
	assert.Equal(t, []string{testOwner}, inv.invalidated)
}
