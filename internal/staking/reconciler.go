package staking

import (
	"context"
	"math/big"

	"go.uber.org/zap"

	"vedelegate-core/pkg/logger"
)

// IdentityInvalidator 身份缓存失效能力 (由 identity.Resolver 实现)
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, owner string) error
}

// OperationType 缓存调账的操作方向
type OperationType string

const (
	OpStake   OperationType = "stake"
	OpUnstake OperationType = "unstake"
)

// CacheReconciler 负责交易前的乐观缓存更新和交易落定后的对账。
// 乐观更新只改缓存副本，从不假装自己是链上真值: 提交成功后立即
// 失效相关条目，让下一次读取回到链上。
type CacheReconciler struct {
	cache    *QueryCache
	identity IdentityInvalidator
}

func NewCacheReconciler(cache *QueryCache, identity IdentityInvalidator) *CacheReconciler {
	return &CacheReconciler{cache: cache, identity: identity}
}

// OptimisticallyUpdateBalance 在交易提交前预演余额变化:
// 质押时 owner 侧可用 B3TR 减少、smart account 侧 VOT3 增加；
// 取回方向相反。所有减法在 0 处截断，缓存里不出现负余额。
func (r *CacheReconciler) OptimisticallyUpdateBalance(owner, smartAccount string, amount *big.Int, op OperationType) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}

	switch op {
	case OpStake:
		r.adjust(owner, func(b *AccountBalance) {
			clampedSub(b.B3TR, amount)
			clampedSub(b.AvailableB3TR, amount)
		})
		r.adjust(smartAccount, func(b *AccountBalance) {
			b.VOT3.Add(b.VOT3, amount)
			b.AvailableVOT3.Add(b.AvailableVOT3, amount)
		})
	case OpUnstake:
		r.adjust(smartAccount, func(b *AccountBalance) {
			clampedSub(b.VOT3, amount)
			clampedSub(b.AvailableVOT3, amount)
		})
		r.adjust(owner, func(b *AccountBalance) {
			b.B3TR.Add(b.B3TR, amount)
			b.AvailableB3TR.Add(b.AvailableB3TR, amount)
		})
	}
}

// adjust 在缓存余额的深拷贝上应用变更后回写。
// 没有缓存条目就什么都不做，乐观更新不无中生有。
func (r *CacheReconciler) adjust(address string, fn func(*AccountBalance)) {
	raw, _, ok := r.cache.Get(KindBalance, address)
	if !ok {
		return
	}
	bal, ok := raw.(*AccountBalance)
	if !ok {
		return
	}
	next := bal.Clone()
	fn(next)
	r.cache.Set(KindBalance, address, next)
}

func clampedSub(dst, amount *big.Int) {
	dst.Sub(dst, amount)
	if dst.Sign() < 0 {
		dst.SetInt64(0)
	}
}

// RevertOptimisticUpdates 交易失败后的回滚: 不做反向算术 (乐观值可能
// 已被并发读覆盖)，直接把相关条目标记陈旧，强制下一次读取回链上。
func (r *CacheReconciler) RevertOptimisticUpdates(ctx context.Context, owner, smartAccount string) {
	r.cache.Invalidate(KindBalance, owner)
	r.cache.Invalidate(KindBalance, smartAccount)
	logger.Info("optimistic cache updates reverted",
		zap.String("owner", owner),
		zap.String("smartAccount", smartAccount),
	)
}

// InvalidateStakingData 交易确认后的全面失效: 余额、奖励和身份缓存
// 都标记陈旧，保证后续读取反映链上最新状态。
func (r *CacheReconciler) InvalidateStakingData(ctx context.Context, owner, smartAccount string) {
	for _, addr := range []string{owner, smartAccount} {
		r.cache.Invalidate(KindBalance, addr)
		r.cache.Invalidate(KindRewards, addr)
	}
	if r.identity != nil {
		if err := r.identity.Invalidate(ctx, owner); err != nil {
			logger.Warn("identity cache invalidation failed", zap.String("owner", owner), zap.Error(err))
		}
	}
}
