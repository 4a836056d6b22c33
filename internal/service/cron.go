package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vedelegate-core/internal/staking"
	"vedelegate-core/pkg/logger"
	"vedelegate-core/pkg/utils/lock"
)

// CronService 定期清扫查询缓存里的陈年条目。
// 多实例部署时用 Redis 锁保证同一时刻只有一个节点在扫。
type CronService struct {
	cron   *cron.Cron
	redis  *redis.Client
	cache  *staking.QueryCache
	maxAge time.Duration
}

func NewCronService(rdb *redis.Client, cache *staking.QueryCache, maxAge time.Duration) *CronService {
	if maxAge <= 0 {
		maxAge = staking.DefaultCacheMaxAge
	}
	return &CronService{
		cron:   cron.New(),
		redis:  rdb,
		cache:  cache,
		maxAge: maxAge,
	}
}

func (s *CronService) Start() {
	_, _ = s.cron.AddFunc("@every 5m", s.ClearStaleData)

	s.cron.Start()
	logger.Info("Cron Service started")
}

func (s *CronService) Stop() {
	s.cron.Stop()
	logger.Info("Cron Service stopped")
}

// ClearStaleData 清理超过 maxAge 的缓存条目。
// 进程内缓存本可以各扫各的，但扫描会短暂持有缓存锁，
// 错峰执行可以避免多实例同时抖动。
func (s *CronService) ClearStaleData() {
	ctx := context.Background()
	lockKey := "cron:clear_stale_cache"

	if s.redis != nil {
		locker := lock.NewRedisLock(s.redis)
		locked, err := locker.Acquire(ctx, lockKey, 30*time.Second)
		if err != nil || !locked {
			logger.Debug("ClearStaleData: lock held elsewhere, skipping")
			return
		}
		defer locker.Release(ctx, lockKey)
	}

	removed := s.cache.ClearStale(s.maxAge)
	if removed > 0 {
		logger.Info("stale cache entries cleared",
			zap.Int("removed", removed),
			zap.Duration("maxAge", s.maxAge),
		)
	}
}
