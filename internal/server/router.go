package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vedelegate-core/internal/handler"
	"vedelegate-core/internal/service"
	"vedelegate-core/pkg/monitor"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(svc *service.StakingService) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()
	monitor.InitBusinessMetrics()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		h := handler.NewStakingHandler(svc)
		stakingGroup := api.Group("/staking")
		{
			stakingGroup.GET("/balance/:address", h.GetBalance)
			stakingGroup.GET("/identity/:address", h.GetIdentity)
			stakingGroup.GET("/rewards/:address", h.GetRewards)
			stakingGroup.POST("/stake", h.Stake)
			stakingGroup.POST("/unstake", h.Unstake)
			stakingGroup.GET("/history/:address", h.History)
			stakingGroup.GET("/cache/stats", h.CacheStats)
		}
	}

	return r
}
