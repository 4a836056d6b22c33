package main

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"go.uber.org/zap"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/internal/identity"
	"vedelegate-core/internal/model"
	"vedelegate-core/internal/server"
	"vedelegate-core/internal/service"
	"vedelegate-core/internal/service/mq"
	"vedelegate-core/internal/signer"
	"vedelegate-core/internal/staking"
	"vedelegate-core/pkg/cache"
	"vedelegate-core/pkg/config"
	"vedelegate-core/pkg/database"
	"vedelegate-core/pkg/logger"
	"vedelegate-core/pkg/validator"
)

func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	validator.Init()

	// 2. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 开发环境自动迁移 Schema，生产环境用 cmd/migrate
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 自动迁移 Schema (GORM AutoMigrate)")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("自动迁移失败", zap.Error(err))
		}
	}

	// 5. 链客户端: 服务端签名人来自配置的助记词
	var txSigner chain.HashSigner
	if m := config.Global.Wallet.Mnemonic; m != "" {
		s, err := signer.NewLocalSignerFromMnemonic(m, config.Global.Wallet.Path)
		if err != nil {
			logger.Fatal("签名人初始化失败", zap.Error(err))
		}
		txSigner = s
		logger.Info("transaction signer ready", zap.String("address", s.Address().Hex()))
	} else {
		logger.Warn("未配置助记词，提交交易的接口将不可用")
	}
	thor := chain.NewThorClient(config.Global.Chain.NodeURL, config.Global.Chain.ChainTag, txSigner)

	registry, err := contracts.NewRegistry(
		config.Global.Chain.Contracts,
		config.Global.Chain.AppID,
		config.Global.Chain.AppName,
	)
	if err != nil {
		logger.Fatal("合约地址配置错误", zap.Error(err))
	}

	// 6. 缓存: 身份走 L1 内存 + L2 Redis，余额走进程内查询缓存
	identityTTL := time.Duration(config.Global.Staking.IdentityStaleSeconds) * time.Second
	idCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(identityTTL, 10*time.Minute),
		cache.NewRedisCache(rdb),
	)
	resolver := identity.NewResolver(thor, registry, idCache, identityTTL)
	queryCache := staking.NewQueryCache().
		WithStaleTime(staking.KindBalance, time.Duration(config.Global.Staking.BalanceStaleSeconds)*time.Second).
		WithStaleTime(staking.KindIdentity, identityTTL)

	// 7. 质押核心编排
	minStake, _ := new(big.Int).SetString(config.Global.Staking.MinStakeWei, 10)
	maxStake, _ := new(big.Int).SetString(config.Global.Staking.MaxStakeWei, 10)
	limiter := staking.NewRateLimiter(config.Global.Staking.MaxOperationsPerMin, time.Minute)
	gate := staking.NewSecurityGate(minStake, maxStake, limiter)

	authBuilder := staking.NewAuthorizationBuilder(big.NewInt(config.Global.Chain.ChainID)).
		WithValidWindow(time.Duration(config.Global.Staking.AuthValidWindowMinute) * time.Minute)
	clauseBuilder := staking.NewClauseBuilder(registry, authBuilder)
	balances := staking.NewBalanceReader(thor, registry)
	reconciler := staking.NewCacheReconciler(queryCache, resolver)
	runner := staking.NewOperationRunner(resolver, balances, gate, clauseBuilder, reconciler, thor, queryCache)

	// 8. 消息队列
	var producer mq.Producer
	if config.Global.Redis.MQType == "kafka" {
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers, service.StakingEventTopic)
	} else {
		producer = mq.NewRedisProducer(rdb)
	}

	svc := service.NewStakingService(runner, balances, resolver, queryCache, db, producer)

	// 9. 定时清扫陈旧缓存
	cronSvc := service.NewCronService(rdb, queryCache, time.Duration(config.Global.Staking.CacheMaxAgeMinutes)*time.Minute)
	cronSvc.Start()
	defer cronSvc.Stop()

	// 10. 启动 HTTP 服务
	r := server.NewHTTPRouter(svc)
	addr := ":" + config.Global.App.HttpPort
	logger.Info("staking server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}
