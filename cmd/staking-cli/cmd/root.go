package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/internal/identity"
	"vedelegate-core/internal/service"
	"vedelegate-core/internal/signer"
	"vedelegate-core/internal/staking"
	"vedelegate-core/pkg/cache"
	"vedelegate-core/pkg/config"
	"vedelegate-core/pkg/logger"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "staking-cli",
	Short: "VeChain 质押命令行工具",
	Long: `一个针对 VeDelegate 质押池的命令行工具。
支持查询余额和身份、发起质押与取回，签名人来自 BIP-39 助记词。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		config.Init()
		logger.Init(config.Global.App.Env)
	})
}

// stack CLI 场景下的精简依赖集: 无数据库、无消息队列
type stack struct {
	svc    *service.StakingService
	signer *signer.LocalSigner
}

// buildStack 按配置组装链客户端和质押服务。
// needSigner 为 true 时必须提供助记词 (WALLET_MNEMONIC)。
func buildStack(needSigner bool) (*stack, error) {
	var local *signer.LocalSigner
	if m := config.Global.Wallet.Mnemonic; m != "" {
		s, err := signer.NewLocalSignerFromMnemonic(m, config.Global.Wallet.Path)
		if err != nil {
			return nil, fmt.Errorf("签名人初始化失败: %w", err)
		}
		local = s
	} else if needSigner {
		return nil, fmt.Errorf("缺少助记词，请设置 WALLET_MNEMONIC 环境变量")
	}

	var hashSigner chain.HashSigner
	if local != nil {
		hashSigner = local
	}
	thor := chain.NewThorClient(config.Global.Chain.NodeURL, config.Global.Chain.ChainTag, hashSigner)

	registry, err := contracts.NewRegistry(
		config.Global.Chain.Contracts,
		config.Global.Chain.AppID,
		config.Global.Chain.AppName,
	)
	if err != nil {
		return nil, fmt.Errorf("合约地址配置错误: %w", err)
	}

	identityTTL := time.Duration(config.Global.Staking.IdentityStaleSeconds) * time.Second
	resolver := identity.NewResolver(thor, registry, cache.NewMemoryCache(identityTTL, 10*time.Minute), identityTTL)
	queryCache := staking.NewQueryCache().
		WithStaleTime(staking.KindBalance, time.Duration(config.Global.Staking.BalanceStaleSeconds)*time.Second).
		WithStaleTime(staking.KindIdentity, identityTTL)

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

	svc := service.NewStakingService(runner, balances, resolver, queryCache, nil, nil)
	return &stack{svc: svc, signer: local}, nil
}

// signingCallback 把本地签名人包装成授权签名回调
func (s *stack) signingCallback() staking.SigningCallback {
	if s.signer == nil {
		return nil
	}
	return s.signer.SignTypedData
}

// ownerAddress 取 --owner 标志，缺省用签名人自己的地址
func (s *stack) ownerAddress(flag string) string {
	if flag != "" {
		return flag
	}
	if s.signer != nil {
		return s.signer.Address().Hex()
	}
	return ""
}

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}
