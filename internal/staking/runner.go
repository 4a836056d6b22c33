package staking

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/identity"
	"vedelegate-core/pkg/crypto_util"
	"vedelegate-core/pkg/errno"
	"vedelegate-core/pkg/logger"
	"vedelegate-core/pkg/monitor"
)

// IdentityResolver 身份解析能力 (由 identity.Resolver 实现)
type IdentityResolver interface {
	Resolve(ctx context.Context, owner string) (*identity.Identity, error)
}

// OperationRequest 一次质押或取回请求
type OperationRequest struct {
	Owner  string
	Amount *big.Int
	// Token 仅取回时有意义，默认 b3tr 路径
	Token WithdrawToken
	// Recipient 取回的收款地址，空串默认 owner 自己
	Recipient string
	// Sign 为空时授权子句退化为 owner 直驱
	Sign SigningCallback
}

// OperationResult 操作结果。Err 为 nil 即成功。
// Fingerprint 是子句序列的 BLAKE3 摘要，用于流水审计。
type OperationResult struct {
	Success     bool          `json:"success"`
	TxID        string        `json:"txid,omitempty"`
	Meta        *chain.TxMeta `json:"meta,omitempty"`
	ClauseCount int           `json:"clauseCount,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Err         *errno.Errno  `json:"error,omitempty"`
}

// OperationRunner 把一次质押/取回意图完整跑到链上确认:
// 校验 -> 安全闸门 -> 编排子句 -> 乐观更新 -> 提交 -> 对账。
// 同一 smart account 的操作串行执行，避免时间戳 nonce 碰撞和
// 乐观更新互相踩踏。
type OperationRunner struct {
	identity  IdentityResolver
	balances  *BalanceReader
	gate      *SecurityGate
	builder   *ClauseBuilder
	reconcile *CacheReconciler
	sender    chain.Sender
	cache     *QueryCache

	// 每个 smart account 一把锁
	accountLocks sync.Map
}

func NewOperationRunner(
	resolver IdentityResolver,
	balances *BalanceReader,
	gate *SecurityGate,
	builder *ClauseBuilder,
	reconcile *CacheReconciler,
	sender chain.Sender,
	cache *QueryCache,
) *OperationRunner {
	return &OperationRunner{
		identity:  resolver,
		balances:  balances,
		gate:      gate,
		builder:   builder,
		reconcile: reconcile,
		sender:    sender,
		cache:     cache,
	}
}

func (r *OperationRunner) lockAccount(smartAccount string) func() {
	v, _ := r.accountLocks.LoadOrStore(smartAccount, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Stake 把 owner 的 B3TR 存入其 smart account 并转换为 VOT3
func (r *OperationRunner) Stake(ctx context.Context, req OperationRequest) OperationResult {
	return r.run(ctx, "stake", req, func(ctx context.Context, id *identity.Identity, bal *AccountBalance) ([]chain.Clause, *errno.Errno) {
		if bal.AvailableB3TR.Cmp(req.Amount) < 0 {
			return nil, errno.ErrInsufficientBalance.WithMessage("Insufficient B3TR balance")
		}
		return r.builder.BuildDepositClauses(ctx, id, req.Amount, nil, req.Sign)
	})
}

// Unstake 把对应数量的 VOT3 从 smart account 取回给 owner (或指定收款地址)
func (r *OperationRunner) Unstake(ctx context.Context, req OperationRequest) OperationResult {
	token := req.Token
	if token == "" {
		token = WithdrawB3TR
	}
	return r.run(ctx, "unstake", req, func(ctx context.Context, id *identity.Identity, bal *AccountBalance) ([]chain.Clause, *errno.Errno) {
		staked, err := r.balances.Read(ctx, id.SmartAccount)
		if err != nil {
			return nil, errno.Parse(err)
		}
		if staked.VOT3.Cmp(req.Amount) < 0 {
			return nil, errno.ErrInsufficientBalance.WithMessage("Insufficient staked balance")
		}
		var recipient common.Address
		if req.Recipient != "" {
			recipient = common.HexToAddress(req.Recipient)
		}
		return r.builder.BuildWithdrawClauses(ctx, id, req.Amount, token, recipient, req.Sign)
	})
}

type clausePlanner func(ctx context.Context, id *identity.Identity, bal *AccountBalance) ([]chain.Clause, *errno.Errno)

func (r *OperationRunner) run(ctx context.Context, op string, req OperationRequest, plan clausePlanner) OperationResult {
	// 1. 金额与地址的前置校验 (不占限流额度)
	if e := ValidateAddress(req.Owner); e != nil {
		return fail(op, e)
	}
	if e := r.gate.ValidateRawAmount(req.Amount); e != nil {
		return fail(op, e)
	}

	// 2. 解析身份
	id, err := r.identity.Resolve(ctx, req.Owner)
	if err != nil {
		return fail(op, errno.Parse(err))
	}

	unlock := r.lockAccount(id.SmartAccount)
	defer unlock()

	// 3. 实时余额 (绕过缓存，充足性检查必须基于链上真值)
	bal, err := r.balances.Read(ctx, req.Owner)
	if err != nil {
		return fail(op, errno.Parse(err))
	}

	// 4. 安全闸门: 限流和可疑行为检查，只读不计数
	if ok, e := r.gate.PerformSecurityCheck(SecurityParams{
		Amount:           req.Amount,
		UserAddress:      req.Owner,
		RecipientAddress: req.Recipient,
	}); !ok {
		if e.Code == errno.ErrRateLimitExceeded.Code && monitor.Business != nil {
			monitor.Business.RateLimitRejectedTotal.Inc()
		}
		return fail(op, e)
	}

	// 5. 编排子句 (含签名授权)，失败不计入限流
	clauses, e := plan(ctx, id, bal)
	if e != nil {
		return fail(op, e)
	}

	fp := clauseFingerprint(clauses)

	// 6. 此刻操作确定派发，开始占限流额度
	r.gate.Limiter().RecordOperation(req.Owner)

	// 7. 乐观更新: 让 UI 立即看到预期结果
	r.reconcile.OptimisticallyUpdateBalance(req.Owner, id.SmartAccount, req.Amount, OperationType(op))

	// 8. 提交并等待上链确认
	start := time.Now()
	meta, err := r.sender.SendClauses(ctx, clauses)
	if monitor.Business != nil {
		monitor.Business.SubmitDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		monitor.Business.ClausesPerTransaction.Observe(float64(len(clauses)))
	}
	if err != nil {
		// 失败回滚: 乐观值作废，下一次读取回链上
		r.reconcile.RevertOptimisticUpdates(ctx, req.Owner, id.SmartAccount)
		if monitor.Business != nil {
			monitor.Business.OptimisticRollbackTotal.Inc()
		}
		logger.Error("staking operation failed",
			zap.String("operation", op),
			zap.String("owner", req.Owner),
			zap.Error(err),
		)
		res := fail(op, errno.Parse(err))
		res.ClauseCount = len(clauses)
		res.Fingerprint = fp
		return res
	}

	// 9. 确认后对账: 全面失效，链上真值接管
	r.reconcile.InvalidateStakingData(ctx, req.Owner, id.SmartAccount)

	if monitor.Business != nil {
		monitor.Business.StakeOperationsTotal.WithLabelValues(op, "success").Inc()
		monitor.Business.StakeAmountTotal.WithLabelValues(op).Add(FromRaw(req.Amount, DefaultDecimals))
	}
	logger.Info("staking operation confirmed",
		zap.String("operation", op),
		zap.String("owner", req.Owner),
		zap.String("txid", meta.TxID),
		zap.Int("clauses", len(clauses)),
	)

	return OperationResult{
		Success:     true,
		TxID:        meta.TxID,
		Meta:        meta,
		ClauseCount: len(clauses),
		Fingerprint: fp,
	}
}

// clauseFingerprint 对子句序列求 BLAKE3 摘要，顺序敏感
func clauseFingerprint(clauses []chain.Clause) string {
	var buf []byte
	for _, c := range clauses {
		if c.To != nil {
			buf = append(buf, c.To.Bytes()...)
		}
		if c.Value != nil {
			buf = append(buf, c.Value.Bytes()...)
		}
		buf = append(buf, c.Data...)
	}
	return crypto_util.CalculateBlake3(buf)
}

func fail(op string, e *errno.Errno) OperationResult {
	if monitor.Business != nil {
		monitor.Business.StakeOperationsTotal.WithLabelValues(op, "failure").Inc()
	}
	return OperationResult{Err: e}
}
