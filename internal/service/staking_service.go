package service

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vedelegate-core/internal/identity"
	"vedelegate-core/internal/model"
	"vedelegate-core/internal/service/mq"
	"vedelegate-core/internal/staking"
	"vedelegate-core/pkg/config"
	"vedelegate-core/pkg/errno"
	"vedelegate-core/pkg/logger"
)

// tokenDecimals 代币精度，未配置时按默认的 18 位处理
func tokenDecimals() int {
	if d := config.Global.Staking.TokenDecimals; d > 0 {
		return d
	}
	return staking.DefaultDecimals
}

// StakingEventTopic 操作事件发布主题
const StakingEventTopic = "staking:events"

// StakingEvent 发到消息队列的操作事件
type StakingEvent struct {
	Operation string    `json:"operation"`
	Owner     string    `json:"owner"`
	Amount    string    `json:"amount"`
	TxID      string    `json:"txid,omitempty"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StakingService 是对外的业务门面: 在核心操作流程外面加流水落库、
// 事件发布和余额缓存的 stale-while-revalidate 读路径。
// db 和 producer 均可为 nil (CLI 场景)，为 nil 时对应步骤跳过。
type StakingService struct {
	runner   *staking.OperationRunner
	balances *staking.BalanceReader
	identity *identity.Resolver
	cache    *staking.QueryCache
	db       *gorm.DB
	producer mq.Producer
}

func NewStakingService(
	runner *staking.OperationRunner,
	balances *staking.BalanceReader,
	resolver *identity.Resolver,
	cache *staking.QueryCache,
	db *gorm.DB,
	producer mq.Producer,
) *StakingService {
	return &StakingService{
		runner:   runner,
		balances: balances,
		identity: resolver,
		cache:    cache,
		db:       db,
		producer: producer,
	}
}

// BalanceView 余额读取结果，Stale 表示数据来自缓存且已过陈旧阈值
type BalanceView struct {
	Balance *staking.AccountBalance `json:"balance"`
	Stale   bool                    `json:"stale"`
}

// GetBalance 缓存优先的余额读取。
// 命中且新鲜直接返回；陈旧或未命中则拉链上并回填。
// 链上读取失败但有陈旧缓存时，降级返回陈旧值。
func (s *StakingService) GetBalance(ctx context.Context, address string) (*BalanceView, error) {
	if cached, stale, ok := s.cache.Get(staking.KindBalance, address); ok {
		bal, isBal := cached.(*staking.AccountBalance)
		if isBal && !stale {
			return &BalanceView{Balance: bal, Stale: false}, nil
		}
		if isBal {
			fresh, err := s.balances.Read(ctx, address)
			if err != nil {
				// 降级: 陈旧值好过报错
				logger.Warn("live balance read failed, serving stale cache",
					zap.String("address", address), zap.Error(err))
				return &BalanceView{Balance: bal, Stale: true}, nil
			}
			s.cache.Set(staking.KindBalance, address, fresh)
			return &BalanceView{Balance: fresh, Stale: false}, nil
		}
	}

	fresh, err := s.balances.Read(ctx, address)
	if err != nil {
		return nil, err
	}
	s.cache.Set(staking.KindBalance, address, fresh)
	return &BalanceView{Balance: fresh, Stale: false}, nil
}

// RewardsView 可领取奖励的读取结果
type RewardsView struct {
	Raw     string  `json:"raw"` // 最小单位，字符串避免精度损失
	Display float64 `json:"display"`
	Symbol  string  `json:"symbol"`
	Stale   bool    `json:"stale"`
}

func newRewardsView(raw *big.Int, stale bool) (*RewardsView, *errno.Errno) {
	amt, e := staking.NewTokenAmount(raw, tokenDecimals(), "B3TR")
	if e != nil {
		return nil, e
	}
	return &RewardsView{
		Raw:     amt.Raw().String(),
		Display: amt.Display(),
		Symbol:  amt.Symbol(),
		Stale:   stale,
	}, nil
}

// GetRewards 读取地址在奖励池中可领取的奖励，缓存策略与 GetBalance 一致
func (s *StakingService) GetRewards(ctx context.Context, address string) (*RewardsView, error) {
	if cached, stale, ok := s.cache.Get(staking.KindRewards, address); ok {
		raw, isRaw := cached.(*big.Int)
		if isRaw && !stale {
			view, e := newRewardsView(raw, false)
			if e != nil {
				return nil, e
			}
			return view, nil
		}
		if isRaw {
			fresh, err := s.balances.Rewards(ctx, address)
			if err != nil {
				logger.Warn("live rewards read failed, serving stale cache",
					zap.String("address", address), zap.Error(err))
				view, e := newRewardsView(raw, true)
				if e != nil {
					return nil, e
				}
				return view, nil
			}
			s.cache.Set(staking.KindRewards, address, fresh)
			view, e := newRewardsView(fresh, false)
			if e != nil {
				return nil, e
			}
			return view, nil
		}
	}

	fresh, err := s.balances.Rewards(ctx, address)
	if err != nil {
		return nil, err
	}
	s.cache.Set(staking.KindRewards, address, fresh)
	view, e := newRewardsView(fresh, false)
	if e != nil {
		return nil, e
	}
	return view, nil
}

// GetIdentity 解析地址的质押身份 (Resolver 自带缓存)
func (s *StakingService) GetIdentity(ctx context.Context, address string) (*identity.Identity, error) {
	if e := staking.ValidateAddress(address); e != nil {
		return nil, e
	}
	return s.identity.Resolve(ctx, address)
}

// Stake 质押入口: 金额为显示单位字符串
func (s *StakingService) Stake(ctx context.Context, owner, amount string, sign staking.SigningCallback) staking.OperationResult {
	return s.execute(ctx, "stake", owner, amount, "b3tr", func(req staking.OperationRequest) staking.OperationResult {
		req.Sign = sign
		return s.runner.Stake(ctx, req)
	})
}

// Unstake 取回入口。token 选择取回路径 (默认 b3tr)，
// recipient 指定收款地址 (空串默认 owner 自己)。
func (s *StakingService) Unstake(ctx context.Context, owner, amount, token, recipient string, sign staking.SigningCallback) staking.OperationResult {
	if token == "" {
		token = string(staking.WithdrawB3TR)
	}
	return s.execute(ctx, "unstake", owner, amount, token, func(req staking.OperationRequest) staking.OperationResult {
		req.Token = staking.WithdrawToken(token)
		req.Recipient = recipient
		req.Sign = sign
		return s.runner.Unstake(ctx, req)
	})
}

func (s *StakingService) execute(
	ctx context.Context,
	op, owner, amount, token string,
	run func(staking.OperationRequest) staking.OperationResult,
) staking.OperationResult {
	amt, e := staking.ParseTokenAmount(amount, tokenDecimals(), token)
	if e != nil {
		return staking.OperationResult{Err: e}
	}

	journal := s.openJournal(op, owner, amount, token)

	result := run(staking.OperationRequest{Owner: owner, Amount: amt.Raw()})

	s.closeJournal(ctx, journal, owner, result)
	if result.Success {
		s.recordSnapshots(ctx, owner)
	}
	s.publishEvent(ctx, op, owner, amount, result)
	return result
}

// recordSnapshots 确认后给 owner 和 smart account 各落一条余额快照，
// 供离线对账和历史曲线使用。失败只记日志，不影响主流程。
func (s *StakingService) recordSnapshots(ctx context.Context, owner string) {
	if s.db == nil {
		return
	}
	addrs := []string{owner}
	if id, err := s.identity.Resolve(ctx, owner); err == nil && id.SmartAccount != "" {
		addrs = append(addrs, id.SmartAccount)
	}
	for _, addr := range addrs {
		bal, err := s.balances.Read(ctx, addr)
		if err != nil {
			logger.Warn("balance snapshot read failed", zap.String("address", addr), zap.Error(err))
			continue
		}
		if err := s.db.WithContext(ctx).Create(newBalanceSnapshot(addr, bal)).Error; err != nil {
			logger.Error("balance snapshot create failed", zap.String("address", addr), zap.Error(err))
		}
	}
}

// newBalanceSnapshot 把链上快照换算成显示单位的落库行
func newBalanceSnapshot(address string, bal *staking.AccountBalance) *model.BalanceSnapshot {
	shift := -int32(tokenDecimals())
	return &model.BalanceSnapshot{
		Address:       address,
		B3TR:          decimal.NewFromBigInt(bal.B3TR, shift),
		VOT3:          decimal.NewFromBigInt(bal.VOT3, shift),
		ConvertedB3TR: decimal.NewFromBigInt(bal.ConvertedB3TR, shift),
	}
}

// openJournal 落一条 PENDING 流水，db 为空时返回 nil
func (s *StakingService) openJournal(op, owner, amount, token string) *model.StakingOperation {
	if s.db == nil {
		return nil
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		amt = decimal.Zero
	}
	journal := &model.StakingOperation{
		Owner:     owner,
		Operation: op,
		Amount:    amt,
		Token:     token,
		Status:    model.OpStatusPending,
	}
	if err := s.db.Create(journal).Error; err != nil {
		logger.Error("journal create failed", zap.String("owner", owner), zap.Error(err))
		return nil
	}
	return journal
}

// closeJournal 回填流水终态
func (s *StakingService) closeJournal(ctx context.Context, journal *model.StakingOperation, owner string, result staking.OperationResult) {
	if journal == nil || s.db == nil {
		return
	}
	updates := map[string]interface{}{
		"clause_count": result.ClauseCount,
		"fingerprint":  result.Fingerprint,
	}
	if result.Success {
		updates["status"] = model.OpStatusConfirmed
		updates["txid"] = result.TxID
		if result.Meta != nil {
			updates["block_number"] = result.Meta.BlockNumber
		}
		if id, err := s.identity.Resolve(ctx, owner); err == nil {
			updates["smart_account"] = id.SmartAccount
		}
	} else {
		updates["status"] = model.OpStatusFailed
		if result.Err != nil {
			updates["error_code"] = result.Err.Code
		}
	}
	if err := s.db.Model(journal).Updates(updates).Error; err != nil {
		logger.Error("journal update failed", zap.Uint64("id", journal.ID), zap.Error(err))
	}
}

// publishEvent 把操作终态作为事件发布，失败只记日志不影响主流程
func (s *StakingService) publishEvent(ctx context.Context, op, owner, amount string, result staking.OperationResult) {
	if s.producer == nil {
		return
	}
	event := StakingEvent{
		Operation: op,
		Owner:     owner,
		Amount:    amount,
		TxID:      result.TxID,
		Timestamp: time.Now(),
	}
	if result.Success {
		event.Status = model.OpStatusConfirmed
	} else {
		event.Status = model.OpStatusFailed
		if result.Err != nil {
			event.ErrorCode = result.Err.Code
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, StakingEventTopic, owner, payload); err != nil {
		logger.Warn("staking event publish failed", zap.String("owner", owner), zap.Error(err))
	}
}

// CacheStats 暴露查询缓存状态
func (s *StakingService) CacheStats() staking.CacheStats {
	return s.cache.Stats()
}

// History 按地址查询操作流水 (最近优先)
func (s *StakingService) History(ctx context.Context, owner string, limit int) ([]model.StakingOperation, error) {
	if s.db == nil {
		return nil, errno.ErrNotFound.WithMessage("Operation history is not available")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var ops []model.StakingOperation
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id DESC").
		Limit(limit).
		Find(&ops).Error
	return ops, err
}
