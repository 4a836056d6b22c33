package staking

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"vedelegate-core/pkg/crypto_util"
	"vedelegate-core/pkg/errno"
)

// 写操作前的安全闸门相关常量
const (
	// MaxOperationsPerMinute 每个地址 60 秒滑动窗口内允许的操作数
	MaxOperationsPerMinute = 5

	// rateLimitWindow 滑动窗口长度
	rateLimitWindow = time.Minute

	// MaxGasLimit 单笔交易 Gas 上限 (合理性校验)
	MaxGasLimit = 8_000_000
)

var (
	// MinStakeAmount 最小质押金额: 0.001 个代币 (防尘埃攻击)
	MinStakeAmount = mustBig("1000000000000000")

	// MaxStakeAmount 最大质押金额: 100 万个代币 (防溢出)
	MaxStakeAmount = mustBig("1000000000000000000000000")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid big int literal: " + s)
	}
	return v
}

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	zeroAddress    = "0x0000000000000000000000000000000000000000"
)

// RateLimiter 维护每个地址最近操作时间戳的滑动窗口。
// 进程内状态，重启即清零；now 可注入以便测试。
type RateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	operations map[string][]time.Time
	now        func() time.Time
}

// NewRateLimiter 构造一个显式生命周期的限流器。
// 应用启动时建一个实例传给 SecurityGate 和 OperationRunner，测试各建各的。
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = MaxOperationsPerMinute
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		limit:      limit,
		window:     window,
		operations: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// IsAllowed 报告该地址是否还在限额内，顺带清理窗口外的旧记录
func (r *RateLimiter) IsAllowed(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prune(address)) < r.limit
}

// RecordOperation 记录一次已实际发起的操作。
// 只在操作真正派发时调用，校验失败不计数。
func (r *RateLimiter) RecordOperation(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(address)
	r.operations[key] = append(r.operations[key], r.now())
}

// Remaining 返回窗口内剩余的操作次数
func (r *RateLimiter) Remaining(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.limit - len(r.prune(address))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune 去掉窗口外的时间戳并回写，调用方必须持锁
func (r *RateLimiter) prune(address string) []time.Time {
	key := strings.ToLower(address)
	windowStart := r.now().Add(-r.window)

	ops := r.operations[key]
	recent := ops[:0]
	for _, ts := range ops {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}
	if len(recent) == 0 {
		delete(r.operations, key)
		return nil
	}
	r.operations[key] = recent
	return recent
}

// SecurityGate 在任何写操作前做金额、地址和频率校验。
// 除读取限流表外没有副作用；记录操作由调用方显式触发。
type SecurityGate struct {
	minStake *big.Int
	maxStake *big.Int
	limiter  *RateLimiter
}

func NewSecurityGate(minStake, maxStake *big.Int, limiter *RateLimiter) *SecurityGate {
	if minStake == nil {
		minStake = MinStakeAmount
	}
	if maxStake == nil {
		maxStake = MaxStakeAmount
	}
	return &SecurityGate{
		minStake: minStake,
		maxStake: maxStake,
		limiter:  limiter,
	}
}

// Limiter 返回内部限流器 (供 OperationRunner 记录操作)
func (g *SecurityGate) Limiter() *RateLimiter {
	return g.limiter
}

// ValidateRawAmount 校验最小单位金额: >0、不低于尘埃阈值、不超过上限
func (g *SecurityGate) ValidateRawAmount(raw *big.Int) *errno.Errno {
	if raw == nil || raw.Sign() <= 0 {
		return errno.ErrInvalidAmount.WithMessage("Amount must be greater than 0")
	}
	if raw.Cmp(g.minStake) < 0 {
		return errno.ErrInvalidAmount.WithMessage(
			fmt.Sprintf("Minimum staking amount is %s tokens", FormatForDisplay(FromRaw(g.minStake, DefaultDecimals), 3)))
	}
	if raw.Cmp(g.maxStake) > 0 {
		return errno.ErrInvalidAmount.WithMessage(
			fmt.Sprintf("Maximum staking amount is %s tokens", FormatForDisplay(FromRaw(g.maxStake, DefaultDecimals), 0)))
	}
	return nil
}

// ValidateAddress 校验地址形态，拒绝零地址。
// 混合大小写时额外校验 EIP-55 校验和。
func ValidateAddress(address string) *errno.Errno {
	if address == "" {
		return errno.ErrInvalidAddress.WithMessage("Address is required")
	}
	if !addressPattern.MatchString(address) {
		return errno.ErrInvalidAddress.WithMessage("Invalid address format")
	}
	if strings.EqualFold(address, zeroAddress) {
		return errno.ErrInvalidAddress.WithMessage("Cannot use zero address")
	}

	hexPart := address[2:]
	if hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart) {
		if !validChecksum(hexPart) {
			return errno.ErrInvalidAddress.WithMessage("Address checksum mismatch")
		}
	}
	return nil
}

// validChecksum 实现 EIP-55: 依据 keccak256(lower(addr)) 的每个半字节决定大小写
func validChecksum(hexPart string) bool {
	lower := strings.ToLower(hexPart)
	hash := crypto_util.CalculateKeccak256([]byte(lower))

	for i := 0; i < len(lower); i++ {
		c := hexPart[i]
		if c >= '0' && c <= '9' {
			continue
		}
		hashNibble := hash[i]
		upper := hashNibble >= '8'
		if upper && c >= 'a' && c <= 'f' {
			return false
		}
		if !upper && c >= 'A' && c <= 'F' {
			return false
		}
	}
	return true
}

// ClauseParams 交易子句参数的合理性校验输入
type ClauseParams struct {
	To       string
	Value    *big.Int
	Data     string
	GasLimit uint64
}

// ValidateClause 校验子句参数: 地址形态、非负 value、Hex data、Gas 上限
func ValidateClause(params ClauseParams) *errno.Errno {
	if err := ValidateAddress(params.To); err != nil {
		return err
	}
	if params.Value != nil && params.Value.Sign() < 0 {
		return errno.ErrInvalidInput.WithMessage("Value cannot be negative")
	}
	if params.Data != "" && !strings.HasPrefix(params.Data, "0x") {
		return errno.ErrInvalidInput.WithMessage("Data must be hex format")
	}
	if params.GasLimit > MaxGasLimit {
		return errno.ErrInvalidInput.WithMessage(fmt.Sprintf("Gas limit too high (max: %d)", MaxGasLimit))
	}
	return nil
}

// SuspicionCheck 启发式可疑行为判定结果
type SuspicionCheck struct {
	IsSuspicious bool
	Reason       string
}

// DetectSuspiciousActivity 软性风控:
// 金额超过上限的 10%，或窗口内频率超过限额一半，都标记为可疑。
// 这不是余额检查，余额充足性由 OperationRunner 对照实时快照另行校验。
func (g *SecurityGate) DetectSuspiciousActivity(amount *big.Int, frequency int) SuspicionCheck {
	threshold := new(big.Int).Div(g.maxStake, big.NewInt(10))
	if amount != nil && amount.Cmp(threshold) > 0 {
		return SuspicionCheck{IsSuspicious: true, Reason: "Unusually large transaction amount"}
	}
	if frequency > g.limiter.limit/2 {
		return SuspicionCheck{IsSuspicious: true, Reason: "High frequency operations detected"}
	}
	return SuspicionCheck{}
}

// SecurityParams performSecurityCheck 的输入
type SecurityParams struct {
	Amount           *big.Int
	UserAddress      string
	RecipientAddress string // 可选
}

// PerformSecurityCheck 组合所有前置校验。
// 只读，不记录操作；RecordOperation 由调用方在实际派发时调用。
func (g *SecurityGate) PerformSecurityCheck(params SecurityParams) (bool, *errno.Errno) {
	if err := ValidateAddress(params.UserAddress); err != nil {
		return false, err
	}

	if params.RecipientAddress != "" {
		if err := ValidateAddress(params.RecipientAddress); err != nil {
			return false, err
		}
	}

	if err := g.ValidateRawAmount(params.Amount); err != nil {
		return false, err
	}

	if !g.limiter.IsAllowed(params.UserAddress) {
		remaining := g.limiter.Remaining(params.UserAddress)
		return false, errno.ErrRateLimitExceeded.WithMessage(
			fmt.Sprintf("Rate limit exceeded. Try again in a minute. Remaining operations: %d", remaining))
	}

	frequency := g.limiter.limit - g.limiter.Remaining(params.UserAddress)
	if check := g.DetectSuspiciousActivity(params.Amount, frequency); check.IsSuspicious {
		return false, errno.ErrSuspiciousActivity.WithMessage(
			fmt.Sprintf("Suspicious activity detected: %s", check.Reason))
	}

	return true, nil
}
