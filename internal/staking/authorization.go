package staking

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"vedelegate-core/internal/chain"
	"vedelegate-core/pkg/errno"
)

// 授权执行相关默认值
const (
	authDomainName    = "Wallet"
	authDomainVersion = "1"

	// authValidPast validAfter 回拨量，容忍节点间轻微时钟漂移
	authValidPast = 10 * time.Second

	// authValidWindow 签名有效窗口
	authValidWindow = time.Hour
)

// Authorization 一条经所有者签名、可由任何人代为提交的执行授权
type Authorization struct {
	To          common.Address
	Value       *big.Int
	Data        []byte
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       *big.Int
	Signature   []byte
}

// SigningCallback 对 EIP-712 TypedData 签名并返回 65 字节签名。
// 生产环境由钱包实现，测试注入假签名器。
type SigningCallback func(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)

// AuthorizationBuilder 为智能账户构造 executeWithAuthorization 所需的
// EIP-712 TypedData。now 和 nonce 可注入以便测试产出确定性结果。
type AuthorizationBuilder struct {
	chainID     *big.Int
	validPast   time.Duration
	validWindow time.Duration
	now         func() time.Time
	nonce       func() *big.Int
}

func NewAuthorizationBuilder(chainID *big.Int) *AuthorizationBuilder {
	b := &AuthorizationBuilder{
		chainID:     chainID,
		validPast:   authValidPast,
		validWindow: authValidWindow,
		now:         time.Now,
	}
	// 时间戳做 nonce: 窗口内唯一即可，合约侧只查重不校验递增。
	// 毫秒级时间戳在单账户串行化 (OperationRunner 持锁) 下不会碰撞。
	b.nonce = func() *big.Int {
		return big.NewInt(b.now().UnixMilli())
	}
	return b
}

// WithClock 注入时钟 (测试用)
func (b *AuthorizationBuilder) WithClock(now func() time.Time) *AuthorizationBuilder {
	b.now = now
	return b
}

// WithValidWindow 覆盖签名有效窗口，d <= 0 时保持默认
func (b *AuthorizationBuilder) WithValidWindow(d time.Duration) *AuthorizationBuilder {
	if d > 0 {
		b.validWindow = d
	}
	return b
}

// WithNonce 注入 nonce 生成器 (测试用)
func (b *AuthorizationBuilder) WithNonce(nonce func() *big.Int) *AuthorizationBuilder {
	b.nonce = nonce
	return b
}

// BuildTypedData 针对给定智能账户和目标子句生成待签 TypedData，
// 以及与之对应的授权参数 (签名字段留空)。
func (b *AuthorizationBuilder) BuildTypedData(smartAccount common.Address, cl chain.Clause) (apitypes.TypedData, Authorization, *errno.Errno) {
	if cl.To == nil {
		return apitypes.TypedData{}, Authorization{}, errno.ErrInvalidInput.WithMessage("Authorization target cannot be empty")
	}

	value := cl.Value
	if value == nil {
		value = big.NewInt(0)
	}

	now := b.now()
	auth := Authorization{
		To:          *cl.To,
		Value:       value,
		Data:        cl.Data,
		ValidAfter:  big.NewInt(now.Add(-b.validPast).Unix()),
		ValidBefore: big.NewInt(now.Add(b.validWindow).Unix()),
		Nonce:       b.nonce(),
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"ExecuteWithAuthorization": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "ExecuteWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              authDomainName,
			Version:           authDomainVersion,
			ChainId:           (*math.HexOrDecimal256)(b.chainID),
			VerifyingContract: smartAccount.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"data":        hexutil.Encode(auth.Data),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       (*math.HexOrDecimal256)(auth.Nonce),
		},
	}

	return typedData, auth, nil
}

// Sign 用回调为目标子句签出完整授权
func (b *AuthorizationBuilder) Sign(ctx context.Context, smartAccount common.Address, cl chain.Clause, sign SigningCallback) (Authorization, *errno.Errno) {
	typedData, auth, e := b.BuildTypedData(smartAccount, cl)
	if e != nil {
		return Authorization{}, e
	}

	sig, err := sign(ctx, typedData)
	if err != nil {
		return Authorization{}, errno.ErrSignatureRejected.WithMessage(fmt.Sprintf("Signature failed: %v", err))
	}
	if len(sig) != 65 {
		return Authorization{}, errno.ErrSignatureRejected.WithMessage(fmt.Sprintf("Unexpected signature length: %d", len(sig)))
	}
	auth.Signature = sig
	return auth, nil
}
