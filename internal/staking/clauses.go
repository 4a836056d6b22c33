package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/internal/identity"
	"vedelegate-core/pkg/errno"
)

// PoolStateKind 质押池就绪状态的判别标签
type PoolStateKind string

const (
	// PoolReady 池已存在，无需建池子句
	PoolReady PoolStateKind = "ready"
	// PoolNeedsCreation 池不存在，存款序列需在最前插入 createPool
	PoolNeedsCreation PoolStateKind = "needs_creation"
)

// PoolState 池就绪状态。Kind 为判别字段，TokenID 仅在需要建池时有意义。
type PoolState struct {
	Kind    PoolStateKind
	TokenID *big.Int
}

// WithdrawToken 取回路径选择: 直接转 VOT3，或先转换成 B3TR 再转出
type WithdrawToken string

const (
	WithdrawVOT3 WithdrawToken = "vot3"
	WithdrawB3TR WithdrawToken = "b3tr"
)

// ClauseBuilder 把一次质押/取回意图编排为有序的合约调用子句序列。
// 对智能账户的内部调用一律经过 EIP-712 授权包装；未提供签名回调时
// 退化为 owner 直接驱动的 execute 调用。
type ClauseBuilder struct {
	contracts *contracts.Registry
	auth      *AuthorizationBuilder
}

func NewClauseBuilder(registry *contracts.Registry, auth *AuthorizationBuilder) *ClauseBuilder {
	return &ClauseBuilder{contracts: registry, auth: auth}
}

// PoolStateOf 由已解析身份推导池状态
func PoolStateOf(id *identity.Identity) (PoolState, *errno.Errno) {
	if id.HasPool {
		return PoolState{Kind: PoolReady}, nil
	}
	tokenID, err := id.TokenIDBig()
	if err != nil {
		return PoolState{}, errno.ErrPoolNotFound.WithMessage("Cannot derive pool token id")
	}
	return PoolState{Kind: PoolNeedsCreation, TokenID: tokenID}, nil
}

// BuildDepositClauses 编排完整的入金序列:
//
//  1. createPool (仅当池未部署)
//  2. 把 owner 的 VOT3 和 B3TR 直转进 smart account
//  3. 授权 smart account 执行 approve + convertToVOT3，全部余额转为投票权
//  4. 首次入金时补齐 passport 委托握手
//  5. 把应用投票偏好设为 100%
//
// 子句顺序即链上执行顺序，Thor 保证整笔原子。
func (b *ClauseBuilder) BuildDepositClauses(
	ctx context.Context,
	id *identity.Identity,
	b3trAmount, vot3Amount *big.Int,
	sign SigningCallback,
) ([]chain.Clause, *errno.Errno) {
	if id.SmartAccount == "" {
		return nil, errno.ErrPoolNotFound.WithMessage("Smart account address not resolved")
	}
	smartAccount := common.HexToAddress(id.SmartAccount)
	owner := common.HexToAddress(id.Owner)

	state, e := PoolStateOf(id)
	if e != nil {
		return nil, e
	}

	total := new(big.Int)
	if b3trAmount != nil {
		total.Add(total, b3trAmount)
	}
	if vot3Amount != nil {
		total.Add(total, vot3Amount)
	}
	if total.Sign() <= 0 {
		return nil, errno.ErrInvalidAmount.WithMessage("Deposit amount must be greater than 0")
	}

	var clauses []chain.Clause

	if state.Kind == PoolNeedsCreation {
		clauses = append(clauses, b.contracts.CreatePoolClause(state.TokenID, owner))
	}

	// 先 VOT3 后 B3TR: VOT3 不需要转换，先落账
	if vot3Amount != nil && vot3Amount.Sign() > 0 {
		clauses = append(clauses, b.contracts.VOT3TransferClause(smartAccount, vot3Amount))
	}
	if b3trAmount != nil && b3trAmount.Sign() > 0 {
		clauses = append(clauses, b.contracts.B3TRTransferClause(smartAccount, b3trAmount))
	}

	// smart account 内部: 授权 VOT3 花费 B3TR 并全额转换
	if b3trAmount != nil && b3trAmount.Sign() > 0 {
		approve := b.contracts.B3TRApproveClause(b.contracts.VOT3, b3trAmount)
		convert := b.contracts.ConvertToVOT3Clause(b3trAmount)
		for _, inner := range []chain.Clause{approve, convert} {
			wrapped, e := b.wrapSmartAccountCall(ctx, smartAccount, inner, sign)
			if e != nil {
				return nil, e
			}
			clauses = append(clauses, wrapped)
		}
	}

	// 首次入金: passport 委托给 smart account，并由其接受
	if !id.OwnerDelegatedPassport() {
		clauses = append(clauses, b.contracts.DelegatePassportClause(smartAccount))
		accept := b.contracts.AcceptDelegationClause(owner)
		wrapped, e := b.wrapSmartAccountCall(ctx, smartAccount, accept, sign)
		if e != nil {
			return nil, e
		}
		clauses = append(clauses, wrapped)
	}

	// 每次入金都重申投票偏好，幂等
	prefs := b.contracts.SetVotePreferencesClause()
	wrapped, e := b.wrapSmartAccountCall(ctx, smartAccount, prefs, sign)
	if e != nil {
		return nil, e
	}
	clauses = append(clauses, wrapped)

	return clauses, nil
}

// BuildWithdrawClauses 编排取回序列。
// vot3 路径直接授权转出；b3tr 路径先 convertToB3TR 再转出。
// recipient 为零地址时默认转回 owner 自己。
// passport 委托保持不动，取回不撤销委托。
func (b *ClauseBuilder) BuildWithdrawClauses(
	ctx context.Context,
	id *identity.Identity,
	amount *big.Int,
	token WithdrawToken,
	recipient common.Address,
	sign SigningCallback,
) ([]chain.Clause, *errno.Errno) {
	if id.SmartAccount == "" {
		return nil, errno.ErrPoolNotFound.WithMessage("Smart account address not resolved")
	}
	if !id.HasPool {
		return nil, errno.ErrPoolNotFound.WithMessage("No staking pool to withdraw from")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errno.ErrInvalidAmount.WithMessage("Withdraw amount must be greater than 0")
	}
	smartAccount := common.HexToAddress(id.SmartAccount)
	if recipient == (common.Address{}) {
		recipient = common.HexToAddress(id.Owner)
	}

	var inner []chain.Clause
	switch token {
	case WithdrawVOT3:
		inner = append(inner, b.contracts.VOT3TransferClause(recipient, amount))
	case WithdrawB3TR:
		inner = append(inner,
			b.contracts.ConvertToB3TRClause(amount),
			b.contracts.B3TRTransferClause(recipient, amount),
		)
	default:
		return nil, errno.ErrInvalidInput.WithMessage("Unknown withdraw token")
	}

	clauses := make([]chain.Clause, 0, len(inner))
	for _, c := range inner {
		wrapped, e := b.wrapSmartAccountCall(ctx, smartAccount, c, sign)
		if e != nil {
			return nil, e
		}
		clauses = append(clauses, wrapped)
	}
	return clauses, nil
}

// wrapSmartAccountCall 把内部调用包装为授权执行；
// 无签名回调时走 owner 直驱的 execute 路径。
func (b *ClauseBuilder) wrapSmartAccountCall(
	ctx context.Context,
	smartAccount common.Address,
	inner chain.Clause,
	sign SigningCallback,
) (chain.Clause, *errno.Errno) {
	if inner.To == nil {
		return chain.Clause{}, errno.ErrInvalidInput.WithMessage("Inner call target cannot be empty")
	}
	if sign == nil {
		return b.contracts.ExecuteClause(smartAccount, *inner.To, inner.Value, inner.Data), nil
	}

	auth, e := b.auth.Sign(ctx, smartAccount, inner, sign)
	if e != nil {
		return chain.Clause{}, e
	}
	return b.contracts.ExecuteWithAuthorizationClause(
		smartAccount,
		auth.To, auth.Value, auth.Data,
		auth.ValidAfter, auth.ValidBefore,
		auth.Nonce, auth.Signature,
	), nil
}
