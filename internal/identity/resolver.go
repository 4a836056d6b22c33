package identity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/pkg/cache"
	"vedelegate-core/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Identity 是某个 owner 地址的质押身份快照。
// smart account 地址由 tokenId 确定性推导，变化频率很低，适合较长的缓存窗口。
type Identity struct {
	Owner            string `json:"owner"`
	TokenID          string `json:"tokenId"` // 十进制字符串，便于 JSON 往返
	SmartAccount     string `json:"smartAccount"`
	HasPool          bool   `json:"hasPool"`          // 推导出的地址上是否已部署代码
	PassportDelegate string `json:"passportDelegate"` // 已把 passport 委托给 smart account 的地址，空串表示未委托
}

// TokenIDBig 返回 tokenId 的大整数形式
func (id *Identity) TokenIDBig() (*big.Int, error) {
	v, ok := new(big.Int).SetString(id.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token id %q", id.TokenID)
	}
	return v, nil
}

// OwnerDelegatedPassport 返回 owner 是否已把 passport 委托给 smart account
func (id *Identity) OwnerDelegatedPassport() bool {
	return id.PassportDelegate != "" &&
		strings.EqualFold(id.PassportDelegate, id.Owner)
}

// Resolver 通过链上查询推导 Identity，并用注入的 Cache 做多分钟级缓存。
type Resolver struct {
	reader    chain.Reader
	contracts *contracts.Registry
	cache     cache.Cache
	ttl       time.Duration
}

func NewResolver(reader chain.Reader, registry *contracts.Registry, c cache.Cache, ttl time.Duration) *Resolver {
	return &Resolver{
		reader:    reader,
		contracts: registry,
		cache:     c,
		ttl:       ttl,
	}
}

func cacheKey(owner string) string {
	return "identity:" + strings.ToLower(owner)
}

// Resolve 返回 owner 的质押身份，优先走缓存。
func (r *Resolver) Resolve(ctx context.Context, owner string) (*Identity, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address %q", owner)
	}

	if r.cache != nil {
		var cached Identity
		if err := r.cache.Get(ctx, cacheKey(owner), &cached); err == nil {
			return &cached, nil
		}
	}

	id, err := r.resolve(ctx, common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey(owner), id, r.ttl); err != nil {
			logger.Warn("缓存身份信息失败", zap.String("owner", owner), zap.Error(err))
		}
	}
	return id, nil
}

// Invalidate 删除缓存条目，下一次 Resolve 重新查链
func (r *Resolver) Invalidate(ctx context.Context, owner string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, cacheKey(owner))
}

func (r *Resolver) resolve(ctx context.Context, owner common.Address) (*Identity, error) {
	// 1. tokenId
	tokenID, err := r.fetchTokenID(ctx, owner)
	if err != nil {
		return nil, err
	}

	// 2. smart account 地址 (由 tokenId 确定性推导)
	smartAccount, err := r.fetchSmartAccount(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	// 3. 并行: 是否已部署代码 / passport 委托人
	type codeResult struct {
		hasCode bool
		err     error
	}
	type delegateResult struct {
		delegator common.Address
		err       error
	}

	codeCh := make(chan codeResult, 1)
	delegateCh := make(chan delegateResult, 1)

	go func() {
		hasCode, err := r.reader.HasCode(ctx, smartAccount)
		codeCh <- codeResult{hasCode: hasCode, err: err}
	}()
	go func() {
		delegator, err := r.fetchPassportDelegator(ctx, smartAccount)
		delegateCh <- delegateResult{delegator: delegator, err: err}
	}()

	code := <-codeCh
	delegate := <-delegateCh

	if code.err != nil {
		return nil, fmt.Errorf("check pool code: %w", code.err)
	}
	if delegate.err != nil {
		return nil, fmt.Errorf("check passport delegation: %w", delegate.err)
	}

	id := &Identity{
		Owner:        owner.Hex(),
		TokenID:      tokenID.String(),
		SmartAccount: smartAccount.Hex(),
		HasPool:      code.hasCode,
	}
	if delegate.delegator != (common.Address{}) {
		id.PassportDelegate = delegate.delegator.Hex()
	}
	return id, nil
}

// fetchTokenID 查询 owner 的第一个 staking token。
// 没有 token 时调用会 revert，此时用地址本身的数值当 tokenId 兜底。
func (r *Resolver) fetchTokenID(ctx context.Context, owner common.Address) (*big.Int, error) {
	to, data := r.contracts.TokenOfOwnerByIndex(owner, big.NewInt(0))
	result, err := r.reader.Call(ctx, to, data)
	if err != nil {
		return nil, fmt.Errorf("query token id: %w", err)
	}
	if result.Reverted {
		return new(big.Int).SetBytes(owner.Bytes()), nil
	}
	return contracts.UnpackUint256(result.Data)
}

func (r *Resolver) fetchSmartAccount(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	to, data := r.contracts.GetPoolAddress(tokenID)
	result, err := r.reader.Call(ctx, to, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("query pool address: %w", err)
	}
	if result.Reverted {
		return common.Address{}, fmt.Errorf("getPoolAddress reverted: %s", result.VMError)
	}
	return contracts.UnpackAddress(result.Data)
}

func (r *Resolver) fetchPassportDelegator(ctx context.Context, smartAccount common.Address) (common.Address, error) {
	to, data := r.contracts.GetDelegator(smartAccount)
	result, err := r.reader.Call(ctx, to, data)
	if err != nil {
		return common.Address{}, err
	}
	if result.Reverted {
		// 未委托时部分实现会 revert，视作零地址
		return common.Address{}, nil
	}
	return contracts.UnpackAddress(result.Data)
}
