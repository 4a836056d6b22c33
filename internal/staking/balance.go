package staking

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/pkg/errno"
)

// AccountBalance 单个地址的代币余额快照。
// Available* 是对用户展示的派生口径: 已转换部分归入 B3TR 侧。
type AccountBalance struct {
	B3TR          *big.Int `json:"b3tr"`
	VOT3          *big.Int `json:"vot3"`
	ConvertedB3TR *big.Int `json:"convertedB3tr"`
	AvailableB3TR *big.Int `json:"availableB3tr"`
	AvailableVOT3 *big.Int `json:"availableVot3"`
}

// ZeroBalance 返回全零快照 (地址为空时的默认值)
func ZeroBalance() *AccountBalance {
	return &AccountBalance{
		B3TR:          new(big.Int),
		VOT3:          new(big.Int),
		ConvertedB3TR: new(big.Int),
		AvailableB3TR: new(big.Int),
		AvailableVOT3: new(big.Int),
	}
}

// Clone 深拷贝，乐观更新在副本上改
func (b *AccountBalance) Clone() *AccountBalance {
	return &AccountBalance{
		B3TR:          new(big.Int).Set(b.B3TR),
		VOT3:          new(big.Int).Set(b.VOT3),
		ConvertedB3TR: new(big.Int).Set(b.ConvertedB3TR),
		AvailableB3TR: new(big.Int).Set(b.AvailableB3TR),
		AvailableVOT3: new(big.Int).Set(b.AvailableVOT3),
	}
}

// BalanceReader 并发拉取一个地址的三路余额并计算派生口径。
// 任何一路失败则整次读取失败，绝不返回部分快照。
type BalanceReader struct {
	reader    chain.Reader
	contracts *contracts.Registry
}

func NewBalanceReader(reader chain.Reader, registry *contracts.Registry) *BalanceReader {
	return &BalanceReader{reader: reader, contracts: registry}
}

// Read 拉取 b3tr / vot3 / convertedB3tr 三路余额。
// 空地址直接返回全零快照，不发起链上调用。
func (r *BalanceReader) Read(ctx context.Context, address string) (*AccountBalance, error) {
	if strings.TrimSpace(address) == "" {
		return ZeroBalance(), nil
	}
	if e := ValidateAddress(address); e != nil {
		return nil, e
	}
	account := common.HexToAddress(address)

	type fetch struct {
		name string
		to   common.Address
		data []byte
		out  **big.Int
	}

	bal := ZeroBalance()
	b3trTo, b3trData := r.contracts.B3TRBalanceOf(account)
	vot3To, vot3Data := r.contracts.VOT3BalanceOf(account)
	convTo, convData := r.contracts.VOT3ConvertedB3trOf(account)

	fetches := []fetch{
		{"b3tr", b3trTo, b3trData, &bal.B3TR},
		{"vot3", vot3To, vot3Data, &bal.VOT3},
		{"convertedB3tr", convTo, convData, &bal.ConvertedB3TR},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(fetches))
	for i, f := range fetches {
		wg.Add(1)
		go func(i int, f fetch) {
			defer wg.Done()
			v, err := r.callUint256(ctx, f.to, f.data)
			if err != nil {
				errs[i] = fmt.Errorf("%s balance: %w", f.name, err)
				return
			}
			*f.out = v
		}(i, f)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, errno.ErrNetwork.WithMessage(fmt.Sprintf("Balance read failed: %v", err))
		}
	}

	// 派生口径: 已转换的 B3TR 仍按 B3TR 对用户展示
	bal.AvailableB3TR = new(big.Int).Add(bal.B3TR, bal.ConvertedB3TR)
	bal.AvailableVOT3 = new(big.Int).Sub(bal.VOT3, bal.ConvertedB3TR)
	if bal.AvailableVOT3.Sign() < 0 {
		bal.AvailableVOT3 = new(big.Int)
	}
	return bal, nil
}

// Rewards 读取地址在奖励池中可领取的奖励 (最小单位)。
// 空地址返回零，不发起链上调用。
func (r *BalanceReader) Rewards(ctx context.Context, address string) (*big.Int, error) {
	if strings.TrimSpace(address) == "" {
		return new(big.Int), nil
	}
	if e := ValidateAddress(address); e != nil {
		return nil, e
	}

	to, data := r.contracts.ClaimableRewards(common.HexToAddress(address))
	v, err := r.callUint256(ctx, to, data)
	if err != nil {
		return nil, errno.ErrNetwork.WithMessage(fmt.Sprintf("Rewards read failed: %v", err))
	}
	return v, nil
}

func (r *BalanceReader) callUint256(ctx context.Context, to common.Address, data []byte) (*big.Int, error) {
	res, err := r.reader.Call(ctx, to, data)
	if err != nil {
		return nil, err
	}
	if res.Reverted {
		return nil, fmt.Errorf("call reverted: %s", res.VMError)
	}
	return contracts.UnpackUint256(res.Data)
}
