package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Registry 保存一套合约地址和应用标识。
// 地址来自配置，部署环境 (主网/测试网) 不同时整套替换。
type Registry struct {
	VeDelegate common.Address // staking 池合约 (NFT + pool 工厂)
	B3TR       common.Address
	VOT3       common.Address
	Passport   common.Address
	DAO        common.Address // 投票权重分配
	RewardPool common.Address

	AppID   common.Hash // 应用在 VeBetterDAO 生态中的唯一标识
	AppName string
}

// NewRegistry 从配置的地址表构建 Registry。
// 要求所有键都存在且是合法地址，缺一个就拒绝启动。
func NewRegistry(addrs map[string]string, appID string, appName string) (*Registry, error) {
	parse := func(key string) (common.Address, error) {
		raw, ok := addrs[key]
		if !ok || raw == "" {
			return common.Address{}, fmt.Errorf("missing contract address %q", key)
		}
		if !common.IsHexAddress(raw) {
			return common.Address{}, fmt.Errorf("invalid contract address %q: %s", key, raw)
		}
		return common.HexToAddress(raw), nil
	}

	r := &Registry{AppName: appName}

	var err error
	if r.VeDelegate, err = parse("vedelegate"); err != nil {
		return nil, err
	}
	if r.B3TR, err = parse("b3tr"); err != nil {
		return nil, err
	}
	if r.VOT3, err = parse("vot3"); err != nil {
		return nil, err
	}
	if r.Passport, err = parse("passport"); err != nil {
		return nil, err
	}
	if r.DAO, err = parse("dao"); err != nil {
		return nil, err
	}
	if r.RewardPool, err = parse("rewardpool"); err != nil {
		return nil, err
	}

	r.AppID = common.HexToHash(appID)
	if r.AppID == (common.Hash{}) {
		return nil, fmt.Errorf("missing app id")
	}

	return r, nil
}
