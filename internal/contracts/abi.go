package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"vedelegate-core/internal/chain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// 每个合约只声明实际用到的方法，其余一概不引入。
var (
	erc20ABI = mustParse(`[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`)

	vot3ABI = mustParse(`[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
		{"name":"convertedB3trOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"convertToVOT3","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
		{"name":"convertToB3TR","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
	]`)

	veDelegateABI = mustParse(`[
		{"name":"tokenOfOwnerByIndex","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"tokenIndex","type":"uint256"}],"outputs":[{"name":"tokenId","type":"uint256"}]},
		{"name":"getPoolAddress","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"tbaAddress","type":"address"}]},
		{"name":"createPool","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"},{"name":"to","type":"address"},{"name":"tokenURI","type":"string"}],"outputs":[]}
	]`)

	passportABI = mustParse(`[
		{"name":"delegatePassport","type":"function","stateMutability":"nonpayable","inputs":[{"name":"delegatee","type":"address"}],"outputs":[]},
		{"name":"acceptDelegation","type":"function","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[]},
		{"name":"getDelegator","type":"function","stateMutability":"view","inputs":[{"name":"delegatee","type":"address"}],"outputs":[{"name":"user","type":"address"}]}
	]`)

	smartAccountABI = mustParse(`[
		{"name":"executeWithAuthorization","type":"function","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"validAfter","type":"uint256"},{"name":"validBefore","type":"uint256"},{"name":"nonce","type":"uint256"},{"name":"signature","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]},
		{"name":"execute","type":"function","stateMutability":"payable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"}],"outputs":[{"name":"","type":"bytes"}]}
	]`)

	daoABI = mustParse(`[
		{"name":"setVotePreferences","type":"function","stateMutability":"nonpayable","inputs":[{"name":"appIds","type":"bytes32[]"},{"name":"weights","type":"uint256[]"}],"outputs":[]}
	]`)

	rewardPoolABI = mustParse(`[
		{"name":"claimableRewards","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"amount","type":"uint256"}]}
	]`)
)

func mustParse(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

func pack(a abi.ABI, method string, args ...interface{}) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		// 所有调用点的参数类型都是编译期确定的，Pack 失败意味着代码本身有错
		panic(fmt.Sprintf("abi pack %s: %v", method, err))
	}
	return data
}

func clause(to common.Address, data []byte) chain.Clause {
	addr := to
	return chain.Clause{To: &addr, Value: new(big.Int), Data: data}
}

// ---- 只读调用的 calldata ----

func (r *Registry) B3TRBalanceOf(account common.Address) (common.Address, []byte) {
	return r.B3TR, pack(erc20ABI, "balanceOf", account)
}

func (r *Registry) VOT3BalanceOf(account common.Address) (common.Address, []byte) {
	return r.VOT3, pack(vot3ABI, "balanceOf", account)
}

func (r *Registry) VOT3ConvertedB3trOf(account common.Address) (common.Address, []byte) {
	return r.VOT3, pack(vot3ABI, "convertedB3trOf", account)
}

func (r *Registry) TokenOfOwnerByIndex(owner common.Address, index *big.Int) (common.Address, []byte) {
	return r.VeDelegate, pack(veDelegateABI, "tokenOfOwnerByIndex", owner, index)
}

func (r *Registry) GetPoolAddress(tokenID *big.Int) (common.Address, []byte) {
	return r.VeDelegate, pack(veDelegateABI, "getPoolAddress", tokenID)
}

func (r *Registry) GetDelegator(delegatee common.Address) (common.Address, []byte) {
	return r.Passport, pack(passportABI, "getDelegator", delegatee)
}

func (r *Registry) ClaimableRewards(account common.Address) (common.Address, []byte) {
	return r.RewardPool, pack(rewardPoolABI, "claimableRewards", account)
}

// ---- 写操作的 Clause ----

func (r *Registry) CreatePoolClause(tokenID *big.Int, owner common.Address) chain.Clause {
	uri := "embed:" + r.AppName
	return clause(r.VeDelegate, pack(veDelegateABI, "createPool", tokenID, owner, uri))
}

func (r *Registry) B3TRTransferClause(recipient common.Address, amount *big.Int) chain.Clause {
	return clause(r.B3TR, pack(erc20ABI, "transfer", recipient, amount))
}

func (r *Registry) VOT3TransferClause(recipient common.Address, amount *big.Int) chain.Clause {
	return clause(r.VOT3, pack(vot3ABI, "transfer", recipient, amount))
}

func (r *Registry) B3TRApproveClause(spender common.Address, amount *big.Int) chain.Clause {
	return clause(r.B3TR, pack(erc20ABI, "approve", spender, amount))
}

func (r *Registry) ConvertToVOT3Clause(amount *big.Int) chain.Clause {
	return clause(r.VOT3, pack(vot3ABI, "convertToVOT3", amount))
}

func (r *Registry) ConvertToB3TRClause(amount *big.Int) chain.Clause {
	return clause(r.VOT3, pack(vot3ABI, "convertToB3TR", amount))
}

func (r *Registry) DelegatePassportClause(delegatee common.Address) chain.Clause {
	return clause(r.Passport, pack(passportABI, "delegatePassport", delegatee))
}

func (r *Registry) AcceptDelegationClause(user common.Address) chain.Clause {
	return clause(r.Passport, pack(passportABI, "acceptDelegation", user))
}

// SetVotePreferencesClause 把应用的投票权重拉满 (100%)
func (r *Registry) SetVotePreferencesClause() chain.Clause {
	appIDs := [][32]byte{r.AppID}
	weights := []*big.Int{big.NewInt(100)}
	return clause(r.DAO, pack(daoABI, "setVotePreferences", appIDs, weights))
}

// ExecuteWithAuthorizationClause 把一个内部调用包装成 smart account 的授权执行
func (r *Registry) ExecuteWithAuthorizationClause(
	smartAccount common.Address,
	to common.Address,
	value *big.Int,
	data []byte,
	validAfter, validBefore *big.Int,
	nonce *big.Int,
	signature []byte,
) chain.Clause {
	if value == nil {
		value = new(big.Int)
	}
	return clause(smartAccount, pack(smartAccountABI, "executeWithAuthorization",
		to, value, data, validAfter, validBefore, nonce, signature))
}

// ExecuteClause 非授权变体：由 owner 直接驱动 smart account 执行
func (r *Registry) ExecuteClause(smartAccount common.Address, to common.Address, value *big.Int, data []byte) chain.Clause {
	if value == nil {
		value = new(big.Int)
	}
	return clause(smartAccount, pack(smartAccountABI, "execute", to, value, data, uint8(0)))
}

// ---- 返回值解码 ----

// UnpackUint256 解码单个 uint256 返回值
func UnpackUint256(data []byte) (*big.Int, error) {
	if len(data) != 32 {
		return nil, fmt.Errorf("unexpected return data length %d", len(data))
	}
	return new(big.Int).SetBytes(data), nil
}

// UnpackAddress 解码单个 address 返回值
func UnpackAddress(data []byte) (common.Address, error) {
	if len(data) != 32 {
		return common.Address{}, fmt.Errorf("unexpected return data length %d", len(data))
	}
	return common.BytesToAddress(data[12:]), nil
}
