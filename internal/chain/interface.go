package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Clause 是一笔多子句原子交易中的单个合约调用。
// 同一笔交易中的 Clause 要么全部执行，要么全部回滚，顺序即执行顺序。
type Clause struct {
	To    *common.Address `json:"to"`
	Value *big.Int        `json:"value"`
	Data  []byte          `json:"data"`
}

// CallResult 只读合约调用的结果
type CallResult struct {
	Data     []byte
	Reverted bool
	VMError  string
}

// TxMeta 已上链交易的确认信息
type TxMeta struct {
	TxID           string `json:"txid"`
	BlockID        string `json:"blockID"`
	BlockNumber    uint64 `json:"blockNumber"`
	BlockTimestamp uint64 `json:"blockTimestamp"`
}

// Reader 定义链的只读访问能力
type Reader interface {
	// Call 执行一次合约只读调用 (不上链)
	Call(ctx context.Context, to common.Address, data []byte) (*CallResult, error)

	// HasCode 查询地址上是否已部署合约代码
	HasCode(ctx context.Context, addr common.Address) (bool, error)
}

// Sender 签名并广播一笔多子句原子交易，阻塞等待上链确认。
// 交易级原子性由链本身保证，调用方只关心整体成功或失败。
type Sender interface {
	SendClauses(ctx context.Context, clauses []Clause) (*TxMeta, error)
}

// Client 组合了读写能力
type Client interface {
	Reader
	Sender
}
