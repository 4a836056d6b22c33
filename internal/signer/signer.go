package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedDataSigner 对 EIP-712 结构化数据出签名。
// 由钱包接入层注入，内核不关心私钥在哪里。
type TypedDataSigner interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
	Address() common.Address
}
