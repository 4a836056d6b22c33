package chain

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

// HashSigner 对 32 字节哈希出签名，返回 65 字节 [R || S || V] (V 为 0/1)。
// 具体实现可以是本地私钥，也可以是外部钱包。
type HashSigner interface {
	SignHash(hash []byte) ([]byte, error)
	Address() common.Address
}

// txClause 是 Clause 的 RLP 编码形式
type txClause struct {
	To    *common.Address `rlp:"nil"`
	Value *big.Int
	Data  []byte
}

// txBody 是 Thor 交易体 (不含签名)，字段顺序即 RLP 编码顺序
type txBody struct {
	ChainTag     uint8
	BlockRef     uint64
	Expiration   uint32
	Clauses      []txClause
	GasPriceCoef uint8
	Gas          uint64
	DependsOn    *[32]byte `rlp:"nil"`
	Nonce        uint64
	Reserved     []interface{}
}

// signedTx 是携带签名的完整交易
type signedTx struct {
	txBody
	Signature []byte
}

// buildTxBody 组装交易体。
// blockRef 取最近区块 ID 的前 8 字节，expiration 以区块数计。
func buildTxBody(chainTag uint8, blockRef [8]byte, clauses []Clause, gas uint64, nonce uint64) txBody {
	cs := make([]txClause, 0, len(clauses))
	for _, c := range clauses {
		value := c.Value
		if value == nil {
			value = new(big.Int)
		}
		cs = append(cs, txClause{To: c.To, Value: value, Data: c.Data})
	}

	return txBody{
		ChainTag:     chainTag,
		BlockRef:     binary.BigEndian.Uint64(blockRef[:]),
		Expiration:   720, // ~2 小时 (10s 块间隔)
		Clauses:      cs,
		GasPriceCoef: 0,
		Gas:          gas,
		Nonce:        nonce,
		Reserved:     []interface{}{},
	}
}

// signingHash 返回交易体的签名哈希 (blake2b-256 of RLP)
func (b *txBody) signingHash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(b)
	if err != nil {
		return nil, fmt.Errorf("rlp encode tx body: %w", err)
	}
	hash := blake2b.Sum256(encoded)
	return hash[:], nil
}

// sign 计算签名并返回可广播的原始交易 Hex
func (b *txBody) sign(signer HashSigner) (string, error) {
	hash, err := b.signingHash()
	if err != nil {
		return "", err
	}

	sig, err := signer.SignHash(hash)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("unexpected signature length %d", len(sig))
	}

	raw, err := rlp.EncodeToBytes(&signedTx{txBody: *b, Signature: sig})
	if err != nil {
		return "", fmt.Errorf("rlp encode signed tx: %w", err)
	}
	return hexutil.Encode(raw), nil
}

// intrinsicGas 估算交易的固有 Gas: 基础 5000 + 每个 clause 16000 + data 字节费
func intrinsicGas(clauses []Clause) uint64 {
	gas := uint64(5000)
	for _, c := range clauses {
		gas += 16000
		for _, b := range c.Data {
			if b == 0 {
				gas += 4
			} else {
				gas += 68
			}
		}
	}
	// 合约执行余量
	return gas + uint64(len(clauses))*200000
}
