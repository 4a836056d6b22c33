package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"vedelegate-core/pkg/bip32"
	"vedelegate-core/pkg/bip39"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// LocalSigner 持有内存中的私钥，同时满足交易哈希签名和 EIP-712 签名。
// 服务端/CLI 自持钱包时使用；浏览器钱包场景下由外部实现注入。
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewLocalSignerFromHex 从十六进制私钥构建
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewLocalSigner(key), nil
}

// NewLocalSignerFromMnemonic 从助记词派生私钥 (CLI 场景)
// path 例: "m/44'/818'/0'/0/0"
func NewLocalSignerFromMnemonic(mnemonic, path string) (*LocalSigner, error) {
	svc := bip39.NewMnemonicService()
	if !svc.ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := svc.MnemonicToSeed(mnemonic, "")

	wallet, err := bip32.NewMasterKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	child, err := wallet.DerivePath(path)
	if err != nil {
		return nil, err
	}
	ecPriv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key: %w", err)
	}
	return NewLocalSigner(ecPriv.ToECDSA()), nil
}

func (s *LocalSigner) Address() common.Address {
	return s.addr
}

// SignHash 直接对 32 字节哈希签名，返回 [R || S || V]，V 为 0/1
func (s *LocalSigner) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	return crypto.Sign(hash, s.key)
}

// SignTypedData 计算 EIP-712 摘要并签名，V 调整为 27/28 以符合合约端 ecrecover 习惯
func (s *LocalSigner) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
