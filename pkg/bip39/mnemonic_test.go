package bip39

import (
	"encoding/hex"
	"testing"
)

func TestGenerateMnemonic(t *testing.T) {
	service := NewMnemonicService()

	// 测试 12 个单词 (128 bits)
	mnemonic12, err := service.GenerateMnemonic(128)
	if err != nil {
		t.Fatalf("生成 12 词助记词失败: %v", err)
	}
	if !service.ValidateMnemonic(mnemonic12) {
		t.Errorf("生成的 12 词助记词无效")
	}

	// 测试 24 个单词 (256 bits)
	mnemonic24, err := service.GenerateMnemonic(256)
	if err != nil {
		t.Fatalf("生成 24 词助记词失败: %v", err)
	}
	if !service.ValidateMnemonic(mnemonic24) {
		t.Errorf("生成的 24 词助记词无效")
	}
}

func TestMnemonicToSeed(t *testing.T) {
	service := NewMnemonicService()

	// BIP-39 标准测试向量
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	expectedSeedHex := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

	if !service.ValidateMnemonic(mnemonic) {
		t.Fatalf("测试向量助记词无效")
	}

	seedNoPass := service.MnemonicToSeed(mnemonic, "")
	if hex.EncodeToString(seedNoPass) != expectedSeedHex {
		t.Errorf("种子不匹配:\n得到 %s\n期望 %s", hex.EncodeToString(seedNoPass), expectedSeedHex)
	}
}

func TestValidateMnemonic(t *testing.T) {
	service := NewMnemonicService()

	if service.ValidateMnemonic("not a valid mnemonic phrase at all") {
		t.Error("无效助记词通过了校验")
	}
}
