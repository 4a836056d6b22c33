package crypto_util

import (
	"testing"
)

func TestHashes(t *testing.T) {
	input := []byte("hello world")

	// SHA256
	sha256Hash := CalculateSHA256(input)
	if len(sha256Hash) != 64 { // 32 bytes * 2 hex chars
		t.Errorf("SHA256 哈希长度不匹配: 得到 %d, 期望 64", len(sha256Hash))
	}

	// Keccak256
	keccakHash := CalculateKeccak256(input)
	if len(keccakHash) != 64 {
		t.Errorf("Keccak256 哈希长度不匹配: 得到 %d, 期望 64", len(keccakHash))
	}

	// Blake3
	blake3Hash := CalculateBlake3(input)
	if len(blake3Hash) != 64 {
		t.Errorf("Blake3 哈希长度不匹配: 得到 %d, 期望 64", len(blake3Hash))
	}
}

func TestKeccak256KnownVector(t *testing.T) {
	// keccak256("") 的标准值，注意不是 SHA3-256
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	got := CalculateKeccak256([]byte{})
	if got != want {
		t.Errorf("Keccak256 空串哈希不匹配:\n得到 %s\n期望 %s", got, want)
	}
}

func TestKeccak256RawMatchesHex(t *testing.T) {
	input := []byte("vechain")
	raw := Keccak256(input)
	if len(raw) != 32 {
		t.Fatalf("Keccak256 返回了 %d 字节, 期望 32", len(raw))
	}
}
