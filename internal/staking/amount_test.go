package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"普通数字", "123.45", "123.45"},
		{"带货币符号", "$1,000.50", "1000.50"},
		{"夹杂字母", "12a3.4b5", "123.45"},
		{"全是垃圾", "abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAmount(tt.input))
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOK   bool
		wantCode string
	}{
		{"合法金额", "10.5", true, ""},
		{"整数", "100", true, ""},
		{"空输入", "", false, "INVALID_AMOUNT"},
		{"非数字", "abc", false, "INVALID_AMOUNT"},
		{"零", "0", false, "INVALID_AMOUNT"},
		{"负数", "-5", false, "INVALID_AMOUNT"},
		{"超过显示上限", "2000000000000", false, "INVALID_AMOUNT"},
		{"小数位过多", "1.0000000000000000001", false, "INVALID_AMOUNT"},
		{"刚好 18 位小数", "1.000000000000000001", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateAmount(tt.input, DefaultDecimals)
			assert.Equal(t, tt.wantOK, result.IsValid)
			if !tt.wantOK {
				require.NotNil(t, result.Err)
				assert.Equal(t, tt.wantCode, result.Err.Code)
			}
		})
	}
}

func TestToRawAndBack(t *testing.T) {
	raw := ToRaw(1.5, 18)
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Zero(t, raw.Cmp(want), "1.5 应该转成 1.5e18")

	assert.InDelta(t, 1.5, FromRaw(raw, 18), 1e-9)
}

func TestParseRawExact(t *testing.T) {
	// 浮点数表示不了的金额必须走字符串精确路径
	raw, e := ParseRaw("0.000000000000000001", 18)
	require.Nil(t, e)
	assert.Equal(t, "1", raw.String())

	raw, e = ParseRaw("123456789.123456789123456789", 18)
	require.Nil(t, e)
	assert.Equal(t, "123456789123456789123456789", raw.String())
}

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		want     string
	}{
		{1234567.891, 2, "1,234,567.89"},
		{0.5, 3, "0.500"},
		{1000, 0, "1,000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatForDisplay(tt.value, tt.decimals))
	}
}

func TestTokenAmountImmutable(t *testing.T) {
	raw := big.NewInt(1000)
	amount, err := NewTokenAmount(raw, 18, "B3TR")
	require.Nil(t, err)

	// 改外部引用不影响内部值
	raw.SetInt64(9999)
	assert.Equal(t, "1000", amount.Raw().String())

	// 改返回值也不影响内部值
	amount.Raw().SetInt64(7777)
	assert.Equal(t, "1000", amount.Raw().String())
}

func TestTokenAmountRejectsNegative(t *testing.T) {
	_, err := NewTokenAmount(big.NewInt(-1), 18, "B3TR")
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_AMOUNT", err.Code)
}
