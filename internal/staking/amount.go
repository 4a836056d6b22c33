package staking

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"vedelegate-core/pkg/errno"

	"github.com/shopspring/decimal"
)

// DefaultDecimals 是 B3TR/VOT3 的精度
const DefaultDecimals = 18

// maxDisplayAmount 是单次输入允许的最大显示值 (1e12 个代币)
var maxDisplayAmount = decimal.New(1, 12)

var nonAmountChars = regexp.MustCompile(`[^\d.]`)

// SanitizeAmount 去掉用户输入中除数字和小数点以外的字符
func SanitizeAmount(input string) string {
	return nonAmountChars.ReplaceAllString(strings.TrimSpace(input), "")
}

// ValidationResult 金额校验结果
type ValidationResult struct {
	IsValid bool
	Value   float64
	Err     *errno.Errno
}

// ValidateAmount 是所有用户输入金额的唯一入口。
// 拒绝: 空串、非数字、<=0、超过 1e12、小数位多于 decimals。
func ValidateAmount(input string, decimals int) ValidationResult {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ValidationResult{Err: errno.ErrInvalidAmount.WithMessage("Amount is required")}
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return ValidationResult{Err: errno.ErrInvalidAmount.WithMessage("Invalid amount format")}
	}

	if value.LessThanOrEqual(decimal.Zero) {
		return ValidationResult{Err: errno.ErrInvalidAmount.WithMessage("Amount must be greater than 0")}
	}

	if value.GreaterThan(maxDisplayAmount) {
		return ValidationResult{Err: errno.ErrInvalidAmount.WithMessage("Amount is too large")}
	}

	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		fractionDigits := len(trimmed) - idx - 1
		if fractionDigits > decimals {
			return ValidationResult{Err: errno.ErrInvalidAmount.WithMessage(
				fmt.Sprintf("Too many decimal places (max %d)", decimals))}
		}
	}

	return ValidationResult{IsValid: true, Value: value.InexactFloat64()}
}

// ToRaw 把显示值转成最小单位整数 (乘以 10^decimals 后向下取整)。
// 显示层的浮点值回到链上之前必须经过这里，不允许手搓乘法。
func ToRaw(value float64, decimals int) *big.Int {
	return decimal.NewFromFloat(value).Shift(int32(decimals)).Floor().BigInt()
}

// ParseRaw 直接把字符串金额转成最小单位整数，避免中途经过浮点
func ParseRaw(input string, decimals int) (*big.Int, *errno.Errno) {
	result := ValidateAmount(input, decimals)
	if !result.IsValid {
		return nil, result.Err
	}
	value, _ := decimal.NewFromString(strings.TrimSpace(input))
	return value.Shift(int32(decimals)).Floor().BigInt(), nil
}

// FromRaw 把最小单位整数转回显示值 (仅用于展示，不得再转回 raw)
func FromRaw(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).InexactFloat64()
}

// FormatForDisplay 按固定小数位输出，带千分位分隔符
func FormatForDisplay(value float64, decimalsShown int) string {
	fixed := decimal.NewFromFloat(value).StringFixed(int32(decimalsShown))

	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}

	intPart := fixed
	fracPart := ""
	if idx := strings.IndexByte(fixed, '.'); idx >= 0 {
		intPart, fracPart = fixed[:idx], fixed[idx:]
	}

	// 千分位分组
	var sb strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(digit)
	}

	out := sb.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// TokenAmount 是一个不可变的定点数金额: (raw 最小单位, 精度, 符号)。
// raw 恒为非负。
type TokenAmount struct {
	raw      *big.Int
	decimals int
	symbol   string
}

// NewTokenAmount 从最小单位整数构造 (链上响应入口)
func NewTokenAmount(raw *big.Int, decimals int, symbol string) (TokenAmount, *errno.Errno) {
	if raw == nil {
		raw = new(big.Int)
	}
	if raw.Sign() < 0 {
		return TokenAmount{}, errno.ErrInvalidAmount.WithMessage("Amount cannot be negative")
	}
	return TokenAmount{
		raw:      new(big.Int).Set(raw),
		decimals: decimals,
		symbol:   symbol,
	}, nil
}

// ParseTokenAmount 从用户输入字符串构造 (显示层入口)
func ParseTokenAmount(input string, decimals int, symbol string) (TokenAmount, *errno.Errno) {
	raw, err := ParseRaw(input, decimals)
	if err != nil {
		return TokenAmount{}, err
	}
	return TokenAmount{raw: raw, decimals: decimals, symbol: symbol}, nil
}

// Raw 返回最小单位整数的副本
func (a TokenAmount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a TokenAmount) Decimals() int  { return a.decimals }
func (a TokenAmount) Symbol() string { return a.symbol }

// Display 返回显示值 (仅用于展示)
func (a TokenAmount) Display() float64 {
	return FromRaw(a.raw, a.decimals)
}

// Format 返回带千分位的显示字符串
func (a TokenAmount) Format(decimalsShown int) string {
	return FormatForDisplay(a.Display(), decimalsShown)
}
