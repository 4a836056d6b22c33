package staking

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动拨动的时钟
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiterSlidingWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewRateLimiter(5, time.Minute)
	limiter.now = clock.now

	addr := "0x1234567890123456789012345678901234567890"

	// 前 5 次都允许
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.IsAllowed(addr), "第 %d 次应该允许", i+1)
		limiter.RecordOperation(addr)
	}

	// 第 6 次拒绝
	assert.False(t, limiter.IsAllowed(addr))
	assert.Equal(t, 0, limiter.Remaining(addr))

	// 窗口滑过后恢复
	clock.advance(61 * time.Second)
	assert.True(t, limiter.IsAllowed(addr))
	assert.Equal(t, 5, limiter.Remaining(addr))
}

func TestRateLimiterPerAddress(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)

	a := "0x1111111111111111111111111111111111111111"
	b := "0x2222222222222222222222222222222222222222"

	limiter.RecordOperation(a)
	limiter.RecordOperation(a)

	assert.False(t, limiter.IsAllowed(a), "a 已达限额")
	assert.True(t, limiter.IsAllowed(b), "b 不受 a 影响")
}

func TestRateLimiterCaseInsensitive(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	limiter.RecordOperation("0xABCDEF1234567890123456789012345678901234")
	assert.False(t, limiter.IsAllowed("0xabcdef1234567890123456789012345678901234"),
		"大小写不同的同一地址应该共享限额")
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantOK  bool
	}{
		{"全小写合法地址", "0x5ef79995fe8a89e0812330e4378eb2660cede699", true},
		{"全大写合法地址", "0x5EF79995FE8A89E0812330E4378EB2660CEDE699", true},
		{"正确的混合大小写", "0x5ef79995FE8a89e0812330E4378eB2660ceDe699", true},
		{"错误的校验和", "0x5Ef79995FE8a89e0812330E4378eB2660ceDe699", false},
		{"空地址", "", false},
		{"缺少前缀", "5ef79995fe8a89e0812330e4378eb2660cede699", false},
		{"长度不对", "0x5ef79995fe8a89e0812330e4378eb2660cede6", false},
		{"零地址", "0x0000000000000000000000000000000000000000", false},
		{"非法字符", "0x5ef79995fe8a89e0812330e4378eb2660cedezz9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantOK {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, "INVALID_ADDRESS", err.Code)
			}
		})
	}
}

func TestValidateRawAmount(t *testing.T) {
	gate := NewSecurityGate(nil, nil, NewRateLimiter(5, time.Minute))

	tests := []struct {
		name   string
		amount *big.Int
		wantOK bool
	}{
		{"nil", nil, false},
		{"零", big.NewInt(0), false},
		{"低于尘埃阈值", big.NewInt(1e14), false},
		{"刚好最小值", mustBig("1000000000000000"), true},
		{"正常金额", mustBig("5000000000000000000"), true},
		{"刚好最大值", mustBig("1000000000000000000000000"), true},
		{"超过最大值", mustBig("1000000000000000000000001"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.ValidateRawAmount(tt.amount)
			if tt.wantOK {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, "INVALID_AMOUNT", err.Code)
			}
		})
	}
}

func TestValidateClause(t *testing.T) {
	valid := ClauseParams{
		To:       "0x5ef79995fe8a89e0812330e4378eb2660cede699",
		Value:    big.NewInt(0),
		Data:     "0xa9059cbb",
		GasLimit: 100000,
	}
	assert.Nil(t, ValidateClause(valid))

	badData := valid
	badData.Data = "a9059cbb"
	require.NotNil(t, ValidateClause(badData))

	badGas := valid
	badGas.GasLimit = MaxGasLimit + 1
	require.NotNil(t, ValidateClause(badGas))

	negValue := valid
	negValue.Value = big.NewInt(-1)
	require.NotNil(t, ValidateClause(negValue))
}

func TestDetectSuspiciousActivity(t *testing.T) {
	gate := NewSecurityGate(nil, nil, NewRateLimiter(5, time.Minute))

	// 超过上限 10% 的大额
	big10pct := mustBig("100000000000000000000001") // > 1e23
	check := gate.DetectSuspiciousActivity(big10pct, 0)
	assert.True(t, check.IsSuspicious)

	// 高频
	check = gate.DetectSuspiciousActivity(big.NewInt(1e18), 3)
	assert.True(t, check.IsSuspicious)

	// 普通操作
	check = gate.DetectSuspiciousActivity(big.NewInt(1e18), 1)
	assert.False(t, check.IsSuspicious)
}

func TestPerformSecurityCheck(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)
	gate := NewSecurityGate(nil, nil, limiter)

	owner := "0x1234567890123456789012345678901234567890"
	params := SecurityParams{
		Amount:      mustBig("1000000000000000000"),
		UserAddress: owner,
	}

	ok, err := gate.PerformSecurityCheck(params)
	assert.True(t, ok)
	assert.Nil(t, err)

	// 安全检查本身不占限流额度
	assert.Equal(t, 5, limiter.Remaining(owner))

	// 打满限额之后被拒
	for i := 0; i < 5; i++ {
		limiter.RecordOperation(owner)
	}
	ok, err = gate.PerformSecurityCheck(params)
	assert.False(t, ok)
	require.NotNil(t, err)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", err.Code)
}
