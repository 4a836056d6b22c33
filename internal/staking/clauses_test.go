package staking

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/contracts"
	"vedelegate-core/internal/identity"
)

const (
	testVeDelegate = "0xfc32a9895C78CE00A1047d602Bd81Ea8134CC32b"
	testB3TR       = "0x5ef79995FE8a89e0812330E4378eB2660ceDe699"
	testVOT3       = "0x76Ca782B59C74d088C7D2Cce2f211BC00836c602"
	testPassport   = "0x35a267671d8EDD607B2056A9a13E7ba7CF53c8b3"
	testDAO        = "0x89A00Bb0947a30FF95BEeF77a66AEdE3842Fe5B7"
	testRewardPool = "0x838A33AF756a6366f93e201423E1425f67eC0Fa7"
	testAppID      = "0x68c854d0aef9f5517d58d4772395d0ab44d914070fa6ca5a96f2146ca1449248"

	testOwner        = "0x1234567890123456789012345678901234567890"
	testSmartAccount = "0x9876543210987654321098765432109876543210"
)

func testRegistry(t *testing.T) *contracts.Registry {
	t.Helper()
	registry, err := contracts.NewRegistry(map[string]string{
		"vedelegate": testVeDelegate,
		"b3tr":       testB3TR,
		"vot3":       testVOT3,
		"passport":   testPassport,
		"dao":        testDAO,
		"rewardpool": testRewardPool,
	}, testAppID, "BigBottle")
	require.NoError(t, err)
	return registry
}

// fakeSign 返回固定的 65 字节签名
func fakeSign(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

func testClauseBuilder(t *testing.T) *ClauseBuilder {
	t.Helper()
	auth := NewAuthorizationBuilder(big.NewInt(100009))
	return NewClauseBuilder(testRegistry(t), auth)
}

func freshIdentity() *identity.Identity {
	return &identity.Identity{
		Owner:        testOwner,
		TokenID:      "42",
		SmartAccount: testSmartAccount,
		HasPool:      false,
	}
}

func returningIdentity() *identity.Identity {
	return &identity.Identity{
		Owner:            testOwner,
		TokenID:          "42",
		SmartAccount:     testSmartAccount,
		HasPool:          true,
		PassportDelegate: testOwner,
	}
}

func clauseTargets(clauses []chain.Clause) []string {
	targets := make([]string, len(clauses))
	for i, c := range clauses {
		targets[i] = strings.ToLower(c.To.Hex())
	}
	return targets
}

func TestBuildDepositClausesFirstTime(t *testing.T) {
	builder := testClauseBuilder(t)
	amount := big.NewInt(1e18)

	clauses, err := builder.BuildDepositClauses(context.Background(), freshIdentity(), amount, nil, fakeSign)
	require.Nil(t, err)

	// 首次入金: 建池 + 转账 + 授权转换 x2 + 委托握手 x2 + 投票偏好
	require.Len(t, clauses, 7)

	targets := clauseTargets(clauses)
	assert.Equal(t, strings.ToLower(testVeDelegate), targets[0], "先建池")
	assert.Equal(t, strings.ToLower(testB3TR), targets[1], "再转入 B3TR")
	assert.Equal(t, strings.ToLower(testSmartAccount), targets[2], "授权 approve")
	assert.Equal(t, strings.ToLower(testSmartAccount), targets[3], "授权 convert")
	assert.Equal(t, strings.ToLower(testPassport), targets[4], "委托 passport")
	assert.Equal(t, strings.ToLower(testSmartAccount), targets[5], "授权接受委托")
	assert.Equal(t, strings.ToLower(testSmartAccount), targets[6], "授权投票偏好")
}

func TestBuildDepositClausesReturningUser(t *testing.T) {
	builder := testClauseBuilder(t)
	amount := big.NewInt(1e18)

	clauses, err := builder.BuildDepositClauses(context.Background(), returningIdentity(), amount, nil, fakeSign)
	require.Nil(t, err)

	// 已有池且已委托: 转账 + 授权转换 x2 + 投票偏好
	require.Len(t, clauses, 4)

	targets := clauseTargets(clauses)
	assert.Equal(t, strings.ToLower(testB3TR), targets[0])
	for _, target := range targets[1:] {
		assert.Equal(t, strings.ToLower(testSmartAccount), target)
	}
}

func TestBuildDepositClausesWithVOT3(t *testing.T) {
	builder := testClauseBuilder(t)

	// 只存 VOT3: 无需授权转换
	clauses, err := builder.BuildDepositClauses(context.Background(), returningIdentity(), nil, big.NewInt(1e18), fakeSign)
	require.Nil(t, err)
	require.Len(t, clauses, 2)
	assert.Equal(t, strings.ToLower(testVOT3), strings.ToLower(clauses[0].To.Hex()))
}

func TestBuildDepositClausesZeroAmount(t *testing.T) {
	builder := testClauseBuilder(t)

	_, err := builder.BuildDepositClauses(context.Background(), returningIdentity(), nil, nil, fakeSign)
	require.NotNil(t, err)
	assert.Equal(t, "INVALID_AMOUNT", err.Code)
}

func TestBuildDepositClausesWithoutSigner(t *testing.T) {
	builder := testClauseBuilder(t)

	// 无签名回调时退化为 owner 直驱，不报错
	clauses, err := builder.BuildDepositClauses(context.Background(), returningIdentity(), big.NewInt(1e18), nil, nil)
	require.Nil(t, err)
	require.Len(t, clauses, 4)
}

func TestBuildWithdrawClausesVOT3(t *testing.T) {
	builder := testClauseBuilder(t)

	clauses, err := builder.BuildWithdrawClauses(context.Background(), returningIdentity(), big.NewInt(1e18), WithdrawVOT3, common.Address{}, fakeSign)
	require.Nil(t, err)
	require.Len(t, clauses, 1)
	assert.Equal(t, strings.ToLower(testSmartAccount), strings.ToLower(clauses[0].To.Hex()))
	// 默认转回 owner 自己
	assert.True(t, bytes.Contains(clauses[0].Data, common.HexToAddress(testOwner).Bytes()))
}

func TestBuildWithdrawClausesB3TR(t *testing.T) {
	builder := testClauseBuilder(t)

	// b3tr 路径: 先转换再转出
	clauses, err := builder.BuildWithdrawClauses(context.Background(), returningIdentity(), big.NewInt(1e18), WithdrawB3TR, common.Address{}, fakeSign)
	require.Nil(t, err)
	require.Len(t, clauses, 2)
}

func TestBuildWithdrawClausesRecipient(t *testing.T) {
	builder := testClauseBuilder(t)
	recipient := common.HexToAddress("0x00112233445566778899AabBcCdDeEfF00112233")

	clauses, err := builder.BuildWithdrawClauses(context.Background(), returningIdentity(), big.NewInt(1e18), WithdrawVOT3, recipient, fakeSign)
	require.Nil(t, err)
	require.Len(t, clauses, 1)

	// 转账收款人是指定地址而不是 owner
	assert.True(t, bytes.Contains(clauses[0].Data, recipient.Bytes()))
	assert.False(t, bytes.Contains(clauses[0].Data, common.HexToAddress(testOwner).Bytes()))
}

func TestBuildWithdrawClausesNoPool(t *testing.T) {
	builder := testClauseBuilder(t)

	_, err := builder.BuildWithdrawClauses(context.Background(), freshIdentity(), big.NewInt(1e18), WithdrawB3TR, common.Address{}, fakeSign)
	require.NotNil(t, err)
	assert.Equal(t, "POOL_NOT_FOUND", err.Code)
}

func TestPoolStateOf(t *testing.T) {
	ready, err := PoolStateOf(returningIdentity())
	require.Nil(t, err)
	assert.Equal(t, PoolReady, ready.Kind)

	needs, err := PoolStateOf(freshIdentity())
	require.Nil(t, err)
	assert.Equal(t, PoolNeedsCreation, needs.Kind)
	assert.Equal(t, "42", needs.TokenID.String())

	bad := freshIdentity()
	bad.TokenID = "not-a-number"
	_, err = PoolStateOf(bad)
	require.NotNil(t, err)
	assert.Equal(t, "POOL_NOT_FOUND", err.Code)
}
