package staking

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vedelegate-core/internal/chain"
	"vedelegate-core/internal/identity"
)

type fakeResolver struct {
	id  *identity.Identity
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, owner string) (*identity.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.id, nil
}

type fakeSender struct {
	sent [][]chain.Clause
	err  error
}

func (f *fakeSender) SendClauses(ctx context.Context, clauses []chain.Clause) (*chain.TxMeta, error) {
	f.sent = append(f.sent, clauses)
	if f.err != nil {
		return nil, f.err
	}
	return &chain.TxMeta{TxID: "0xabc", BlockNumber: 100}, nil
}

type runnerFixture struct {
	runner  *OperationRunner
	sender  *fakeSender
	limiter *RateLimiter
	cache   *QueryCache
	reader  *fakeReader
}

func newRunnerFixture(t *testing.T, id *identity.Identity) *runnerFixture {
	t.Helper()
	registry := testRegistry(t)
	reader := newFakeReader()
	sender := &fakeSender{}
	limiter := NewRateLimiter(5, time.Minute)
	gate := NewSecurityGate(nil, nil, limiter)
	cache := NewQueryCache()

	auth := NewAuthorizationBuilder(big.NewInt(100009))
	builder := NewClauseBuilder(registry, auth)
	balances := NewBalanceReader(reader, registry)
	reconciler := NewCacheReconciler(cache, nil)
	runner := NewOperationRunner(&fakeResolver{id: id}, balances, gate, builder, reconciler, sender, cache)

	// 默认给 owner 和 smart account 都预置充足余额
	stubBalances(reader, registry, testOwner, 5e18, 0, 0)
	stubBalances(reader, registry, testSmartAccount, 0, 5e18, 0)

	return &runnerFixture{runner: runner, sender: sender, limiter: limiter, cache: cache, reader: reader}
}

func TestStakeHappyPath(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.Nil(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xabc", result.TxID)
	assert.NotEmpty(t, result.Fingerprint)

	// 老用户入金: 转账 + 授权转换 x2 + 投票偏好
	require.Len(t, f.sender.sent, 1)
	assert.Len(t, f.sender.sent[0], 4)
	assert.Equal(t, 4, result.ClauseCount)

	// 成功派发占一次限流额度
	assert.Equal(t, 4, f.limiter.Remaining(testOwner))
}

func TestStakeFirstTimeBuildsFullSequence(t *testing.T) {
	f := newRunnerFixture(t, freshIdentity())

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.Nil(t, result.Err)
	assert.Equal(t, 7, result.ClauseCount, "首次质押包含建池和委托握手")
}

func TestStakeInsufficientBalance(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(6e18), // 余额只有 5e18
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", result.Err.Code)
	assert.Empty(t, f.sender.sent, "校验失败不应该提交交易")
	assert.Equal(t, 5, f.limiter.Remaining(testOwner), "校验失败不占限流额度")
}

func TestStakeInvalidAmount(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1), // 低于尘埃阈值
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "INVALID_AMOUNT", result.Err.Code)
}

func TestStakeRateLimited(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())
	for i := 0; i < 5; i++ {
		f.limiter.RecordOperation(testOwner)
	}

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", result.Err.Code)
	assert.Empty(t, f.sender.sent)
}

func TestStakeSubmitFailureRollsBack(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())
	f.sender.err = errors.New("transaction reverted")

	// 预置缓存条目，观察乐观更新被回滚标记
	f.cache.Set(KindBalance, testOwner, seededBalance(5e18, 0))

	result := f.runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "CONTRACT_ERROR", result.Err.Code)

	_, stale, ok := f.cache.Get(KindBalance, testOwner)
	require.True(t, ok)
	assert.True(t, stale, "提交失败后乐观值必须标记陈旧")
}

func TestStakeResolverFailure(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())
	registry := testRegistry(t)
	runner := NewOperationRunner(
		&fakeResolver{err: errors.New("network unreachable")},
		NewBalanceReader(f.reader, registry),
		NewSecurityGate(nil, nil, f.limiter),
		NewClauseBuilder(registry, NewAuthorizationBuilder(big.NewInt(100009))),
		NewCacheReconciler(f.cache, nil),
		f.sender,
		f.cache,
	)

	result := runner.Stake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "NETWORK_ERROR", result.Err.Code)
}

func TestUnstakeHappyPath(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Unstake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Sign:   fakeSign,
	})

	require.Nil(t, result.Err)
	// 默认 b3tr 路径: 转换 + 转出
	assert.Equal(t, 2, result.ClauseCount)
}

func TestUnstakeVOT3Path(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Unstake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(1e18),
		Token:  WithdrawVOT3,
		Sign:   fakeSign,
	})

	require.Nil(t, result.Err)
	assert.Equal(t, 1, result.ClauseCount)
}

func TestUnstakeWithRecipient(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())
	recipient := "0x00112233445566778899AabBcCdDeEfF00112233"

	result := f.runner.Unstake(context.Background(), OperationRequest{
		Owner:     testOwner,
		Amount:    big.NewInt(1e18),
		Token:     WithdrawVOT3,
		Recipient: recipient,
		Sign:      fakeSign,
	})

	require.Nil(t, result.Err)
	require.Len(t, f.sender.sent, 1)
	require.Len(t, f.sender.sent[0], 1)

	// 转出子句的收款人是指定地址
	data := f.sender.sent[0][0].Data
	assert.True(t, bytes.Contains(data, common.HexToAddress(recipient).Bytes()))
	assert.False(t, bytes.Contains(data, common.HexToAddress(testOwner).Bytes()))
}

func TestUnstakeInvalidRecipient(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Unstake(context.Background(), OperationRequest{
		Owner:     testOwner,
		Amount:    big.NewInt(1e18),
		Recipient: "0x123",
		Sign:      fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "INVALID_ADDRESS", result.Err.Code)
	assert.Empty(t, f.sender.sent, "校验失败不应该提交交易")
	assert.Equal(t, 5, f.limiter.Remaining(testOwner))
}

func TestUnstakeExceedsStaked(t *testing.T) {
	f := newRunnerFixture(t, returningIdentity())

	result := f.runner.Unstake(context.Background(), OperationRequest{
		Owner:  testOwner,
		Amount: big.NewInt(6e18), // 只质押了 5e18
		Sign:   fakeSign,
	})

	require.NotNil(t, result.Err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", result.Err.Code)
	assert.Empty(t, f.sender.sent)
}
