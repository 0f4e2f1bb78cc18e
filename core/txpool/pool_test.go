// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAddBeforeHeadRejectsBatch(t *testing.T) {
	oracle := newTestOracle()
	pool := New(DefaultConfig, testChainConfig, oracle, nil, nil)
	t.Cleanup(pool.Close)

	key := newKey(t)
	tx := signedTransfer(t, key, 0, 5, 100)
	errs := pool.Add(types.Transactions{tx, tx}, "")
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrHeadUnknown)
	assert.ErrorIs(t, errs[1], ErrHeadUnknown)
	assert.Equal(t, 0, pool.Stats().Total)
	assert.Equal(t, 0, pool.Stats().Disposed)
}

func TestSmartHeadRejectsUnknownState(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 1)

	stranger := testHeader(9, big.NewInt(10))
	assert.False(t, env.pool.SmartHead(stranger))
	assert.Equal(t, env.head.Hash(), env.pool.head.Hash())
}

func TestResurrectionRoundTrip(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 1)

	tx := env.dynamicTx(0, 0, 5, 100)
	env.add("precious", tx)
	buried := env.item(tx)
	oldStamp := buried.Timestamp()

	env.pool.DisposeItems(buried)
	env.check()
	require.Equal(t, 1, env.pool.Stats().Disposed)

	// Re-adding the same transaction pulls it out of the basket: same info,
	// strictly newer timestamp.
	env.add("ignored", tx)
	revived := env.item(tx)
	assert.Equal(t, "precious", revived.Info())
	assert.True(t, revived.Timestamp().After(oldStamp))
	assert.Equal(t, 0, env.pool.Stats().Disposed)
	assert.Equal(t, 1, env.pool.Stats().Total)
}

func TestInvalidSignatureRejected(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 1)

	// Signed against a different chain id, so recovery through the pool's
	// signer fails.
	key := newKey(t)
	foreign := &params.ChainConfig{ChainID: big.NewInt(99), LondonBlock: common.Big0}
	to := common.Address{1}
	tx, err := types.SignNewTx(key, types.LatestSigner(foreign), &types.DynamicFeeTx{
		ChainID:   foreign.ChainID,
		Nonce:     0,
		GasTipCap: big.NewInt(5),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
	})
	require.NoError(t, err)

	errs := env.pool.Add(types.Transactions{tx}, "")
	assert.ErrorIs(t, errs[0], ErrInvalidSender)
	env.check()
	assert.Equal(t, 1, env.pool.Stats().Disposed)
}

func TestInsufficientFundsRejected(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 1)
	env.oracle.setAccount(env.head.Hash(), env.addr(0), 0, uint256FromInt(1000))

	tx := env.dynamicTx(0, 0, 5, 100)
	errs := env.pool.Add(types.Transactions{tx}, "")
	assert.ErrorIs(t, errs[0], ErrInsufficientFunds)
	env.check()
	assert.Equal(t, RejectInsufficientFunds, env.item(tx).Reject())
}

func TestNewItemsEvent(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 2)

	ch := make(chan NewItemsEvent, 1)
	sub := env.pool.SubscribeNewItems(ch)
	defer sub.Unsubscribe()

	env.add("", env.dynamicTx(0, 0, 5, 100), env.dynamicTx(1, 0, 5, 100))

	select {
	case ev := <-ch:
		assert.Len(t, ev.Items, 2)
	case <-time.After(time.Second):
		t.Fatal("no event for accepted batch")
	}
}

func TestBaseFeeReorgConverges(t *testing.T) {
	const senders = 20
	b1, b2 := big.NewInt(10), big.NewInt(120)

	// Fee caps straddle both base fees so the bucket split really depends on
	// the fee anchor.
	load := func(env *testEnv) {
		for key := 0; key < senders; key++ {
			for nonce := uint64(0); nonce < 10; nonce++ {
				feeCap := int64(40 + 10*key)
				tip := int64(1 + nonce%7)
				errs := env.pool.Add(types.Transactions{env.dynamicTx(key, nonce, tip, feeCap)}, "")
				require.NoError(t, errs[0])
			}
		}
		env.check()
	}
	envA := newTestEnv(t, DefaultConfig, testChainConfig, b1, senders)
	load(envA)
	envB := newTestEnv(t, DefaultConfig, testChainConfig, b2, senders)
	load(envB)

	statsA, statsB := envA.pool.Stats(), envB.pool.Stats()
	require.NotEqual(t,
		[3]int{statsA.Pending, statsA.Staged, statsA.Packed},
		[3]int{statsB.Pending, statsB.Staged, statsB.Packed},
		"test needs base fees that split the buckets differently")

	// Re-anchor the first pool at the second base fee: the censuses converge.
	envA.pool.SetBaseFee(b2)
	envA.pool.TriggerReorg()
	envA.check()

	statsA = envA.pool.Stats()
	assert.Equal(t, statsB.Pending, statsA.Pending)
	assert.Equal(t, statsB.Staged, statsA.Staged)
	assert.Equal(t, statsB.Packed, statsA.Packed)
	assert.Equal(t, statsB.Total, statsA.Total)
}

func TestReassignMovesBuckets(t *testing.T) {
	env := newTestEnv(t, stagedOnlyConfig(), testChainConfig, big.NewInt(10), 1)

	var txs []*types.Transaction
	for nonce := uint64(0); nonce < 4; nonce++ {
		tx := env.dynamicTx(0, nonce, 5, 100)
		txs = append(txs, tx)
		env.add("", tx)
	}
	before := env.pool.Stats()
	require.Equal(t, 4, before.Staged)

	// Promote the head of the run by hand.
	for _, tx := range txs[:2] {
		require.NoError(t, env.pool.Reassign(env.item(tx), StatusPacked))
	}
	env.check()

	after := env.pool.Stats()
	assert.Equal(t, 2, after.Packed)
	assert.Equal(t, 2, after.Staged)
	assert.Equal(t, before.Staged+before.Packed, after.Staged+after.Packed)

	env.pool.mu.RLock()
	assert.Equal(t, 2, env.pool.store.senderStatusCount(env.addr(0), StatusPacked))
	assert.Equal(t, 2, env.pool.store.senderStatusCount(env.addr(0), StatusStaged))
	env.pool.mu.RUnlock()
}

func TestFlushRejects(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 2)

	t0 := env.dynamicTx(0, 0, 5, 100)
	t1 := env.dynamicTx(1, 0, 5, 100)
	env.add("", t0, t1)
	env.pool.DisposeItems(env.item(t0), env.item(t1))
	env.check()
	require.Equal(t, 2, env.pool.Stats().Disposed)

	assert.Equal(t, 2, env.pool.FlushRejects())
	env.check()
	assert.Equal(t, 0, env.pool.Stats().Disposed)
	assert.Equal(t, 0, env.pool.FlushRejects())
}

func TestSetMaxRejectsShrinks(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 3)

	for key := 0; key < 3; key++ {
		tx := env.dynamicTx(key, 0, 5, 100)
		env.add("", tx)
		env.pool.DisposeItems(env.item(tx))
	}
	require.Equal(t, 3, env.pool.Stats().Disposed)

	env.pool.SetMaxRejects(1)
	env.check()
	assert.Equal(t, 1, env.pool.Stats().Disposed)
}

func TestLocalsAnnotation(t *testing.T) {
	config := DefaultConfig
	key := newKey(t)
	config.Locals = []common.Address{crypto.PubkeyToAddress(key.PublicKey)}

	oracle := newTestOracle()
	head := testHeader(1, big.NewInt(10))
	oracle.addHead(head.Hash(), big.NewInt(10))
	oracle.setAccount(head.Hash(), crypto.PubkeyToAddress(key.PublicKey), 0, uint256FromInt(testBalance))

	pool := New(config, testChainConfig, oracle, nil, nil)
	t.Cleanup(pool.Close)
	require.True(t, pool.SmartHead(head))

	tx := signedTransfer(t, key, 0, 5, 100)
	for _, err := range pool.Add(types.Transactions{tx}, "") {
		require.NoError(t, err)
	}
	it, err := pool.GetItem(tx.Hash())
	require.NoError(t, err)
	assert.True(t, it.Local())
	assert.Len(t, pool.Locals(), 1)
}

func TestWriteReport(t *testing.T) {
	env := newTestEnv(t, DefaultConfig, testChainConfig, big.NewInt(10), 1)

	tx := env.dynamicTx(0, 0, 5, 100)
	env.add("forensics", tx)
	env.pool.DisposeItems(env.item(tx))

	var buf bytes.Buffer
	env.pool.WriteReport(&buf)
	assert.Contains(t, buf.String(), "user")
	assert.Contains(t, buf.String(), "forensics")
}

func TestPreLondonPricing(t *testing.T) {
	config := stagedOnlyConfig()
	config.MinPreLondonGasPrice = big.NewInt(50)
	env := newTestEnvPreLondon(t, config, 2)

	cheap := env.legacyTx(0, 0, 10, common.Big0)
	rich := env.legacyTx(1, 0, 80, common.Big0)
	for _, err := range env.pool.Add(types.Transactions{cheap, rich}, "") {
		require.NoError(t, err)
	}
	env.check()

	cheapItem, err := env.pool.GetItem(cheap.Hash())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, cheapItem.Status())

	richItem, err := env.pool.GetItem(rich.Hash())
	require.NoError(t, err)
	assert.Equal(t, StatusStaged, richItem.Status())

	// Raising the floor past the rich one demotes it on the same pass.
	env.pool.SetMinPreLondonGasPrice(big.NewInt(90))
	env.check()
	richItem, err = env.pool.GetItem(rich.Hash())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, richItem.Status())
}
