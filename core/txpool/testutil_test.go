// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var testChainConfig = &params.ChainConfig{
	ChainID:             big.NewInt(1337),
	HomesteadBlock:      common.Big0,
	EIP150Block:         common.Big0,
	EIP155Block:         common.Big0,
	EIP158Block:         common.Big0,
	ByzantiumBlock:      common.Big0,
	ConstantinopleBlock: common.Big0,
	PetersburgBlock:     common.Big0,
	IstanbulBlock:       common.Big0,
	BerlinBlock:         common.Big0,
	LondonBlock:         common.Big0,
}

// preLondonChainConfig activates London far enough out that every test block
// prices transactions by plain gas price.
var preLondonChainConfig = &params.ChainConfig{
	ChainID:             big.NewInt(1337),
	HomesteadBlock:      common.Big0,
	EIP150Block:         common.Big0,
	EIP155Block:         common.Big0,
	EIP158Block:         common.Big0,
	ByzantiumBlock:      common.Big0,
	ConstantinopleBlock: common.Big0,
	PetersburgBlock:     common.Big0,
	IstanbulBlock:       common.Big0,
	BerlinBlock:         common.Big0,
	LondonBlock:         big.NewInt(1 << 40),
}

// headState is one head's canned account state inside testOracle.
type headState struct {
	nonces   map[common.Address]uint64
	balances map[common.Address]*uint256.Int
	baseFee  *big.Int
}

// testOracle is a StateOracle over hand-seeded heads, in the spirit of the
// canned state databases the real client wires into its unit tests.
type testOracle struct {
	heads map[common.Hash]*headState
}

func newTestOracle() *testOracle {
	return &testOracle{heads: make(map[common.Hash]*headState)}
}

func (o *testOracle) addHead(head common.Hash, baseFee *big.Int) {
	o.heads[head] = &headState{
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*uint256.Int),
		baseFee:  baseFee,
	}
}

func (o *testOracle) setAccount(head common.Hash, addr common.Address, nonce uint64, balance *uint256.Int) {
	state := o.heads[head]
	state.nonces[addr] = nonce
	state.balances[addr] = balance
}

func (o *testOracle) HasState(head common.Hash) bool {
	_, ok := o.heads[head]
	return ok
}

func (o *testOracle) AccountNonce(addr common.Address, head common.Hash) (uint64, error) {
	state, ok := o.heads[head]
	if !ok {
		return 0, ErrHeadUnknown
	}
	return state.nonces[addr], nil
}

func (o *testOracle) AccountBalance(addr common.Address, head common.Hash) (*uint256.Int, error) {
	state, ok := o.heads[head]
	if !ok {
		return nil, ErrHeadUnknown
	}
	if balance, ok := state.balances[addr]; ok {
		return balance.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

func (o *testOracle) BaseFee(head common.Hash) (*big.Int, error) {
	state, ok := o.heads[head]
	if !ok {
		return nil, ErrHeadUnknown
	}
	return state.baseFee, nil
}

// scriptedExecutor fails selected hashes and defers the rest to the inner
// executor.
type scriptedExecutor struct {
	inner Executor
	fail  map[common.Hash]bool
}

func (e *scriptedExecutor) DryRun(tx *types.Transaction, state *Sandbox, header *types.Header) (uint64, error) {
	if e.fail[tx.Hash()] {
		return 0, ErrVMExec
	}
	return e.inner.DryRun(tx, state, header)
}

// testEnv bundles a pool with its oracle, clock and funded accounts.
type testEnv struct {
	t      *testing.T
	pool   *TxPool
	oracle *testOracle
	clock  *mockable.Clock
	head   *types.Header
	keys   []*ecdsa.PrivateKey
}

const testBalance = params.Ether // plenty for a handful of transfers

func testHeader(number int64, baseFee *big.Int) *types.Header {
	return &types.Header{
		Number:   big.NewInt(number),
		GasLimit: 30_000_000,
		Time:     uint64(number) * 12,
		BaseFee:  baseFee,
	}
}

// newTestEnv builds a pool over a single funded head. Accounts are created
// for the requested number of keys, each holding testBalance with nonce 0.
func newTestEnv(t *testing.T, config Config, chainconfig *params.ChainConfig, baseFee *big.Int, nkeys int) *testEnv {
	t.Helper()

	oracle := newTestOracle()
	head := testHeader(1, baseFee)
	oracle.addHead(head.Hash(), baseFee)

	keys := make([]*ecdsa.PrivateKey, nkeys)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		oracle.setAccount(head.Hash(), crypto.PubkeyToAddress(key.PublicKey), 0, uint256.NewInt(testBalance))
	}
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1700000000, 0))

	pool := New(config, chainconfig, oracle, nil, clock)
	require.True(t, pool.SmartHead(head))
	t.Cleanup(pool.Close)

	return &testEnv{t: t, pool: pool, oracle: oracle, clock: clock, head: head, keys: keys}
}

func (env *testEnv) addr(i int) common.Address {
	return crypto.PubkeyToAddress(env.keys[i].PublicKey)
}

// dynamicTx signs a value transfer with the given fee parameters.
func (env *testEnv) dynamicTx(key int, nonce uint64, tip, feeCap int64) *types.Transaction {
	env.t.Helper()
	to := common.Address{0xde, 0xad}
	tx, err := types.SignNewTx(env.keys[key], types.LatestSigner(testChainConfig), &types.DynamicFeeTx{
		ChainID:   testChainConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       params.TxGas,
		To:        &to,
		Value:     common.Big0,
	})
	require.NoError(env.t, err)
	return tx
}

// legacyTx signs a pre-London value transfer.
func (env *testEnv) legacyTx(key int, nonce uint64, gasPrice int64, value *big.Int) *types.Transaction {
	env.t.Helper()
	to := common.Address{0xde, 0xad}
	tx, err := types.SignNewTx(env.keys[key], types.LatestSigner(preLondonChainConfig), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(gasPrice),
		Gas:      params.TxGas,
		To:       &to,
		Value:    value,
	})
	require.NoError(env.t, err)
	return tx
}

// add pushes transactions through the façade and requires per-item success.
func (env *testEnv) add(info string, txs ...*types.Transaction) {
	env.t.Helper()
	for _, err := range env.pool.Add(txs, info) {
		require.NoError(env.t, err)
	}
	env.check()
}

// check re-runs the debug invariant verifier.
func (env *testEnv) check() {
	env.t.Helper()
	require.NoError(env.t, env.pool.verify())
}

// item fetches a live or disposed item by hash, failing the test if unknown.
func (env *testEnv) item(tx *types.Transaction) *Item {
	env.t.Helper()
	it, err := env.pool.GetItem(tx.Hash())
	require.NoError(env.t, err)
	return it
}

// newTestEnvPreLondon is newTestEnv against a chain that has not activated
// London yet: no base fee, legacy pricing.
func newTestEnvPreLondon(t *testing.T, config Config, nkeys int) *testEnv {
	t.Helper()

	oracle := newTestOracle()
	head := testHeader(1, nil)
	oracle.addHead(head.Hash(), nil)

	keys := make([]*ecdsa.PrivateKey, nkeys)
	for i := range keys {
		keys[i] = newKey(t)
		oracle.setAccount(head.Hash(), crypto.PubkeyToAddress(keys[i].PublicKey), 0, uint256.NewInt(testBalance))
	}
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1700000000, 0))

	pool := New(config, preLondonChainConfig, oracle, nil, clock)
	require.True(t, pool.SmartHead(head))
	t.Cleanup(pool.Close)

	return &testEnv{t: t, pool: pool, oracle: oracle, clock: clock, head: head, keys: keys}
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// signedTransfer signs a standalone transfer outside a testEnv.
func signedTransfer(t *testing.T, key *ecdsa.PrivateKey, nonce uint64, tip, feeCap int64) *types.Transaction {
	t.Helper()
	to := common.Address{0xde, 0xad}
	tx, err := types.SignNewTx(key, types.LatestSigner(testChainConfig), &types.DynamicFeeTx{
		ChainID:   testChainConfig.ChainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(tip),
		GasFeeCap: big.NewInt(feeCap),
		Gas:       params.TxGas,
		To:        &to,
		Value:     common.Big0,
	})
	require.NoError(t, err)
	return tx
}

func uint256FromInt(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// common256 builds a distinct hash from a small integer.
func common256(i int) common.Hash {
	return common.BytesToHash([]byte{byte(i)})
}

// stagedOnlyConfig keeps the packer from selecting anything by shrinking the
// block gas target below a single transfer, so promotions stop at staged.
func stagedOnlyConfig() Config {
	config := DefaultConfig
	config.TrgGasLimit = 1
	config.MaxGasLimit = 1
	return config
}
