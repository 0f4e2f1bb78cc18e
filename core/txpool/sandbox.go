// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Sandbox is the copy-on-write account overlay the packer dry-runs against.
// It starts empty and faults accounts in from the state oracle at the head it
// was created for; writes land in the overlay only. The packer owns the
// sandbox exclusively for the duration of a pass.
type Sandbox struct {
	oracle StateOracle
	head   common.Hash

	accounts map[common.Address]*sandboxAccount
}

type sandboxAccount struct {
	nonce   uint64
	balance *uint256.Int
}

func newSandbox(oracle StateOracle, head common.Hash) *Sandbox {
	return &Sandbox{
		oracle:   oracle,
		head:     head,
		accounts: make(map[common.Address]*sandboxAccount),
	}
}

func (s *Sandbox) account(addr common.Address) (*sandboxAccount, error) {
	if acc, ok := s.accounts[addr]; ok {
		return acc, nil
	}
	nonce, err := s.oracle.AccountNonce(addr, s.head)
	if err != nil {
		return nil, err
	}
	balance, err := s.oracle.AccountBalance(addr, s.head)
	if err != nil {
		return nil, err
	}
	acc := &sandboxAccount{nonce: nonce, balance: balance.Clone()}
	s.accounts[addr] = acc
	return acc, nil
}

// Nonce returns the account nonce as seen through the overlay.
func (s *Sandbox) Nonce(addr common.Address) (uint64, error) {
	acc, err := s.account(addr)
	if err != nil {
		return 0, err
	}
	return acc.nonce, nil
}

// Balance returns a copy of the account balance as seen through the overlay.
func (s *Sandbox) Balance(addr common.Address) (*uint256.Int, error) {
	acc, err := s.account(addr)
	if err != nil {
		return nil, err
	}
	return acc.balance.Clone(), nil
}

// SetNonce updates the account nonce in the overlay.
func (s *Sandbox) SetNonce(addr common.Address, nonce uint64) error {
	acc, err := s.account(addr)
	if err != nil {
		return err
	}
	acc.nonce = nonce
	return nil
}

// SubBalance deducts amount from the account, failing on overdraft.
func (s *Sandbox) SubBalance(addr common.Address, amount *uint256.Int) error {
	acc, err := s.account(addr)
	if err != nil {
		return err
	}
	if acc.balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	acc.balance.Sub(acc.balance, amount)
	return nil
}

// AddBalance credits amount to the account.
func (s *Sandbox) AddBalance(addr common.Address, amount *uint256.Int) error {
	acc, err := s.account(addr)
	if err != nil {
		return err
	}
	acc.balance.Add(acc.balance, amount)
	return nil
}

// IntrinsicExecutor is a conservative Executor that charges exactly the
// intrinsic gas of a transaction and applies the nonce and balance effects to
// the sandbox. It serves as the default when no EVM-backed executor is wired
// in, and as the deterministic executor for tests.
type IntrinsicExecutor struct {
	chainConfig *params.ChainConfig
	signer      types.Signer
}

// NewIntrinsicExecutor returns an executor charging intrinsic gas only.
func NewIntrinsicExecutor(chainConfig *params.ChainConfig) *IntrinsicExecutor {
	return &IntrinsicExecutor{
		chainConfig: chainConfig,
		signer:      types.LatestSigner(chainConfig),
	}
}

// DryRun applies the transaction's fee and nonce effects to the sandbox and
// reports its intrinsic gas as the gas used.
func (e *IntrinsicExecutor) DryRun(tx *types.Transaction, state *Sandbox, header *types.Header) (uint64, error) {
	from, err := types.Sender(e.signer, tx)
	if err != nil {
		return 0, err
	}
	nonce, err := state.Nonce(from)
	if err != nil {
		return 0, err
	}
	if tx.Nonce() < nonce {
		return 0, fmt.Errorf("account nonce %d, tx nonce %d: %w", nonce, tx.Nonce(), ErrNonceTooLow)
	}
	if tx.Nonce() > nonce {
		return 0, fmt.Errorf("account nonce %d, tx nonce %d: %w", nonce, tx.Nonce(), ErrNonceGap)
	}
	isShanghai := e.chainConfig.IsShanghai(header.Number, header.Time)
	gasUsed, err := core.IntrinsicGas(tx.Data(), tx.AccessList(), tx.To() == nil, true, true, isShanghai)
	if err != nil {
		return 0, err
	}
	if tx.Gas() < gasUsed {
		return 0, ErrIntrinsicGas
	}
	price := effectiveGasPrice(tx, header.BaseFee)
	charge, overflow := uint256.FromBig(new(big.Int).Mul(price, new(big.Int).SetUint64(gasUsed)))
	if overflow {
		return 0, ErrInsufficientFunds
	}
	value, _ := uint256.FromBig(tx.Value())
	charge.Add(charge, value)
	if err := state.SubBalance(from, charge); err != nil {
		return 0, err
	}
	if err := state.SetNonce(from, nonce+1); err != nil {
		return 0, err
	}
	if to := tx.To(); to != nil && value.Sign() > 0 {
		if err := state.AddBalance(*to, value); err != nil {
			return 0, err
		}
	}
	return gasUsed, nil
}

// effectiveGasPrice is what the sender pays per gas: min(feeCap, baseFee+tip)
// after London, the plain gas price before.
func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return tx.GasPrice()
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}
