// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Status is the lifecycle bucket an item currently lives in. Items enter the
// pool as pending, are promoted to staged once they are executable against the
// current head, and end up packed once the packer has confirmed they fit into
// the next block.
type Status uint8

const (
	StatusPending Status = iota
	StatusStaged
	StatusPacked

	numStatuses = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStaged:
		return "staged"
	case StatusPacked:
		return "packed"
	default:
		return "unknown"
	}
}

// RejectReason records why an item was moved to the waste basket. It is only
// meaningful while the item sits in the basket.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectUser
	RejectReplaced
	RejectNonceGap
	RejectNonceTooLow
	RejectExpired
	RejectUnderpriced
	RejectInvalidSender
	RejectInsufficientFunds
	RejectIntrinsicGas
	RejectTxType
	RejectVMError
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectUser:
		return "user"
	case RejectReplaced:
		return "replaced"
	case RejectNonceGap:
		return "nonceGap"
	case RejectNonceTooLow:
		return "nonceTooLow"
	case RejectExpired:
		return "expired"
	case RejectUnderpriced:
		return "underpriced"
	case RejectInvalidSender:
		return "invalidSender"
	case RejectInsufficientFunds:
		return "insufficientFunds"
	case RejectIntrinsicGas:
		return "intrinsicGas"
	case RejectTxType:
		return "txTypeNotSupported"
	case RejectVMError:
		return "vmError"
	default:
		return "unknown"
	}
}

// Item is the unit record of the pool: one transaction plus the metadata
// derived at acceptance time. Everything except status, reject, the cached
// effective tip and the packer's gas figure is immutable after insertion.
type Item struct {
	id     common.Hash
	tx     *types.Transaction
	sender common.Address
	cost   *uint256.Int // gasLimit * feeCap + value, fixed at acceptance

	timeStamp time.Time
	seq       uint64 // store-assigned arrival sequence, breaks timestamp ties

	status Status
	reject RejectReason
	info   string
	local  bool

	// effTip is the miner reward per gas at the base fee the store was last
	// repriced with. The rank index orders by it, so it only ever changes
	// inside a full reprice.
	effTip *big.Int

	// gasUsed is the dry-run result from the packer. Valid only while packed.
	gasUsed uint64
}

func newItem(tx *types.Transaction, sender common.Address, info string, local bool, now time.Time) *Item {
	cost, _ := uint256.FromBig(tx.Cost())
	return &Item{
		id:        tx.Hash(),
		tx:        tx,
		sender:    sender,
		cost:      cost,
		timeStamp: now,
		status:    StatusPending,
		info:      info,
		local:     local,
	}
}

// ID returns the transaction hash the item is content-addressed by.
func (it *Item) ID() common.Hash { return it.id }

// Tx returns the wrapped transaction.
func (it *Item) Tx() *types.Transaction { return it.tx }

// Sender returns the address recovered from the signature at acceptance.
func (it *Item) Sender() common.Address { return it.sender }

// Nonce is a shortcut for the wrapped transaction's nonce.
func (it *Item) Nonce() uint64 { return it.tx.Nonce() }

// Status returns the lifecycle bucket the item currently lives in.
func (it *Item) Status() Status { return it.status }

// Reject returns why the item was disposed. Valid only in the waste basket.
func (it *Item) Reject() RejectReason { return it.reject }

// Info returns the opaque producer-supplied annotation.
func (it *Item) Info() string { return it.info }

// Local reports whether the item came from a configured local account.
func (it *Item) Local() bool { return it.local }

// Timestamp returns the wall clock at acceptance (reset on resurrection).
func (it *Item) Timestamp() time.Time { return it.timeStamp }

// Cost returns gasLimit*feeCap+value, the maximum the sender can be charged.
func (it *Item) Cost() *uint256.Int { return it.cost }

// EffectiveTip returns the miner reward per gas at the store's current base
// fee. Negative post-London when the fee cap is below the base fee.
func (it *Item) EffectiveTip() *big.Int { return it.effTip }

// GasUsed returns the gas the packer's dry-run charged. Valid only while the
// item is packed.
func (it *Item) GasUsed() uint64 { return it.gasUsed }

// reprice recomputes the cached effective tip against the given base fee.
// A nil base fee selects the pre-London interpretation (plain gas price).
func (it *Item) reprice(baseFee *big.Int) {
	it.effTip = it.tx.EffectiveGasTipValue(baseFee)
}
