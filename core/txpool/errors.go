// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import "errors"

var (
	// ErrAlreadyKnown is returned if a transaction is already live in the pool.
	ErrAlreadyKnown = errors.New("already known")

	// ErrInvalidSender is returned if signature recovery fails.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrUnderpriced is returned if a replacement transaction does not clear
	// the configured price bump over the item it collides with.
	ErrUnderpriced = errors.New("replacement transaction underpriced")

	// ErrNonceTooLow is returned if a transaction's nonce is below the
	// sender's on-chain account nonce at the current head.
	ErrNonceTooLow = errors.New("nonce too low")

	// ErrNonceGap is returned if accepting the transaction would leave a hole
	// in the sender's nonce sequence.
	ErrNonceGap = errors.New("nonce gap")

	// ErrInsufficientFunds is returned if the sender's balance cannot cover
	// gasLimit*feeCap+value.
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

	// ErrIntrinsicGas is returned if the gas limit is below the intrinsic cost
	// of the transaction payload.
	ErrIntrinsicGas = errors.New("intrinsic gas too low")

	// ErrTxTypeNotSupported is returned for transaction types the pool does
	// not admit.
	ErrTxTypeNotSupported = errors.New("transaction type not supported")

	// ErrHeadUnknown is returned when the state oracle cannot resolve the
	// pool's current head, which aborts whole batches with no state change.
	ErrHeadUnknown = errors.New("current head unknown to state oracle")

	// ErrVMExec is a sentinel an Executor may return for a failed dry-run.
	// The packer neither wraps nor inspects dry-run errors: any of them
	// disposes the failing item together with its sender's higher nonces, and
	// packing goes on with the other senders. The sender's next nonce is not
	// dry-run in the same pass.
	ErrVMExec = errors.New("vm execution failed")
)
