// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"encoding/binary"
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
)

// StateOracle provides read-only account state at a given head. The pool never
// writes through it; the packer reads it once per pass to seed its sandbox.
type StateOracle interface {
	// HasState reports whether the oracle can resolve the given head.
	HasState(head common.Hash) bool

	// AccountNonce returns the account nonce at the given head.
	AccountNonce(addr common.Address, head common.Hash) (uint64, error)

	// AccountBalance returns the account balance at the given head.
	AccountBalance(addr common.Address, head common.Hash) (*uint256.Int, error)

	// BaseFee returns the base fee at the given head, nil before London.
	BaseFee(head common.Hash) (*big.Int, error)
}

// SignatureVerifier recovers the sender of a transaction, failing fast on
// malformed signatures.
type SignatureVerifier interface {
	Recover(tx *types.Transaction) (common.Address, error)
}

// Executor dry-runs a transaction against the packer's sandbox, returning the
// gas it consumed. A non-nil error marks the transaction unpackable at the
// current head.
type Executor interface {
	DryRun(tx *types.Transaction, state *Sandbox, header *types.Header) (gasUsed uint64, err error)
}

// NewItemsEvent is posted on the pool's feed after a batch add goes live.
type NewItemsEvent struct {
	Items []*Item
}

// signerVerifier is the default SignatureVerifier: a chain signer fronted by a
// bounded cache of recovered senders, so repeated adds of the same hash (peer
// rebroadcasts, resurrections) skip the ecrecover.
type signerVerifier struct {
	signer types.Signer
	cache  *lru.Cache
}

const senderCacheSize = 4096

// NewSignerVerifier wraps a chain signer with sender-recovery caching.
func NewSignerVerifier(signer types.Signer) SignatureVerifier {
	cache, _ := lru.New(senderCacheSize)
	return &signerVerifier{signer: signer, cache: cache}
}

func (v *signerVerifier) Recover(tx *types.Transaction) (common.Address, error) {
	if cached, ok := v.cache.Get(tx.Hash()); ok {
		return cached.(common.Address), nil
	}
	addr, err := types.Sender(v.signer, tx)
	if err != nil {
		return common.Address{}, err
	}
	v.cache.Add(tx.Hash(), addr)
	return addr, nil
}

// CachedOracle is a read-through cache in front of a StateOracle. Reconcile
// walks hit the oracle once per sender per head; everything after that is
// served from memory.
type CachedOracle struct {
	backend StateOracle
	cache   *fastcache.Cache
}

const oracleCacheBytes = 16 * 1024 * 1024

// NewCachedOracle wraps the given oracle with an in-memory read cache.
func NewCachedOracle(backend StateOracle) *CachedOracle {
	return &CachedOracle{
		backend: backend,
		cache:   fastcache.New(oracleCacheBytes),
	}
}

func oracleKey(tag byte, addr common.Address, head common.Hash) []byte {
	key := make([]byte, 1+common.AddressLength+common.HashLength)
	key[0] = tag
	copy(key[1:], addr.Bytes())
	copy(key[1+common.AddressLength:], head.Bytes())
	return key
}

func (o *CachedOracle) HasState(head common.Hash) bool {
	return o.backend.HasState(head)
}

func (o *CachedOracle) AccountNonce(addr common.Address, head common.Hash) (uint64, error) {
	key := oracleKey('n', addr, head)
	if enc := o.cache.Get(nil, key); len(enc) == 8 {
		return binary.BigEndian.Uint64(enc), nil
	}
	nonce, err := o.backend.AccountNonce(addr, head)
	if err != nil {
		return 0, err
	}
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], nonce)
	o.cache.Set(key, enc[:])
	return nonce, nil
}

func (o *CachedOracle) AccountBalance(addr common.Address, head common.Hash) (*uint256.Int, error) {
	key := oracleKey('b', addr, head)
	if enc := o.cache.Get(nil, key); len(enc) == 32 {
		return new(uint256.Int).SetBytes32(enc), nil
	}
	balance, err := o.backend.AccountBalance(addr, head)
	if err != nil {
		return nil, err
	}
	enc := balance.Bytes32()
	o.cache.Set(key, enc[:])
	return balance.Clone(), nil
}

func (o *CachedOracle) BaseFee(head common.Hash) (*big.Int, error) {
	return o.backend.BaseFee(head)
}
