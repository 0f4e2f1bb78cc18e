// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
//
// This file is a derived work, based on the go-ethereum library whose original
// notices appear below.
//
// It is distributed under a license compatible with the licensing terms of the
// original code from which it is derived.
// **********
// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package txpool

import (
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
)

// ErrUnknownItem is returned by GetItem when the id is neither live nor in
// the waste basket.
var ErrUnknownItem = errors.New("unknown item")

// TxPool is the staging area between transaction producers and block
// assembly. It accepts candidate transactions, keeps them indexed along
// several independent axes, promotes them through the lifecycle buckets and
// maintains a packed set ready for inclusion in the next block.
//
// All mutations funnel through a single writer lock. Add, DisposeItems,
// SmartHead, TriggerReorg and the base-fee, price-floor and flag setters run
// the buckets engine and the packer before they return (given a head the
// oracle can resolve), so readers observe a fully reconciled pool after them.
// Reassign, FlushRejects and the lifetime, price-bump and reject-capacity
// setters run neither pass. A pack that yields to a queued mutation is rolled
// back, leaving the packed bucket empty until the next pass.
type TxPool struct {
	config      Config
	chainconfig *params.ChainConfig
	signer      types.Signer
	verifier    SignatureVerifier
	oracle      StateOracle
	executor    Executor
	clock       *mockable.Clock

	mu        sync.RWMutex
	interrupt atomic.Int32 // queued mutations preempt a running pack

	head   *types.Header
	store  *store
	locals mapset.Set[common.Address]
	packed packResult

	counters counters
	txFeed   event.Feed
	scope    event.SubscriptionScope
}

// New creates a transaction pool reading chain state through the given oracle
// and dry-running through the given executor. A nil executor falls back to
// intrinsic-gas accounting; a nil clock means wall time.
func New(config Config, chainconfig *params.ChainConfig, oracle StateOracle, executor Executor, clock *mockable.Clock) *TxPool {
	config = (&config).sanitize()
	signer := types.LatestSigner(chainconfig)
	if executor == nil {
		executor = NewIntrinsicExecutor(chainconfig)
	}
	if clock == nil {
		clock = &mockable.Clock{}
	}
	pool := &TxPool{
		config:      config,
		chainconfig: chainconfig,
		signer:      signer,
		verifier:    NewSignerVerifier(signer),
		oracle:      NewCachedOracle(oracle),
		executor:    executor,
		clock:       clock,
		store:       newStore(config.MaxRejects),
		locals:      mapset.NewThreadUnsafeSet[common.Address](),
		packed:      packResult{profit: uint256.NewInt(0)},
	}
	for _, addr := range config.Locals {
		pool.locals.Add(addr)
	}
	return pool
}

// Close terminates event subscriptions. The pool itself holds no goroutines.
func (p *TxPool) Close() {
	p.scope.Close()
}

// preempt flags a queued mutation so a running pack yields at its next
// dry-run boundary, then takes the writer lock.
func (p *TxPool) preempt() {
	p.interrupt.Add(1)
	p.mu.Lock()
	p.interrupt.Add(-1)
}

// Add accepts a batch of candidate transactions with an opaque info
// annotation. Per-item failures are reported in the matching error slot
// without aborting the rest, and recorded in the waste basket except for a
// duplicate of a live item and a failed oracle read; an unresolvable head
// rejects the whole batch with no state change. An empty batch is the
// idiomatic way to force a maintenance pass.
func (p *TxPool) Add(txs types.Transactions, info string) []error {
	p.preempt()

	errs := make([]error, len(txs))
	if p.head == nil || !p.oracle.HasState(p.head.Hash()) {
		for i := range errs {
			errs[i] = ErrHeadUnknown
		}
		p.mu.Unlock()
		return errs
	}
	var added []*Item
	for i, tx := range txs {
		var it *Item
		if it, errs[i] = p.addTx(tx, info); errs[i] == nil {
			added = append(added, it)
		}
	}
	p.reconcile()
	p.pack()
	p.mu.Unlock()

	if len(added) > 0 {
		p.txFeed.Send(NewItemsEvent{Items: added})
	}
	return errs
}

// addTx validates and inserts a single transaction. Failures are pushed into
// the waste basket under the matching reason before the error is returned; a
// duplicate of a live item and an oracle read error get no basket entry.
func (p *TxPool) addTx(tx *types.Transaction, info string) (*Item, error) {
	if p.store.get(tx.Hash()) != nil {
		return nil, ErrAlreadyKnown
	}
	now := p.clock.Time()

	// Resurrection: a basket entry with the same id hands its annotation to
	// the fresh item and guarantees the timestamps stay strictly ordered.
	if old := p.store.basket.take(tx.Hash()); old != nil {
		info = old.info
		if !now.After(old.timeStamp) {
			now = old.timeStamp.Add(time.Nanosecond)
		}
	}
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType:
	default:
		return nil, p.rejectNew(newItem(tx, common.Address{}, info, false, now), RejectTxType, ErrTxTypeNotSupported)
	}
	sender, err := p.verifier.Recover(tx)
	if err != nil {
		log.Trace("Rejected transaction with invalid signature", "hash", tx.Hash(), "err", err)
		return nil, p.rejectNew(newItem(tx, common.Address{}, info, false, now), RejectInvalidSender, ErrInvalidSender)
	}
	it := newItem(tx, sender, info, p.locals.Contains(sender), now)

	intrinsic, err := core.IntrinsicGas(tx.Data(), tx.AccessList(), tx.To() == nil, true, true,
		p.chainconfig.IsShanghai(p.head.Number, p.head.Time))
	if err != nil || tx.Gas() < intrinsic {
		return nil, p.rejectNew(it, RejectIntrinsicGas, ErrIntrinsicGas)
	}
	head := p.head.Hash()
	nonce, err := p.oracle.AccountNonce(sender, head)
	if err != nil {
		return nil, err
	}
	if tx.Nonce() < nonce {
		return nil, p.rejectNew(it, RejectNonceTooLow, ErrNonceTooLow)
	}
	balance, err := p.oracle.AccountBalance(sender, head)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(it.cost) < 0 {
		return nil, p.rejectNew(it, RejectInsufficientFunds, ErrInsufficientFunds)
	}
	res, err := p.store.insert(it, p.config.PriceBump)
	switch {
	case errors.Is(err, ErrNonceGap):
		return nil, p.rejectNew(it, RejectNonceGap, err)
	case errors.Is(err, ErrUnderpriced):
		underpricedMeter.Mark(1)
		return nil, p.rejectNew(it, RejectUnderpriced, err)
	case err != nil:
		return nil, err
	}
	if res.replaced != nil {
		replacedMeter.Mark(1)
		log.Trace("Superseded transaction", "hash", res.replaced.id, "by", it.id, "sender", sender, "nonce", it.Nonce())
	}
	if n := len(res.cascaded); n > 0 {
		p.counters.impliedEvictions += int64(n)
		impliedEvictionMeter.Mark(int64(n))
	}
	overflowedMeter.Mark(int64(len(res.overflowed)))
	return it, nil
}

// rejectNew records a never-live item in the waste basket under the given
// reason and hands back the caller-facing error.
func (p *TxPool) rejectNew(it *Item, reason RejectReason, err error) error {
	it.reject = reason
	if evicted := p.store.basket.put(it); evicted != nil {
		overflowedMeter.Mark(1)
	}
	p.counters.rejects++
	rejectMeter.Mark(1)
	return err
}

// DisposeItems moves the given live items to the waste basket, dragging each
// sender's higher nonces along as implied evictions. Unknown or already
// disposed items are skipped.
func (p *TxPool) DisposeItems(items ...*Item) int {
	p.preempt()
	defer p.mu.Unlock()

	disposed := 0
	for _, it := range items {
		if it == nil || p.store.get(it.id) == nil {
			continue
		}
		cascaded, _ := p.store.disposeSenderFrom(it.sender, it.Nonce()+1, RejectNonceGap)
		p.counters.impliedEvictions += int64(len(cascaded))
		impliedEvictionMeter.Mark(int64(len(cascaded)))
		if evicted := p.store.dispose(it, RejectUser); evicted != nil {
			overflowedMeter.Mark(1)
		}
		disposed += 1 + len(cascaded)
	}
	if p.head != nil && p.oracle.HasState(p.head.Hash()) {
		p.reconcile()
		p.pack()
	}
	return disposed
}

// FlushRejects drops all waste-basket entries and reports how many were held.
func (p *TxPool) FlushRejects() int {
	p.preempt()
	defer p.mu.Unlock()
	return p.store.flushRejects()
}

// Reassign moves an item to an explicit lifecycle bucket without consulting
// the classifier. Administrative; the next reconcile or pack may move it
// again.
func (p *TxPool) Reassign(it *Item, status Status) error {
	p.preempt()
	defer p.mu.Unlock()
	if it == nil || p.store.get(it.id) == nil {
		return ErrUnknownItem
	}
	p.store.reassign(it, status)
	return nil
}

// SmartHead points the pool at a new canonical head. The head is accepted
// only if the state oracle can serve it; on acceptance the pool repriced,
// reconciles and repacks before returning. Reports whether the head was
// taken.
func (p *TxPool) SmartHead(header *types.Header) bool {
	p.preempt()
	defer p.mu.Unlock()

	if header == nil || !p.oracle.HasState(header.Hash()) {
		log.Warn("Ignoring head with unknown state", "head", header)
		return false
	}
	baseFee, err := p.oracle.BaseFee(header.Hash())
	if err != nil {
		log.Warn("Ignoring head without base fee", "hash", header.Hash(), "err", err)
		return false
	}
	p.head = header
	p.store.reprice(baseFee)
	p.reconcile()
	p.pack()
	log.Debug("Transaction pool head updated", "number", header.Number, "hash", header.Hash())
	return true
}

// TriggerReorg forces a full reconcile and repack without a head change.
func (p *TxPool) TriggerReorg() {
	p.preempt()
	defer p.mu.Unlock()
	if p.head == nil || !p.oracle.HasState(p.head.Hash()) {
		return
	}
	p.reconcile()
	p.pack()
}

// AssembleBlock builds a block from the current packed set. The header's
// gas used is the accumulated dry-run gas of the packed list.
func (p *TxPool) AssembleBlock() (*types.Block, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.head == nil {
		return nil, ErrHeadUnknown
	}
	limit := p.config.TrgGasLimit
	if p.config.Flags.Has(PackItemsMaxGasLimit) {
		limit = p.config.MaxGasLimit
	}
	header := p.nextHeader(limit)
	header.GasUsed = p.packed.gasUsed
	txs := make(types.Transactions, 0, len(p.packed.items))
	for _, it := range p.packed.items {
		txs = append(txs, it.tx)
	}
	return types.NewBlock(header, txs, nil, nil, trie.NewStackTrie(nil)), nil
}

// GetItem returns the item with the given id from the live store or, failing
// that, the waste basket.
func (p *TxPool) GetItem(id common.Hash) (*Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if it := p.store.get(id); it != nil {
		return it, nil
	}
	if it := p.store.basket.get(id); it != nil {
		return it, nil
	}
	return nil, ErrUnknownItem
}

// Items returns live items in arrival order, optionally filtered to a subset
// of lifecycle buckets.
func (p *TxPool) Items(statuses ...Status) []*Item {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var filter *[numStatuses]bool
	if len(statuses) > 0 {
		filter = new([numStatuses]bool)
		for _, s := range statuses {
			filter[s] = true
		}
	}
	var out []*Item
	p.store.eachArrival(func(it *Item) bool {
		if filter == nil || filter[it.status] {
			out = append(out, it)
		}
		return true
	})
	return out
}

// Rejects returns the waste-basket contents, oldest first.
func (p *TxPool) Rejects() []*Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Item, 0, p.store.basket.len())
	p.store.basket.each(func(it *Item) bool {
		out = append(out, it)
		return true
	})
	return out
}

// Stats returns the pool census, bucket by bucket.
func (p *TxPool) Stats() Counts {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Counts{
		Pending:  p.store.statusCount(StatusPending),
		Staged:   p.store.statusCount(StatusStaged),
		Packed:   p.store.statusCount(StatusPacked),
		Total:    p.store.count(),
		Disposed: p.store.basket.len(),
	}
}

// GasTotals returns the cumulative dry-run gas of the packed list.
func (p *TxPool) GasTotals() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.packed.gasUsed
}

// Profitability returns the packed list's accumulated miner reward,
// effective tip times gas used over every packed item.
func (p *TxPool) Profitability() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.packed.profit.Clone()
}

// Evictions returns how many items were zombified and how many were dropped
// as a consequence of a lower nonce leaving.
func (p *TxPool) Evictions() (evictions, implied int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters.evictions, p.counters.impliedEvictions
}

// Locals returns the configured local accounts.
func (p *TxPool) Locals() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locals.ToSlice()
}

// SubscribeNewItems registers for events announcing freshly accepted items.
func (p *TxPool) SubscribeNewItems(ch chan<- NewItemsEvent) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

// SetBaseFee re-anchors effective tips to the given base fee and rebuilds the
// buckets and the packed set around the fresh ranking.
func (p *TxPool) SetBaseFee(baseFee *big.Int) {
	p.preempt()
	defer p.mu.Unlock()
	p.store.reprice(baseFee)
	if p.head != nil && p.oracle.HasState(p.head.Hash()) {
		p.reconcile()
		p.pack()
	}
}

// SetLifetime updates the zombify threshold.
func (p *TxPool) SetLifetime(d time.Duration) {
	p.preempt()
	defer p.mu.Unlock()
	if d < 1 {
		log.Warn("Ignoring invalid txpool lifetime", "provided", d)
		return
	}
	p.config.Lifetime = d
}

// SetPriceBump updates the supersede threshold percentage.
func (p *TxPool) SetPriceBump(bump uint64) {
	p.preempt()
	defer p.mu.Unlock()
	if bump < 1 {
		log.Warn("Ignoring invalid txpool price bump", "provided", bump)
		return
	}
	p.config.PriceBump = bump
}

// SetMinPreLondonGasPrice updates the pre-London tip floor and rebuckets.
func (p *TxPool) SetMinPreLondonGasPrice(price *big.Int) {
	p.preempt()
	defer p.mu.Unlock()
	if price == nil || price.Sign() < 1 {
		log.Warn("Ignoring invalid txpool price floor", "provided", price)
		return
	}
	p.config.MinPreLondonGasPrice = new(big.Int).Set(price)
	if p.head != nil && p.oracle.HasState(p.head.Hash()) {
		p.reconcile()
		p.pack()
	}
}

// SetFlags swaps the pool's behaviour flags and rebuckets under the new ones.
func (p *TxPool) SetFlags(flags Flags) {
	p.preempt()
	defer p.mu.Unlock()
	p.config.Flags = flags
	if p.head != nil && p.oracle.HasState(p.head.Hash()) {
		p.reconcile()
		p.pack()
	}
}

// SetMaxRejects resizes the waste basket, dropping the oldest overflow.
func (p *TxPool) SetMaxRejects(n int) {
	p.preempt()
	defer p.mu.Unlock()
	if n < 1 {
		log.Warn("Ignoring invalid txpool reject capacity", "provided", n)
		return
	}
	p.config.MaxRejects = n
	evicted := p.store.basket.setCap(n)
	overflowedMeter.Mark(int64(len(evicted)))
}

// classifyContext snapshots everything the classifier predicates judge
// against at the current head.
func (p *TxPool) classifyContext() *classifyCtx {
	london := p.chainconfig.IsLondon(p.head.Number)
	minTip := p.config.MinPreLondonGasPrice
	if london {
		minTip = p.config.MinPriorityFee
	}
	return &classifyCtx{
		baseFee:  p.store.baseFee,
		london:   london,
		minTip:   minTip,
		lifetime: p.config.Lifetime,
		flags:    p.config.Flags,
		now:      p.clock.Time(),
	}
}
