// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
//
// This file is a derived work, based on the go-ethereum library whose original
// notices appear below.
//
// It is distributed under a license compatible with the licensing terms of the
// original code from which it is derived.
// **********
// Copyright 2015 The go-ethereum Authors
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
	"container/heap"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// packResult is the outcome of one packer pass: the ordered packed list with
// its cumulative gas and miner profit.
type packResult struct {
	items   []*Item
	gasUsed uint64
	profit  *uint256.Int
}

// packFront is one sender's queue of staged items in ascending nonce order.
// Only the front item is executable; committing it exposes the next.
type packFront struct {
	queue []*Item
}

// packHeap is a max-heap of sender fronts keyed by the front item's effective
// tip, ties broken by earlier arrival. Highest paying executable transaction
// first, like the miner's price-and-nonce ordering.
type packHeap []*packFront

func (h packHeap) Len() int { return len(h) }

func (h packHeap) Less(i, j int) bool {
	a, b := h[i].queue[0], h[j].queue[0]
	if c := a.effTip.Cmp(b.effTip); c != 0 {
		return c > 0
	}
	return a.seq < b.seq
}

func (h packHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *packHeap) Push(x interface{}) {
	*h = append(*h, x.(*packFront))
}

func (h *packHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// pack rebuilds the packed bucket from the current staged set. Previous
// selections are first rolled back to staged, so a second run against an
// unchanged pool reproduces the identical ordered list.
//
// Each candidate is dry-run against a copy-on-write sandbox seeded from the
// head's post-state. A successful run commits the item; an execution failure
// disposes it (and, to keep the sender's nonce run gapless, everything above
// it). The pass is the pool's only suspension region: it checks for a queued
// mutation at every dry-run boundary and rolls back if one is waiting.
func (p *TxPool) pack() {
	start := time.Now()
	p.unpack()
	if p.head == nil {
		return
	}
	limit := p.config.TrgGasLimit
	if p.config.Flags.Has(PackItemsMaxGasLimit) {
		limit = p.config.MaxGasLimit
	}
	header := p.nextHeader(limit)
	sandbox := newSandbox(p.oracle, p.head.Hash())

	fronts := make(packHeap, 0, len(p.store.senders))
	for _, addr := range p.store.senderAddrs() {
		var queue []*Item
		for _, it := range p.store.senderItems(addr) {
			if it.status != StatusStaged {
				break
			}
			queue = append(queue, it)
		}
		if len(queue) > 0 {
			fronts = append(fronts, &packFront{queue: queue})
		}
	}
	heap.Init(&fronts)

	for fronts.Len() > 0 {
		if p.interrupt.Load() > 0 {
			log.Trace("Packing interrupted, rolling back", "selected", len(p.packed.items))
			p.unpack()
			return
		}
		front := fronts[0]
		it := front.queue[0]

		// No room for this front in the remaining block space.
		if it.tx.Gas() > limit-p.packed.gasUsed {
			if p.config.Flags.Has(PackItemsTryHarder) {
				heap.Pop(&fronts)
				continue
			}
			break
		}
		gasUsed, err := p.executor.DryRun(it.tx, sandbox, header)
		if err != nil {
			log.Debug("Dry run failed, dropping sender tail", "hash", it.id, "sender", it.sender, "err", err)
			cascaded, _ := p.store.disposeSenderFrom(it.sender, it.Nonce()+1, RejectNonceGap)
			p.counters.impliedEvictions += int64(len(cascaded))
			impliedEvictionMeter.Mark(int64(len(cascaded)))
			if evicted := p.store.dispose(it, RejectVMError); evicted != nil {
				overflowedMeter.Mark(1)
			}
			heap.Pop(&fronts)
			continue
		}
		it.gasUsed = gasUsed
		p.store.reassign(it, StatusPacked)
		p.packed.items = append(p.packed.items, it)
		p.packed.gasUsed += gasUsed

		if tip, overflow := uint256.FromBig(it.effTip); !overflow && it.effTip.Sign() > 0 {
			reward := new(uint256.Int).Mul(tip, uint256.NewInt(gasUsed))
			p.packed.profit.Add(p.packed.profit, reward)
		}
		front.queue = front.queue[1:]
		if len(front.queue) == 0 {
			heap.Pop(&fronts)
		} else {
			heap.Fix(&fronts, 0)
		}
	}
	packGasGauge.Update(int64(p.packed.gasUsed))
	packTimer.UpdateSince(start)
}

// unpack rolls the packed bucket back to staged and clears the pack result.
// It sweeps the status index rather than the last result so that items moved
// in through reassign are caught too.
func (p *TxPool) unpack() {
	for _, id := range p.store.status[StatusPacked].ToSlice() {
		p.store.reassign(p.store.items[id], StatusStaged)
	}
	p.packed = packResult{profit: uint256.NewInt(0)}
}

// nextHeader synthesizes the header the next block would carry, which is what
// dry-runs and assembly are judged against.
func (p *TxPool) nextHeader(gasLimit uint64) *types.Header {
	timestamp := uint64(p.clock.Time().Unix())
	if p.head.Time >= timestamp {
		timestamp = p.head.Time
	}
	header := &types.Header{
		ParentHash: p.head.Hash(),
		Coinbase:   p.head.Coinbase,
		Number:     new(big.Int).Add(p.head.Number, common.Big1),
		GasLimit:   gasLimit,
		Time:       timestamp,
	}
	if p.store.baseFee != nil {
		header.BaseFee = new(big.Int).Set(p.store.baseFee)
	}
	return header
}
