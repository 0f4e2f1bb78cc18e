// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
//
// This file is a derived work, based on the go-ethereum library whose original
// notices appear below.
//
// It is distributed under a license compatible with the licensing terms of the
// original code from which it is derived.
// **********
// Copyright 2016 The go-ethereum Authors
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
	"bytes"
	"container/list"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"
)

// senderBucket is the per-sender nonce->item mapping. Nonces are gapless from
// the lowest one present, so the sorted index doubles as the promotion walk
// order.
type senderBucket struct {
	items  map[uint64]*Item
	nonces []uint64 // ascending
	counts [numStatuses]int
}

func newSenderBucket() *senderBucket {
	return &senderBucket{items: make(map[uint64]*Item)}
}

func (b *senderBucket) get(nonce uint64) *Item {
	return b.items[nonce]
}

func (b *senderBucket) put(it *Item) {
	nonce := it.Nonce()
	if _, ok := b.items[nonce]; !ok {
		idx, _ := slices.BinarySearch(b.nonces, nonce)
		b.nonces = slices.Insert(b.nonces, idx, nonce)
	}
	b.items[nonce] = it
	b.counts[it.status]++
}

func (b *senderBucket) delete(it *Item) {
	nonce := it.Nonce()
	if _, ok := b.items[nonce]; !ok {
		return
	}
	delete(b.items, nonce)
	idx, _ := slices.BinarySearch(b.nonces, nonce)
	b.nonces = slices.Delete(b.nonces, idx, idx+1)
	b.counts[it.status]--
}

func (b *senderBucket) len() int { return len(b.items) }

func (b *senderBucket) firstNonce() uint64 { return b.nonces[0] }

func (b *senderBucket) lastNonce() uint64 { return b.nonces[len(b.nonces)-1] }

// ascend walks the bucket in increasing nonce order until fn returns false.
func (b *senderBucket) ascend(fn func(*Item) bool) {
	for _, nonce := range b.nonces {
		if !fn(b.items[nonce]) {
			return
		}
	}
}

// flatten returns the bucket contents in increasing nonce order.
func (b *senderBucket) flatten() []*Item {
	out := make([]*Item, 0, len(b.nonces))
	for _, nonce := range b.nonces {
		out = append(out, b.items[nonce])
	}
	return out
}

// rankCmp orders items by effective tip, breaking ties by sender address and
// then nonce so that traversal order is total and replay stable.
func rankCmp(a, b *Item) int {
	if c := a.effTip.Cmp(b.effTip); c != 0 {
		return c
	}
	if c := bytes.Compare(a.sender.Bytes(), b.sender.Bytes()); c != 0 {
		return c
	}
	switch {
	case a.Nonce() < b.Nonce():
		return -1
	case a.Nonce() > b.Nonce():
		return 1
	default:
		return 0
	}
}

// rankIndex keeps all live items ordered by effective tip. It is a sorted
// slice rather than a heap because the pool needs ordered traversal in both
// directions, not just extraction of the minimum.
type rankIndex struct {
	entries []*Item
}

func (r *rankIndex) insert(it *Item) {
	idx, _ := slices.BinarySearchFunc(r.entries, it, rankCmp)
	r.entries = slices.Insert(r.entries, idx, it)
}

func (r *rankIndex) remove(it *Item) {
	idx, found := slices.BinarySearchFunc(r.entries, it, rankCmp)
	if !found {
		return
	}
	r.entries = slices.Delete(r.entries, idx, idx+1)
}

func (r *rankIndex) len() int { return len(r.entries) }

// ascend walks the index cheapest tip first until fn returns false.
func (r *rankIndex) ascend(fn func(*Item) bool) {
	for _, it := range r.entries {
		if !fn(it) {
			return
		}
	}
}

// descend walks the index priciest tip first until fn returns false.
func (r *rankIndex) descend(fn func(*Item) bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if !fn(r.entries[i]) {
			return
		}
	}
}

// store is the multi-index container holding every live item of the pool. An
// item is linked into all five views at once: the id map, the arrival list,
// its sender bucket, the rank index and its status set. Mutations either fully
// succeed or leave every index untouched.
//
// The store is not safe for concurrent use; the pool serializes access.
type store struct {
	items   map[common.Hash]*Item
	arrival *list.List // of *Item, insertion == arrival order (clock is monotonic)
	elems   map[common.Hash]*list.Element
	senders map[common.Address]*senderBucket
	rank    rankIndex
	status  [numStatuses]mapset.Set[common.Hash]

	basket  *wasteBasket
	baseFee *big.Int // nil pre-London
	seq     uint64
}

func newStore(maxRejects int) *store {
	s := &store{
		items:   make(map[common.Hash]*Item),
		arrival: list.New(),
		elems:   make(map[common.Hash]*list.Element),
		senders: make(map[common.Address]*senderBucket),
		basket:  newWasteBasket(maxRejects),
	}
	for i := range s.status {
		s.status[i] = mapset.NewThreadUnsafeSet[common.Hash]()
	}
	return s
}

// get returns the live item with the given id, or nil.
func (s *store) get(id common.Hash) *Item {
	return s.items[id]
}

// count returns the number of live items.
func (s *store) count() int { return len(s.items) }

// statusCount returns the number of live items in the given bucket.
func (s *store) statusCount(status Status) int {
	return s.status[status].Cardinality()
}

// insertResult reports what an insert displaced: the superseded item, the
// higher-nonce items dropped in its wake and any basket overflow.
type insertResult struct {
	replaced   *Item
	cascaded   []*Item
	overflowed []*Item
}

// insert links a new item into all indexes. A sender+nonce collision is
// resolved through supersede-by-price against priceBump; a nonce that would
// leave a hole in the sender's sequence is refused.
func (s *store) insert(it *Item, priceBump uint64) (insertResult, error) {
	var res insertResult
	if _, ok := s.items[it.id]; ok {
		return res, ErrAlreadyKnown
	}
	if bucket, ok := s.senders[it.sender]; ok && bucket.len() > 0 {
		if old := bucket.get(it.Nonce()); old != nil {
			return s.supersede(it, old, priceBump)
		}
		if nonce := it.Nonce(); nonce != bucket.lastNonce()+1 && nonce+1 != bucket.firstNonce() {
			return res, ErrNonceGap
		}
	}
	s.link(it)
	return res, nil
}

// supersede replaces old with it if the newcomer's effective tip clears the
// configured percent bump over the incumbent's. The incumbent moves to the
// waste basket and every higher nonce of the sender is dropped with it, since
// the replacement may change what the rest of the chain can afford.
func (s *store) supersede(it, old *Item, priceBump uint64) (insertResult, error) {
	var res insertResult
	// threshold = oldTip * (100 + priceBump) / 100
	threshold := new(big.Int).Mul(big.NewInt(int64(100+priceBump)), old.effTip)
	threshold.Div(threshold, big.NewInt(100))
	if it.tx.EffectiveGasTipValue(s.baseFee).Cmp(threshold) < 0 {
		return res, ErrUnderpriced
	}
	res.cascaded, res.overflowed = s.disposeSenderFrom(it.sender, old.Nonce()+1, RejectNonceGap)
	if evicted := s.dispose(old, RejectReplaced); evicted != nil {
		res.overflowed = append(res.overflowed, evicted)
	}
	res.replaced = old
	s.link(it)
	return res, nil
}

func (s *store) link(it *Item) {
	s.seq++
	it.seq = s.seq
	it.reject = RejectNone
	it.reprice(s.baseFee)

	s.items[it.id] = it
	s.elems[it.id] = s.arrival.PushBack(it)
	bucket, ok := s.senders[it.sender]
	if !ok {
		bucket = newSenderBucket()
		s.senders[it.sender] = bucket
	}
	bucket.put(it)
	s.rank.insert(it)
	s.status[it.status].Add(it.id)
}

func (s *store) unlink(it *Item) {
	delete(s.items, it.id)
	s.arrival.Remove(s.elems[it.id])
	delete(s.elems, it.id)
	bucket := s.senders[it.sender]
	bucket.delete(it)
	if bucket.len() == 0 {
		delete(s.senders, it.sender)
	}
	s.rank.remove(it)
	s.status[it.status].Remove(it.id)
}

// dispose unlinks the item and pushes it into the waste basket with the given
// reason, returning the basket entry evicted to make room, if any.
func (s *store) dispose(it *Item, reason RejectReason) (overflowed *Item) {
	s.unlink(it)
	it.reject = reason
	return s.basket.put(it)
}

// disposeSenderFrom disposes every live item of the sender with nonce >= from,
// highest nonce first so the gapless invariant holds at every step.
func (s *store) disposeSenderFrom(sender common.Address, from uint64, reason RejectReason) (disposed, overflowed []*Item) {
	bucket, ok := s.senders[sender]
	if !ok {
		return nil, nil
	}
	for i := len(bucket.nonces) - 1; i >= 0; i-- {
		nonce := bucket.nonces[i]
		if nonce < from {
			break
		}
		it := bucket.items[nonce]
		if evicted := s.dispose(it, reason); evicted != nil {
			overflowed = append(overflowed, evicted)
		}
		disposed = append(disposed, it)
	}
	return disposed, overflowed
}

// reassign moves an item to a new lifecycle bucket. It only touches the status
// index; eligibility is the policy layer's business.
func (s *store) reassign(it *Item, status Status) {
	if it.status == status {
		return
	}
	s.status[it.status].Remove(it.id)
	s.senders[it.sender].counts[it.status]--
	it.status = status
	s.status[status].Add(it.id)
	s.senders[it.sender].counts[status]++
}

// flushRejects drops every waste-basket entry, returning how many were held.
func (s *store) flushRejects() int {
	return s.basket.flush()
}

// reprice recomputes every item's effective tip against the new base fee and
// rebuilds the rank index around the fresh values.
func (s *store) reprice(baseFee *big.Int) {
	s.baseFee = baseFee
	for _, it := range s.rank.entries {
		it.reprice(baseFee)
	}
	slices.SortFunc(s.rank.entries, rankCmp)
}

// eachArrival walks live items in arrival order until fn returns false.
func (s *store) eachArrival(fn func(*Item) bool) {
	for elem := s.arrival.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Value.(*Item)) {
			return
		}
	}
}

// senderAddrs returns every sender with live items, in a stable order.
func (s *store) senderAddrs() []common.Address {
	addrs := make([]common.Address, 0, len(s.senders))
	for addr := range s.senders {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})
	return addrs
}

// senderItems returns the sender's live items in increasing nonce order.
func (s *store) senderItems(addr common.Address) []*Item {
	bucket, ok := s.senders[addr]
	if !ok {
		return nil
	}
	return bucket.flatten()
}

// senderStatusCount returns the sender's live item count in one bucket.
func (s *store) senderStatusCount(addr common.Address, status Status) int {
	bucket, ok := s.senders[addr]
	if !ok {
		return 0
	}
	return bucket.counts[status]
}
