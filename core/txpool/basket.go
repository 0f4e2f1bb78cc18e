// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"container/list"

	"github.com/ethereum/go-ethereum/common"
)

// wasteBasket is a bounded FIFO of disposed items, keyed by transaction hash.
// It keeps recently rejected transactions around for forensic inspection and
// resurrection; when full, the oldest entry makes room for the newest.
type wasteBasket struct {
	entries map[common.Hash]*list.Element
	order   *list.List // of *Item, front is oldest
	cap     int
}

func newWasteBasket(cap int) *wasteBasket {
	return &wasteBasket{
		entries: make(map[common.Hash]*list.Element),
		order:   list.New(),
		cap:     cap,
	}
}

// put stores an item under its id and returns the entry evicted to stay within
// capacity, if any. Re-putting a known id updates the entry in place without
// refreshing its queue position.
func (b *wasteBasket) put(it *Item) (evicted *Item) {
	if elem, ok := b.entries[it.id]; ok {
		elem.Value = it
		return nil
	}
	b.entries[it.id] = b.order.PushBack(it)
	if b.order.Len() <= b.cap {
		return nil
	}
	oldest := b.order.Front()
	b.order.Remove(oldest)
	old := oldest.Value.(*Item)
	delete(b.entries, old.id)
	return old
}

// get returns the basket entry for the given id, or nil.
func (b *wasteBasket) get(id common.Hash) *Item {
	if elem, ok := b.entries[id]; ok {
		return elem.Value.(*Item)
	}
	return nil
}

// take removes and returns the entry for the given id, or nil. Used for
// resurrection, where the caller re-inserts a fresh live item.
func (b *wasteBasket) take(id common.Hash) *Item {
	elem, ok := b.entries[id]
	if !ok {
		return nil
	}
	b.order.Remove(elem)
	delete(b.entries, id)
	return elem.Value.(*Item)
}

// flush drops every entry and returns how many were dropped.
func (b *wasteBasket) flush() int {
	n := b.order.Len()
	b.entries = make(map[common.Hash]*list.Element)
	b.order.Init()
	return n
}

// setCap resizes the basket, returning the oldest entries that no longer fit.
func (b *wasteBasket) setCap(cap int) (evicted []*Item) {
	b.cap = cap
	for b.order.Len() > b.cap {
		oldest := b.order.Front()
		b.order.Remove(oldest)
		old := oldest.Value.(*Item)
		delete(b.entries, old.id)
		evicted = append(evicted, old)
	}
	return evicted
}

// len returns the current occupancy.
func (b *wasteBasket) len() int {
	return b.order.Len()
}

// each walks the basket oldest first, stopping when fn returns false.
func (b *wasteBasket) each(fn func(*Item) bool) {
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		if !fn(elem.Value.(*Item)) {
			return
		}
	}
}
