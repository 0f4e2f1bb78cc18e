// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import "fmt"

// verify cross-checks every store index against the others. It is wired into
// the tests after each public operation; a failure here means a bug in the
// store's atomicity, never a recoverable condition.
func (p *TxPool) verify() error {
	s := p.store

	// Id map, arrival list and element map must describe the same set.
	if len(s.items) != s.arrival.Len() || len(s.items) != len(s.elems) {
		return fmt.Errorf("index size mismatch: items %d, arrival %d, elems %d",
			len(s.items), s.arrival.Len(), len(s.elems))
	}
	if got := s.rank.len(); got != len(s.items) {
		return fmt.Errorf("rank index holds %d items, want %d", got, len(s.items))
	}
	statusTotal := 0
	for st := range s.status {
		statusTotal += s.status[st].Cardinality()
	}
	if statusTotal != len(s.items) {
		return fmt.Errorf("status sets hold %d items, want %d", statusTotal, len(s.items))
	}

	var (
		prev     *Item
		seen     int
		arrivErr error
	)
	s.eachArrival(func(it *Item) bool {
		seen++
		if s.items[it.id] != it {
			arrivErr = fmt.Errorf("arrival list item %x missing from id map", it.id)
			return false
		}
		if !s.status[it.status].Contains(it.id) {
			arrivErr = fmt.Errorf("item %x not in its status set %v", it.id, it.status)
			return false
		}
		if bucket := s.senders[it.sender]; bucket == nil || bucket.get(it.Nonce()) != it {
			arrivErr = fmt.Errorf("item %x missing from sender bucket", it.id)
			return false
		}
		if prev != nil && (it.seq <= prev.seq || it.timeStamp.Before(prev.timeStamp)) {
			arrivErr = fmt.Errorf("arrival order violated at %x", it.id)
			return false
		}
		prev = it
		return true
	})
	if arrivErr != nil {
		return arrivErr
	}
	if seen != len(s.items) {
		return fmt.Errorf("arrival walk visited %d items, want %d", seen, len(s.items))
	}

	// Per sender: gapless nonces and monotone bucket order.
	for addr, bucket := range s.senders {
		var counts [numStatuses]int
		prevRank := -1
		for i, nonce := range bucket.nonces {
			if i > 0 && nonce != bucket.nonces[i-1]+1 {
				return fmt.Errorf("sender %x nonce gap between %d and %d", addr, bucket.nonces[i-1], nonce)
			}
			it := bucket.items[nonce]
			counts[it.status]++
			// packed before staged before pending as nonces increase
			rank := map[Status]int{StatusPacked: 0, StatusStaged: 1, StatusPending: 2}[it.status]
			if rank < prevRank {
				return fmt.Errorf("sender %x bucket order violated at nonce %d", addr, nonce)
			}
			prevRank = rank
		}
		if counts != bucket.counts {
			return fmt.Errorf("sender %x status counts stale: have %v, want %v", addr, bucket.counts, counts)
		}
	}

	// Live store and waste basket are disjoint.
	var basketErr error
	s.basket.each(func(it *Item) bool {
		if _, ok := s.items[it.id]; ok {
			basketErr = fmt.Errorf("item %x live and disposed at once", it.id)
			return false
		}
		if it.reject == RejectNone {
			basketErr = fmt.Errorf("basket item %x carries no reject reason", it.id)
			return false
		}
		return true
	})
	if basketErr != nil {
		return basketErr
	}
	if s.basket.len() > s.basket.cap {
		return fmt.Errorf("waste basket over capacity: %d > %d", s.basket.len(), s.basket.cap)
	}

	// Rank index must be sorted under the tie-broken comparator.
	for i := 1; i < len(s.rank.entries); i++ {
		if rankCmp(s.rank.entries[i-1], s.rank.entries[i]) > 0 {
			return fmt.Errorf("rank index out of order at position %d", i)
		}
	}

	// Everything the packer selected must still sit in the packed bucket.
	// (The status set may hold more after an administrative reassign.)
	if len(p.packed.items) > s.statusCount(StatusPacked) {
		return fmt.Errorf("packed list holds %d items, status set %d",
			len(p.packed.items), s.statusCount(StatusPacked))
	}
	for _, it := range p.packed.items {
		if it.status != StatusPacked {
			return fmt.Errorf("packed list item %x has status %v", it.id, it.status)
		}
	}
	return nil
}
