// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// reconcile drives every sender's items into the right lifecycle bucket for
// the current chain context. It runs after every mutation, so any read that
// follows a mutation observes fully settled buckets.
//
// Per sender the walk keeps a simulated account: nonce and balance start from
// the on-chain values and advance across each item accepted into staged. The
// first item that is gapped, unaffordable or under the tip floor demotes
// itself and everything above it to pending, which is what makes bucket order
// along nonces monotone.
func (p *TxPool) reconcile() {
	ctx := p.classifyContext()
	head := p.head.Hash()
	for _, addr := range p.store.senderAddrs() {
		p.zombifySender(addr, ctx)
		p.reconcileSender(addr, head, ctx)
	}
}

// zombifySender expires the sender's over-age items. Disposal starts at the
// lowest expired nonce and takes everything above it: expired items leave as
// such, fresher dependents are implied evictions, keeping the sender's nonce
// run gapless.
func (p *TxPool) zombifySender(addr common.Address, ctx *classifyCtx) {
	items := p.store.senderItems(addr)
	lowest := -1
	for i, it := range items {
		if ctx.expired(it) {
			lowest = i
			break
		}
	}
	if lowest < 0 {
		return
	}
	for i := len(items) - 1; i >= lowest; i-- {
		it := items[i]
		reason := RejectNonceGap
		if ctx.expired(it) {
			reason = RejectExpired
			p.counters.evictions++
			evictionMeter.Mark(1)
		} else {
			p.counters.impliedEvictions++
			impliedEvictionMeter.Mark(1)
		}
		if evicted := p.store.dispose(it, reason); evicted != nil {
			overflowedMeter.Mark(1)
		}
		log.Trace("Zombified transaction", "hash", it.id, "sender", addr, "nonce", it.Nonce(), "reason", reason)
	}
}

// reconcileSender runs the promotion walk for one sender.
func (p *TxPool) reconcileSender(addr common.Address, head common.Hash, ctx *classifyCtx) {
	items := p.store.senderItems(addr)
	if len(items) == 0 {
		return
	}
	runningNonce, err := p.oracle.AccountNonce(addr, head)
	if err != nil {
		log.Warn("Account nonce unavailable, skipping sender", "sender", addr, "err", err)
		return
	}
	runningBalance, err := p.oracle.AccountBalance(addr, head)
	if err != nil {
		log.Warn("Account balance unavailable, skipping sender", "sender", addr, "err", err)
		return
	}
	runningBalance = runningBalance.Clone()

	demoteRest := false
	for _, it := range items {
		switch {
		case demoteRest:
			p.demote(it)

		case it.Nonce() < runningNonce:
			// Already mined or stale, the account moved past it.
			if evicted := p.store.dispose(it, RejectNonceTooLow); evicted != nil {
				overflowedMeter.Mark(1)
			}
			log.Trace("Dropped old transaction", "hash", it.id, "sender", addr, "nonce", it.Nonce())

		case it.Nonce() != runningNonce:
			// Gap against the account; nothing above can execute either.
			demoteRest = true
			p.demote(it)

		case ctx.stagedEligible(it, runningBalance):
			if it.status == StatusPending {
				p.store.reassign(it, StatusStaged)
			}
			runningBalance.Sub(runningBalance, it.cost)
			runningNonce++

		default:
			demoteRest = true
			p.demote(it)
		}
	}
}

func (p *TxPool) demote(it *Item) {
	if it.status != StatusPending {
		p.store.reassign(it, StatusPending)
	}
}
