// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

// classifyCtx is the chain-context snapshot bucket eligibility is judged
// against. It is rebuilt at the start of every reconcile pass, so the
// predicates themselves stay pure.
type classifyCtx struct {
	baseFee  *big.Int // nil before London activation at the current head
	london   bool
	minTip   *big.Int
	lifetime time.Duration
	flags    Flags
	now      time.Time
}

// tipAcceptable reports whether the item's reward clears the tip floor. After
// London the effective tip must additionally be non-negative at the current
// base fee, i.e. the fee cap must at least cover the base fee.
func (c *classifyCtx) tipAcceptable(it *Item) bool {
	if c.london && it.effTip.Sign() < 0 {
		return false
	}
	return it.effTip.Cmp(c.minTip) >= 0
}

// affordable reports whether balance covers the item's maximum charge.
func (c *classifyCtx) affordable(it *Item, balance *uint256.Int) bool {
	return balance.Cmp(it.cost) >= 0
}

// stagedEligible reports whether an item whose nonce is contiguous with the
// simulated account state may sit in the staged bucket.
func (c *classifyCtx) stagedEligible(it *Item, balance *uint256.Int) bool {
	return c.tipAcceptable(it) && c.affordable(it, balance)
}

// expired reports whether the item has outlived the configured lifetime,
// honoring the per-bucket zombify flags.
func (c *classifyCtx) expired(it *Item) bool {
	flag := AutoZombifyUnpacked
	if it.status == StatusPacked {
		flag = AutoZombifyPacked
	}
	if !c.flags.Has(flag) {
		return false
	}
	return it.timeStamp.Before(c.now.Add(-c.lifetime))
}
