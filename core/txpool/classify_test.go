// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func classifierItem(tip int64, status Status, stamp time.Time) *Item {
	return &Item{
		id:        common256(int(tip)),
		cost:      uint256.NewInt(21000 * 100),
		effTip:    big.NewInt(tip),
		status:    status,
		timeStamp: stamp,
	}
}

func TestTipAcceptable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ctx := &classifyCtx{london: true, minTip: big.NewInt(5), now: now}

	assert.False(t, ctx.tipAcceptable(classifierItem(-1, StatusPending, now)))
	assert.False(t, ctx.tipAcceptable(classifierItem(4, StatusPending, now)))
	assert.True(t, ctx.tipAcceptable(classifierItem(5, StatusPending, now)))

	// Pre-London the sign check is moot, the floor still applies.
	pre := &classifyCtx{london: false, minTip: big.NewInt(5), now: now}
	assert.False(t, pre.tipAcceptable(classifierItem(4, StatusPending, now)))
	assert.True(t, pre.tipAcceptable(classifierItem(7, StatusPending, now)))
}

func TestAffordable(t *testing.T) {
	ctx := &classifyCtx{}
	it := classifierItem(5, StatusPending, time.Unix(0, 0))

	assert.True(t, ctx.affordable(it, uint256.NewInt(21000*100)))
	assert.False(t, ctx.affordable(it, uint256.NewInt(21000*100-1)))
}

func TestExpiredHonorsFlags(t *testing.T) {
	now := time.Unix(1700000000, 0)
	stale := now.Add(-2 * time.Hour)

	ctx := &classifyCtx{lifetime: time.Hour, now: now}
	assert.False(t, ctx.expired(classifierItem(1, StatusPending, stale)), "no flag, no zombie")

	ctx.flags = AutoZombifyUnpacked
	assert.True(t, ctx.expired(classifierItem(1, StatusPending, stale)))
	assert.True(t, ctx.expired(classifierItem(1, StatusStaged, stale)))
	assert.False(t, ctx.expired(classifierItem(1, StatusPacked, stale)), "packed needs its own flag")
	assert.False(t, ctx.expired(classifierItem(1, StatusPending, now)), "fresh item survives")

	ctx.flags = AutoZombifyUnpacked | AutoZombifyPacked
	assert.True(t, ctx.expired(classifierItem(1, StatusPacked, stale)))
}
