// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import "github.com/ethereum/go-ethereum/metrics"

var (
	// Eviction metrics: items the pool gave up on by itself.
	evictionMeter        = metrics.NewRegisteredMeter("txpool/evictions", nil)         // Zombified past their lifetime
	impliedEvictionMeter = metrics.NewRegisteredMeter("txpool/evictions/implied", nil) // Higher nonces dropped by a cascade

	// Reject metrics: items callers pushed at us that never went live.
	rejectMeter      = metrics.NewRegisteredMeter("txpool/rejects", nil)
	underpricedMeter = metrics.NewRegisteredMeter("txpool/rejects/underpriced", nil)
	replacedMeter    = metrics.NewRegisteredMeter("txpool/replaced", nil)
	overflowedMeter  = metrics.NewRegisteredMeter("txpool/rejects/overflow", nil) // Pushed out of a full waste basket

	packGasGauge = metrics.NewRegisteredGauge("txpool/pack/gas", nil)
	packTimer    = metrics.NewRegisteredTimer("txpool/pack/duration", nil)
)

// Counts is a point-in-time census of the pool, bucket by bucket.
type Counts struct {
	Pending  int
	Staged   int
	Packed   int
	Total    int // Live items, sum of the three buckets
	Disposed int // Waste basket occupancy
}

// counters mirror the registry meters with pool-local values so callers and
// tests can observe them without touching the global metrics state.
type counters struct {
	evictions        int64
	impliedEvictions int64
	rejects          int64
}
