// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Flags toggle optional pool behaviour at runtime.
type Flags uint8

const (
	// AutoZombifyUnpacked expires pending and staged items past their lifetime.
	AutoZombifyUnpacked Flags = 1 << iota

	// AutoZombifyPacked also expires items already selected for the next block.
	AutoZombifyPacked

	// PackItemsMaxGasLimit lets the packer fill up to the hard block gas limit
	// instead of stopping at the target.
	PackItemsMaxGasLimit

	// PackItemsTryHarder keeps the packer scanning other senders after the
	// best front no longer fits the remaining block space.
	PackItemsTryHarder
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

// Config are the configuration parameters of the transaction pool.
type Config struct {
	PriceBump uint64        // Minimum percent tip increase to supersede an existing item
	Lifetime  time.Duration // Age past which items are zombified (flag gated)

	MaxRejects int // Waste basket capacity, oldest entries drop first

	MinPreLondonGasPrice *big.Int // Tip floor before London activation
	MinPriorityFee       *big.Int // Tip floor after London activation

	TrgGasLimit uint64 // Block gas target the packer fills to
	MaxGasLimit uint64 // Hard ceiling used when PackItemsMaxGasLimit is set

	Flags  Flags
	Locals []common.Address // Accounts treated as local submitters
}

// DefaultConfig contains the default configurations for the transaction pool.
var DefaultConfig = Config{
	PriceBump: 10,
	Lifetime:  3 * time.Hour,

	MaxRejects: 500,

	MinPreLondonGasPrice: big.NewInt(1),
	MinPriorityFee:       big.NewInt(1),

	TrgGasLimit: 15_000_000,
	MaxGasLimit: 30_000_000,
}

// sanitize checks the provided user configurations and changes anything that's
// unreasonable or unworkable.
func (config *Config) sanitize() Config {
	conf := *config
	if conf.PriceBump < 1 {
		log.Warn("Sanitizing invalid txpool price bump", "provided", conf.PriceBump, "updated", DefaultConfig.PriceBump)
		conf.PriceBump = DefaultConfig.PriceBump
	}
	if conf.Lifetime < 1 {
		log.Warn("Sanitizing invalid txpool lifetime", "provided", conf.Lifetime, "updated", DefaultConfig.Lifetime)
		conf.Lifetime = DefaultConfig.Lifetime
	}
	if conf.MaxRejects < 1 {
		log.Warn("Sanitizing invalid txpool reject capacity", "provided", conf.MaxRejects, "updated", DefaultConfig.MaxRejects)
		conf.MaxRejects = DefaultConfig.MaxRejects
	}
	if conf.MinPreLondonGasPrice == nil || conf.MinPreLondonGasPrice.Sign() < 1 {
		log.Warn("Sanitizing invalid txpool pre-London price floor", "updated", DefaultConfig.MinPreLondonGasPrice)
		conf.MinPreLondonGasPrice = new(big.Int).Set(DefaultConfig.MinPreLondonGasPrice)
	}
	if conf.MinPriorityFee == nil || conf.MinPriorityFee.Sign() < 0 {
		log.Warn("Sanitizing invalid txpool priority fee floor", "updated", DefaultConfig.MinPriorityFee)
		conf.MinPriorityFee = new(big.Int).Set(DefaultConfig.MinPriorityFee)
	}
	if conf.TrgGasLimit == 0 {
		log.Warn("Sanitizing invalid txpool target gas limit", "updated", DefaultConfig.TrgGasLimit)
		conf.TrgGasLimit = DefaultConfig.TrgGasLimit
	}
	if conf.MaxGasLimit < conf.TrgGasLimit {
		log.Warn("Sanitizing txpool max gas limit below target", "provided", conf.MaxGasLimit, "updated", conf.TrgGasLimit)
		conf.MaxGasLimit = conf.TrgGasLimit
	}
	return conf
}
