package walletbackend

import (
	"github.com/kryptokrona/kryptokrona-sub002/txconstructor"
	"github.com/kryptokrona/kryptokrona-sub002/walletaddr"
)

// Block-size policy constants. The serialized transaction size limit
// grows with chain height so early blocks stay small while a mature
// chain admits larger transactions; a transaction must also leave room
// for the block's own coinbase and header.
const (
	initialMaxTransactionSize = 100_000
	maxTransactionSizeGrowth  = 25_600 // bytes of extra headroom per growthInterval blocks
	growthInterval            = 100_000
	transactionSizeCeiling    = 1_000_000
	coinbaseReservedSize      = 600

	// Fusion transactions are size-bounded like any other; the byte cost
	// of one input is dominated by its ring, at roughly ringMemberSize
	// bytes per member (key image + offsets + one 64-byte signature).
	fusionInputBaseSize = 80
	ringMemberSize      = 96
)

// maxTransactionSize returns the serialized-size limit at a height.
func maxTransactionSize(height uint64) int {
	size := uint64(initialMaxTransactionSize) + (height/growthInterval)*maxTransactionSizeGrowth
	if size > transactionSizeCeiling {
		size = transactionSizeCeiling
	}
	return int(size) - coinbaseReservedSize
}

// maxFusionInputsForMixin bounds how many inputs one fusion transaction
// can consolidate: each input costs a full ring of mixin+1 members, so
// smaller mixins allow more inputs per transaction.
func maxFusionInputsForMixin(mixin uint64) int {
	perInput := fusionInputBaseSize + int(mixin+1)*ringMemberSize
	return initialMaxTransactionSize / perInput
}

// constructorConfig translates the backend's YAML-level knobs into the
// transaction constructor's policy set.
func (cfg Config) constructorConfig() txconstructor.Config {
	minMixin, maxMixin := uint64(cfg.MinMixin), uint64(cfg.MaxMixin)
	return txconstructor.Config{
		Network: walletaddr.Network{Prefix: cfg.NetworkPrefix},
		Units:   cfg.Units,
		MixinBounds: func(height uint64) (uint64, uint64) {
			return minMixin, maxMixin
		},
		MaxTransactionSize:      maxTransactionSize,
		MaxFusionInputsForMixin: maxFusionInputsForMixin,
		MinFusionInputRatio:     4,
		DefaultMixin:            cfg.DefaultMixin,
		DefaultFee:              cfg.DefaultFee,
		MinimumFee:              cfg.MinimumFee,
		FeePerByte:              cfg.FeePerByte,
		MaxSplitAttempts:        cfg.MaxSplitAttempts,
	}
}
