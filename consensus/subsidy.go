package consensus

// Emission schedule constants, grounded on the teacher's halving-style
// BlockSubsidy shape (remaining-cap >> speed-factor, floored at a tail
// emission) but with concrete numbers chosen for this spec: a 50-unit
// genesis reward halving every 210,000 blocks, floored at a 1-unit tail
// emission once the halving schedule would otherwise round to zero.
const (
	InitialSubsidy     = uint64(50_00000000)
	HalvingInterval    = uint64(210_000)
	TailEmissionPerBlock = uint64(1_00000000)
)

// BaseSubsidy returns base_emission(height): the block reward before fees,
// for the coinbase amount bound of spec.md §4.5. Height 0 (genesis) carries
// no subsidy — genesis is compiled in, not mined.
func BaseSubsidy(height uint64) uint64 {
	if height == 0 {
		return 0
	}
	halvings := (height - 1) / HalvingInterval
	if halvings >= 64 {
		return TailEmissionPerBlock
	}
	reward := InitialSubsidy >> halvings
	if reward < TailEmissionPerBlock {
		return TailEmissionPerBlock
	}
	return reward
}
