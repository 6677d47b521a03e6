// Package consensus implements Vulkan's protocol rules: the transaction and
// block data model, deterministic binary codec, Merkle tree construction,
// proof-of-work target encoding, and the validation pipeline that separates
// context-free checks from checks that need a chain view.
package consensus

// Wire-level sizes, in bytes.
const (
	HashSize      = 32
	AddressSize   = 25
	PublicKeySize = 32
	SignatureSize = 64
)

// Consensus-parameter constants exposed by the core (spec.md §6).
const (
	// MaxFutureBlockTime is how far into the future a block's timestamp may
	// drift and still be accepted (2 hours).
	MaxFutureBlockTime = int64(7200)

	// MaxBlockSize bounds serialized header+transactions for a block.
	MaxBlockSize = 1 << 20 // 1 MiB

	// TargetBlockTime is the proof-of-work pacing target, in seconds.
	TargetBlockTime = int64(60)

	// DifficultyPeriod is the number of blocks between retargets.
	DifficultyPeriod = uint64(2016)

	// BlockVersion is the current block header version.
	BlockVersion = uint32(1)

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must accumulate before it can be spent.
	CoinbaseMaturity = uint64(100)

	// MaxOrphans bounds the orphan-block buffer; oldest is evicted on
	// overflow.
	MaxOrphans = 100

	// MempoolMaxBytes bounds the mempool's total serialized transaction
	// size; lowest fee-rate transactions are evicted once exceeded.
	MempoolMaxBytes = 32 << 20 // 32 MiB
)

// AddressVersion is the single version byte used for mainnet-style
// addresses. Testnets would use a different byte; out of scope here.
const AddressVersion = byte(0x1a)
