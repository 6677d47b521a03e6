package consensus

import (
	"bytes"
	"math/big"
)

// MaxTarget is the loosest allowed difficulty target (genesis difficulty):
// three zero bytes, 0xffff, then 27 zero bytes, i.e. 0xffff * 2^216, which
// is exactly the expansion of bits 0x1e00ffff.
var MaxTarget = func() [HashSize]byte {
	var t [HashSize]byte
	t[3] = 0xff
	t[4] = 0xff
	return t
}()

// DecodeCompactTarget expands the compact `bits` encoding of spec.md §4.3
// into a 256-bit big-endian target: the high byte of bits is an exponent e,
// the low three bytes are a mantissa m, and target = m * 256^(e-3).
func DecodeCompactTarget(bits uint32) ([HashSize]byte, error) {
	exp := byte(bits >> 24)
	mant := new(big.Int).SetUint64(uint64(bits & 0x00ffffff))

	var target *big.Int
	if exp <= 3 {
		target = new(big.Int).Rsh(mant, uint(8*(3-exp)))
	} else {
		target = new(big.Int).Lsh(mant, uint(8*(int(exp)-3)))
	}

	var out [HashSize]byte
	b := target.Bytes()
	if len(b) > HashSize {
		return out, newErr(KindCodec, ReasonInvalidCompactTarget)
	}
	copy(out[HashSize-len(b):], b)

	if bytes.Compare(out[:], MaxTarget[:]) > 0 {
		return out, newErr(KindCodec, ReasonInvalidCompactTarget)
	}
	return out, nil
}

// EncodeCompactTarget packs a 256-bit big-endian target into the compact
// `bits` representation, inverting DecodeCompactTarget.
func EncodeCompactTarget(target [HashSize]byte) uint32 {
	b := bytes.TrimLeft(target[:], "\x00")
	if len(b) == 0 {
		return 0
	}
	size := len(b)
	var mant uint32
	switch {
	case size <= 3:
		padded := make([]byte, 3)
		copy(padded[3-size:], b)
		mant = uint32(padded[0])<<16 | uint32(padded[1])<<8 | uint32(padded[2])
	default:
		mant = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	// If the mantissa's high bit would be set it would be read as negative
	// in sign-magnitude style compact encodings; shift right and bump the
	// exponent to keep it unambiguous.
	if mant&0x00800000 != 0 {
		mant >>= 8
		size++
	}
	return uint32(size)<<24 | mant
}

// CheckProofOfWork verifies that hash, interpreted as a big-endian 256-bit
// integer, is at most target — i.e. the proof-of-work *verifier* (spec.md
// §1 explicitly excludes the miner's search loop, only the check it must
// satisfy).
func CheckProofOfWork(hash Hash256, target [HashSize]byte) error {
	if bytes.Compare(hash[:], target[:]) > 0 {
		return newErr(KindInvalidBlock, ReasonPowFailed)
	}
	return nil
}

// NextTarget computes the retargeted difficulty for the period that just
// elapsed (spec.md §4.3): the previous target scaled by actualSpan /
// expectedSpan, clamped to [¼×prev, 4×prev], and never looser than
// MaxTarget. actualSpan and expectedSpan are both in seconds.
func NextTarget(prevTarget [HashSize]byte, actualSpan, expectedSpan int64) ([HashSize]byte, error) {
	if expectedSpan <= 0 {
		return prevTarget, newErr(KindContext, ReasonBadRetarget)
	}
	if actualSpan <= 0 {
		actualSpan = 1
	}

	prev := new(big.Int).SetBytes(prevTarget[:])
	if prev.Sign() == 0 {
		return prevTarget, newErr(KindContext, ReasonBadRetarget)
	}

	next := new(big.Int).Mul(prev, big.NewInt(actualSpan))
	next.Div(next, big.NewInt(expectedSpan))

	lower := new(big.Int).Rsh(prev, 2)
	if lower.Sign() == 0 {
		lower.SetInt64(1)
	}
	upper := new(big.Int).Lsh(prev, 2)
	maxT := new(big.Int).SetBytes(MaxTarget[:])
	if upper.Cmp(maxT) > 0 {
		upper = maxT
	}

	if next.Cmp(lower) < 0 {
		next = lower
	}
	if next.Cmp(upper) > 0 {
		next = upper
	}

	var out [HashSize]byte
	b := next.Bytes()
	if len(b) > HashSize {
		return out, newErr(KindContext, ReasonBadRetarget)
	}
	copy(out[HashSize-len(b):], b)
	return out, nil
}

// ExpectedTarget computes the target that height must carry, given the
// previous block's target and, at a retarget boundary, the timestamps that
// bound the just-elapsed period. height is the height of the block being
// validated (its parent is height-1).
func ExpectedTarget(height uint64, prevTarget [HashSize]byte, periodFirstTimestamp, periodLastTimestamp int64) ([HashSize]byte, error) {
	if height == 0 || height%DifficultyPeriod != 0 {
		return prevTarget, nil
	}
	return NextTarget(prevTarget, periodLastTimestamp-periodFirstTimestamp, TargetBlockTime*int64(DifficultyPeriod))
}

// WorkFromTarget returns floor(2^256 / (target+1)), the per-block work
// contribution used to compare competing branches (spec.md §4.7). Using
// target+1 avoids a division by the maximum possible target being treated
// as zero work and keeps the function total over every valid target.
func WorkFromTarget(target [HashSize]byte) *big.Int {
	t := new(big.Int).SetBytes(target[:])
	t.Add(t, big.NewInt(1))
	two256 := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(two256, t)
}

// ChainWork sums WorkFromTarget over every target in a branch, in order
// from genesis.
func ChainWork(targets [][HashSize]byte) *big.Int {
	total := new(big.Int)
	for _, t := range targets {
		total.Add(total, WorkFromTarget(t))
	}
	return total
}
