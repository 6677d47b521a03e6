package consensus

import "encoding/binary"

// reader walks a byte slice, tracking position and failing closed on
// premature EOF, oversized counts, or (checked by the caller at the end)
// trailing bytes — the decoder contract of spec.md §4.1.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) remaining() int { return len(r.b) - r.pos }

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, newErr(KindCodec, ReasonTruncated)
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) hash() (Hash256, error) {
	var h Hash256
	b, err := r.bytes(HashSize)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

// atEnd reports whether every byte has been consumed. Decoders must call
// this after parsing their top-level value and reject trailing bytes.
func (r *reader) atEnd() bool { return r.pos == len(r.b) }

// maxDecodeCount bounds any length-prefixed count field against an obviously
// absurd value, independent of the eventual per-field size check, so a
// corrupt count can't force a multi-gigabyte allocation before the
// remaining-bytes check would have caught it anyway.
const maxDecodeCount = 1 << 24

func checkCount(n uint32) error {
	if n > maxDecodeCount {
		return newErr(KindCodec, ReasonCountOverflow)
	}
	return nil
}
