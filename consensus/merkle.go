package consensus

// MerkleRoot builds the binary Merkle tree over ids (spec.md §4.2) and
// returns its root. Leaves are the ids as given; each level pairs adjacent
// nodes into SHA256d(left||right); an odd node at a level is duplicated by
// value (not by reference), so there is nothing to free twice.
//
// The root of a single-element input is that element unchanged — no
// self-hashing occurs (spec.md invariant 5).
func MerkleRoot(ids []Hash256) (Hash256, error) {
	if len(ids) == 0 {
		return Hash256{}, newErr(KindCodec, ReasonEmptyMerkleInput)
	}

	level := make([]Hash256, len(ids))
	copy(level, ids)

	for len(level) > 1 {
		next := make([]Hash256, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			var buf [2 * HashSize]byte
			copy(buf[:HashSize], left[:])
			copy(buf[HashSize:], right[:])
			next = append(next, SHA256d(buf[:]))
		}
		level = next
	}
	return level[0], nil
}
