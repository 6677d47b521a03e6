package consensus

import "testing"

func TestMerkleRoot_Single(t *testing.T) {
	id := SHA256d([]byte("only-tx"))
	root, err := MerkleRoot([]Hash256{id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != id {
		t.Fatalf("single-tx merkle root must equal the tx id, got %x want %x", root, id)
	}
}

func TestMerkleRoot_Pair(t *testing.T) {
	a := SHA256d([]byte("a"))
	b := SHA256d([]byte("b"))
	root, err := MerkleRoot([]Hash256{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SHA256d(append(append([]byte{}, a[:]...), b[:]...))
	if root != want {
		t.Fatalf("pair root mismatch")
	}
}

func TestMerkleRoot_OddDuplicatesLast(t *testing.T) {
	a := SHA256d([]byte("a"))
	b := SHA256d([]byte("b"))
	c := SHA256d([]byte("c"))

	root, err := MerkleRoot([]Hash256{a, b, c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ab := SHA256d(append(append([]byte{}, a[:]...), b[:]...))
	cc := SHA256d(append(append([]byte{}, c[:]...), c[:]...))
	want := SHA256d(append(append([]byte{}, ab[:]...), cc[:]...))
	if root != want {
		t.Fatalf("odd-node duplication mismatch")
	}
}

func TestMerkleRoot_EmptyRejected(t *testing.T) {
	if _, err := MerkleRoot(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
