package consensus

import (
	"crypto/ed25519"
	"testing"
)

func TestDeriveAndEncodeAddressRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := DeriveAddress(pub)
	if err := ValidateAddress(addr); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if addr[0] != AddressVersion {
		t.Fatalf("wrong version byte")
	}

	encoded := EncodeAddress(addr)
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round-trip mismatch")
	}
}

func TestDecodeAddress_BadChecksum(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	addr := DeriveAddress(pub)
	encoded := EncodeAddress(addr)

	tampered, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tampered[1] ^= 0xff
	if err := ValidateAddress(tampered); err == nil {
		t.Fatalf("expected checksum failure")
	}
	if _, err := DecodeAddress(EncodeAddress(tampered)); err == nil {
		t.Fatalf("expected DecodeAddress to reject a bad checksum")
	}
}

func TestDecodeAddress_BadLength(t *testing.T) {
	if _, err := DecodeAddress("1"); err == nil {
		t.Fatalf("expected length error")
	}
}
