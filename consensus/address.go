package consensus

import (
	"bytes"
	"crypto/sha256"

	"github.com/decred/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is required by the address scheme, not a choice.
)

// Address is the 25-byte versioned, checksummed payload of spec.md §3: one
// version byte, a 20-byte RIPEMD160(SHA256(pubkey)) payload, and a 4-byte
// SHA256d checksum over the version+payload.
type Address [AddressSize]byte

// DeriveAddress computes the address for a given Ed25519 public key.
func DeriveAddress(pubkey []byte) Address {
	shaed := sha256.Sum256(pubkey)
	h := ripemd160.New()
	_, _ = h.Write(shaed[:])
	payload := h.Sum(nil)

	var addr Address
	addr[0] = AddressVersion
	copy(addr[1:21], payload)
	checksum := SHA256d(addr[:21])
	copy(addr[21:25], checksum[:4])
	return addr
}

// ValidateAddress recomputes the checksum and reports whether it matches.
func ValidateAddress(addr Address) error {
	checksum := SHA256d(addr[:21])
	if !bytes.Equal(checksum[:4], addr[21:25]) {
		return newErr(KindCodec, ReasonBadChecksum)
	}
	return nil
}

// EncodeAddress renders an address in the human-facing Base58Check-style
// form. The binary 25-byte form (§3) remains canonical on the wire; this is
// a display/import convenience only.
func EncodeAddress(addr Address) string {
	return base58.Encode(addr[:])
}

// DecodeAddress parses the textual form produced by EncodeAddress.
func DecodeAddress(s string) (Address, error) {
	raw := base58.Decode(s)
	var addr Address
	if len(raw) != AddressSize {
		return addr, newErr(KindCodec, ReasonBadAddressLength)
	}
	copy(addr[:], raw)
	if err := ValidateAddress(addr); err != nil {
		return addr, err
	}
	return addr, nil
}
