package consensus

import "crypto/ed25519"

// Sign produces a signature over digest using an Ed25519 private key. It is
// a thin wrapper kept for symmetry with VerifySignature and for callers (tests,
// external tooling) that construct transactions.
func Sign(priv ed25519.PrivateKey, digest [HashSize]byte) []byte {
	return ed25519.Sign(priv, digest[:])
}

// VerifySignature checks an Ed25519 signature over digest against pubkey.
// It reports false rather than erroring on malformed input so callers can
// fold it directly into a boolean consensus check.
func VerifySignature(pubkey []byte, digest [HashSize]byte, sig []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, digest[:], sig)
}
