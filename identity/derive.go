package identity

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// DeriveSeed deterministically derives a labeled Ed25519 seed from a
// root seed, so one secret can back multiple deployment identities
// (for example one per environment).
func DeriveSeed(rootSeed []byte, label string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: root seed must be %d bytes", ed25519.SeedSize)
	}
	if label == "" {
		return nil, fmt.Errorf("identity: empty derivation label")
	}

	h := sha3.New256()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("candep-identity-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("label:"))
	_, _ = h.Write([]byte(label))
	sum := h.Sum(nil)

	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}
