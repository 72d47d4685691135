// Package hoststore defines the host-side chunk store backing a
// canister's chunked code uploads.
package hoststore

import (
	"errors"

	"xdao.co/candep/digest"
)

var (
	ErrNotFound  = errors.New("hoststore: chunk not found")
	ErrImmutable = errors.New("hoststore: immutable chunk mismatch")
)

// IsNotFound reports whether err is the missing-chunk error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is a content-addressed chunk store.
//
// Contract:
// - Put MUST be idempotent; keys are the SHA-256 digest of the bytes.
// - Stored chunks MUST be immutable.
// - Get MUST return ErrNotFound when the digest is absent.
// - List returns a snapshot with no ordering guarantee.
// - Clear empties the store.
type Store interface {
	Put(chunk []byte) (digest.Digest, error)
	Get(d digest.Digest) ([]byte, error)
	Has(d digest.Digest) bool
	List() ([]digest.Digest, error)
	Clear() error
}
