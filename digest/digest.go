// Package digest provides the 32-byte SHA-256 content digest used to
// address chunks and installed modules, with conversions to and from
// CIDv1 (raw + sha2-256) for store interop.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	sha256 "github.com/minio/sha256-simd"
	"github.com/multiformats/go-multihash"
)

// Size is the width of a content digest in bytes.
const Size = 32

// Digest is the SHA-256 hash of a byte buffer. Identity is purely
// structural: two buffers with identical bytes have identical digests.
type Digest [Size]byte

// Sum returns the digest of data. Any byte sequence, including empty,
// is valid input.
func Sum(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// SumSegments returns the digest of the concatenation of segs, without
// materializing the concatenation.
func SumSegments(segs ...[]byte) Digest {
	h := sha256.New()
	for _, s := range segs {
		_, _ = h.Write(s)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// FromBytes converts a raw 32-byte hash into a Digest.
func FromBytes(b []byte) (Digest, error) {
	if len(b) != Size {
		return Digest{}, fmt.Errorf("digest: expected %d bytes, got %d", Size, len(b))
	}
	var d Digest
	copy(d[:], b)
	return d, nil
}

// FromCID extracts the digest from a CIDv1 whose multihash is sha2-256.
func FromCID(id cid.Cid) (Digest, error) {
	if !id.Defined() {
		return Digest{}, errors.New("digest: undefined cid")
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return Digest{}, err
	}
	if dec.Code != multihash.SHA2_256 {
		return Digest{}, fmt.Errorf("digest: unsupported multihash code %#x", dec.Code)
	}
	return FromBytes(dec.Digest)
}

// CID returns the CIDv1 (raw + sha2-256) form of d.
func (d Digest) CID() cid.Cid {
	mh, err := multihash.Encode(d[:], multihash.SHA2_256)
	if err != nil {
		// multihash.Encode only errors on unknown codes; SHA2_256 is known.
		return cid.Undef
	}
	return cid.NewCidV1(cid.Raw, mh)
}

// Bytes returns a copy of the raw digest bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
