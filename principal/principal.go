// Package principal implements the host identity used to route every
// call in a deployment: an opaque byte string with a checksummed,
// base32-grouped textual form.
package principal

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
)

// MaxLength is the maximum raw length of a principal in bytes.
const MaxLength = 29

var (
	ErrTooLong     = errors.New("principal: raw value exceeds 29 bytes")
	ErrBadChecksum = errors.New("principal: checksum mismatch")
)

// Tags distinguishing derived principal classes. The tag is the last
// byte of the raw value.
const (
	tagSelfAuthenticating = 0x02
	tagAnonymous          = 0x04
)

// Principal identifies a canister or a caller. The zero value is the
// management identity (empty raw value, textual form "aaaaa-aa").
//
// Principals are comparable and usable as map keys.
type Principal struct {
	blob string
}

// FromRaw constructs a Principal from raw bytes.
func FromRaw(raw []byte) (Principal, error) {
	if len(raw) > MaxLength {
		return Principal{}, ErrTooLong
	}
	return Principal{blob: string(raw)}, nil
}

// Management returns the identity of the management surface itself
// (the empty principal).
func Management() Principal {
	return Principal{}
}

// Anonymous returns the unauthenticated caller identity.
func Anonymous() Principal {
	return Principal{blob: string([]byte{tagAnonymous})}
}

// SelfAuthenticating derives the caller identity bound to a public key:
// sha224(publicKey) with a self-authenticating tag byte appended.
func SelfAuthenticating(publicKey []byte) Principal {
	sum := sha256.Sum224(publicKey)
	raw := make([]byte, 0, len(sum)+1)
	raw = append(raw, sum[:]...)
	raw = append(raw, tagSelfAuthenticating)
	return Principal{blob: string(raw)}
}

var textEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Decode parses the textual form: lowercase unpadded base32 of
// crc32(raw) || raw, split into dash-separated groups of five.
func Decode(text string) (Principal, error) {
	ungrouped := strings.ReplaceAll(text, "-", "")
	b, err := textEncoding.DecodeString(strings.ToUpper(ungrouped))
	if err != nil {
		return Principal{}, fmt.Errorf("principal: %w", err)
	}
	if len(b) < 4 {
		return Principal{}, errors.New("principal: value too short")
	}
	check, raw := binary.BigEndian.Uint32(b[:4]), b[4:]
	if check != crc32.ChecksumIEEE(raw) {
		return Principal{}, ErrBadChecksum
	}
	p, err := FromRaw(raw)
	if err != nil {
		return Principal{}, err
	}
	if p.String() != text {
		return Principal{}, fmt.Errorf("principal: %q is not in canonical form", text)
	}
	return p, nil
}

// Raw returns a copy of the raw principal bytes.
func (p Principal) Raw() []byte {
	return []byte(p.blob)
}

// IsManagement reports whether p is the management identity.
func (p Principal) IsManagement() bool {
	return p.blob == ""
}

// IsAnonymous reports whether p is the anonymous caller identity.
func (p Principal) IsAnonymous() bool {
	return p.blob == string([]byte{tagAnonymous})
}

func (p Principal) String() string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], crc32.ChecksumIEEE([]byte(p.blob)))
	s := strings.ToLower(textEncoding.EncodeToString(append(buf[:], p.blob...)))

	var out strings.Builder
	for i, r := range s {
		if i > 0 && i%5 == 0 {
			out.WriteByte('-')
		}
		out.WriteRune(r)
	}
	return out.String()
}
