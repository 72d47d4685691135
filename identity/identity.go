// Package identity provides the envelope-signing identities a client
// uses when submitting calls. The sender principal is derived from the
// public key (self-authenticating), so a host can verify both the
// signature and the claimed sender from the envelope alone.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/candep/principal"
)

// Signature schemes carried in call envelopes.
const (
	SchemeEd25519    = "ed25519"
	SchemeDilithium3 = "dilithium3"
)

// Signature is the detached result of signing an envelope's content.
type Signature struct {
	Scheme    string
	PublicKey []byte
	Sig       []byte
}

// Identity signs call envelopes and names the sender principal.
type Identity interface {
	// Sender is the principal the host attributes calls to.
	Sender() principal.Principal
	// Sign signs the given message (already hashed by the caller's
	// envelope layer where applicable).
	Sign(message []byte) (Signature, error)
}

// Anonymous is the unauthenticated identity: no signature is attached
// and the host attributes the call to the anonymous principal.
type Anonymous struct{}

func (Anonymous) Sender() principal.Principal { return principal.Anonymous() }

func (Anonymous) Sign(message []byte) (Signature, error) {
	return Signature{}, nil
}

// Ed25519 signs with a plain Ed25519 key.
type Ed25519 struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519FromSeed derives an Ed25519 identity from a 32-byte seed.
func NewEd25519FromSeed(seed []byte) (*Ed25519, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// GenerateEd25519 creates a fresh random Ed25519 identity.
func GenerateEd25519() (*Ed25519, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519{priv: priv, pub: pub}, nil
}

func (e *Ed25519) Sender() principal.Principal {
	return principal.SelfAuthenticating(e.pub)
}

func (e *Ed25519) Sign(message []byte) (Signature, error) {
	return Signature{
		Scheme:    SchemeEd25519,
		PublicKey: append([]byte(nil), e.pub...),
		Sig:       ed25519.Sign(e.priv, message),
	}, nil
}

// Dilithium3 signs with a Dilithium mode3 key, for deployments that
// want a post-quantum envelope signature.
type Dilithium3 struct {
	priv *mode3.PrivateKey
	pub  *mode3.PublicKey
}

// GenerateDilithium3 creates a fresh Dilithium3 identity from rng
// (nil means crypto/rand).
func GenerateDilithium3(rng io.Reader) (*Dilithium3, error) {
	pub, priv, err := mode3.GenerateKey(rng)
	if err != nil {
		return nil, err
	}
	return &Dilithium3{priv: priv, pub: pub}, nil
}

func (d *Dilithium3) Sender() principal.Principal {
	b, err := d.pub.MarshalBinary()
	if err != nil {
		return principal.Anonymous()
	}
	return principal.SelfAuthenticating(b)
}

func (d *Dilithium3) Sign(message []byte) (Signature, error) {
	if d.priv == nil {
		return Signature{}, errors.New("identity: missing private key")
	}
	pub, err := d.pub.MarshalBinary()
	if err != nil {
		return Signature{}, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(d.priv, message, sig)
	return Signature{Scheme: SchemeDilithium3, PublicKey: pub, Sig: sig}, nil
}

// Verify checks a detached signature over message and returns the
// sender principal bound to the public key.
func Verify(sig Signature, message []byte) (principal.Principal, error) {
	switch sig.Scheme {
	case SchemeEd25519:
		if len(sig.PublicKey) != ed25519.PublicKeySize {
			return principal.Principal{}, errors.New("identity: bad ed25519 public key length")
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.PublicKey), message, sig.Sig) {
			return principal.Principal{}, errors.New("identity: ed25519 signature verification failed")
		}
	case SchemeDilithium3:
		var pub mode3.PublicKey
		if err := pub.UnmarshalBinary(sig.PublicKey); err != nil {
			return principal.Principal{}, fmt.Errorf("identity: bad dilithium3 public key: %w", err)
		}
		if !mode3.Verify(&pub, message, sig.Sig) {
			return principal.Principal{}, errors.New("identity: dilithium3 signature verification failed")
		}
	default:
		return principal.Principal{}, fmt.Errorf("identity: unsupported scheme %q", sig.Scheme)
	}
	return principal.SelfAuthenticating(sig.PublicKey), nil
}
