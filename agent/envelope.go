package agent

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"xdao.co/candep/codec"
	"xdao.co/candep/identity"
	"xdao.co/candep/principal"
)

// Envelope is the wire form of one call: the request content plus the
// sender's detached signature. The signature covers sha256 of the
// deterministic encoding of the content fields.
type Envelope struct {
	Sender    []byte `cbor:"sender"`
	Canister  []byte `cbor:"canister_id"`
	Effective []byte `cbor:"effective_canister_id"`
	Method    string `cbor:"method"`
	Arg       []byte `cbor:"arg"`

	Scheme    string `cbor:"scheme,omitempty"`
	PublicKey []byte `cbor:"public_key,omitempty"`
	Signature []byte `cbor:"signature,omitempty"`
}

// Seal binds req to id's sender principal and signs it.
func Seal(req *CallRequest, id identity.Identity) (*Envelope, error) {
	if req == nil {
		return nil, errors.New("agent: nil call request")
	}
	if id == nil {
		id = identity.Anonymous{}
	}
	env := &Envelope{
		Sender:    id.Sender().Raw(),
		Canister:  req.CanisterID.Raw(),
		Effective: req.EffectiveCanisterID.Raw(),
		Method:    req.Method,
		Arg:       req.Arg,
	}
	content, err := env.contentDigest()
	if err != nil {
		return nil, err
	}
	sig, err := id.Sign(content)
	if err != nil {
		return nil, err
	}
	env.Scheme = sig.Scheme
	env.PublicKey = sig.PublicKey
	env.Signature = sig.Sig
	return env, nil
}

// Verify checks the envelope signature and that the claimed sender is
// bound to the signing key. It returns the authenticated sender and
// the embedded call request.
func (e *Envelope) Verify() (principal.Principal, *CallRequest, error) {
	sender, err := principal.FromRaw(e.Sender)
	if err != nil {
		return principal.Principal{}, nil, err
	}

	if e.Scheme == "" {
		// Unsigned envelopes are attributed to the anonymous principal only.
		if !sender.IsAnonymous() {
			return principal.Principal{}, nil, errors.New("agent: unsigned envelope with non-anonymous sender")
		}
	} else {
		content, err := e.contentDigest()
		if err != nil {
			return principal.Principal{}, nil, err
		}
		signer, err := identity.Verify(identity.Signature{
			Scheme:    e.Scheme,
			PublicKey: e.PublicKey,
			Sig:       e.Signature,
		}, content)
		if err != nil {
			return principal.Principal{}, nil, err
		}
		if signer != sender {
			return principal.Principal{}, nil, errors.New("agent: sender not bound to signing key")
		}
	}

	canister, err := principal.FromRaw(e.Canister)
	if err != nil {
		return principal.Principal{}, nil, err
	}
	effective, err := principal.FromRaw(e.Effective)
	if err != nil {
		return principal.Principal{}, nil, err
	}
	return sender, &CallRequest{
		CanisterID:          canister,
		EffectiveCanisterID: effective,
		Method:              e.Method,
		Arg:                 e.Arg,
	}, nil
}

func (e *Envelope) contentDigest() ([]byte, error) {
	content := Envelope{
		Sender:    e.Sender,
		Canister:  e.Canister,
		Effective: e.Effective,
		Method:    e.Method,
		Arg:       e.Arg,
	}
	b, err := codec.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("agent: envelope encoding failed: %w", err)
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}
