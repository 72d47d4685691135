// Package agent holds the call facade: a linear builder that
// accumulates call parameters into an immutable CallRequest, the
// Transport contract that executes finalized requests, and the signed
// envelope format exchanged with hosts.
package agent

import (
	"context"
	"errors"

	"xdao.co/candep/codec"
	"xdao.co/candep/principal"
)

// CallRequest is a finalized, immutable call descriptor. Build one via
// Call; the transport layer never mutates it.
type CallRequest struct {
	// CanisterID is the payload target of the call.
	CanisterID principal.Principal
	// EffectiveCanisterID routes the call. Some methods route by a
	// different identity than the payload target (for example
	// operations scoped to a newly created canister on the management
	// identity); it defaults to CanisterID.
	EffectiveCanisterID principal.Principal
	// Method is the remote method name.
	Method string
	// Arg is the encoded argument payload.
	Arg []byte
}

// Transport submits one finalized call and awaits its encoded result.
// Implementations must honor ctx cancellation.
type Transport interface {
	Submit(ctx context.Context, req *CallRequest) ([]byte, error)
}

// Builder accumulates call parameters before dispatch. Methods return
// the builder for chaining; the first error sticks and is reported by
// Build.
type Builder struct {
	req CallRequest
	// effectiveSet tracks whether the routing identity was overridden.
	effectiveSet bool
	err          error
}

// Call starts a builder for a method on target.
func Call(target principal.Principal, method string) *Builder {
	return &Builder{req: CallRequest{CanisterID: target, Method: method}}
}

// WithArg encodes v as the argument payload.
func (b *Builder) WithArg(v any) *Builder {
	if b.err != nil {
		return b
	}
	arg, err := codec.Marshal(v)
	if err != nil {
		b.err = err
		return b
	}
	b.req.Arg = arg
	return b
}

// WithRawArg sets pre-encoded argument bytes.
func (b *Builder) WithRawArg(arg []byte) *Builder {
	if b.err != nil {
		return b
	}
	b.req.Arg = arg
	return b
}

// WithEffectiveCanisterID overrides the routing identity.
func (b *Builder) WithEffectiveCanisterID(p principal.Principal) *Builder {
	if b.err != nil {
		return b
	}
	b.req.EffectiveCanisterID = p
	b.effectiveSet = true
	return b
}

// Build finalizes the call descriptor.
func (b *Builder) Build() (*CallRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.req.Method == "" {
		return nil, errors.New("agent: empty method name")
	}
	req := b.req
	if !b.effectiveSet {
		req.EffectiveCanisterID = req.CanisterID
	}
	return &req, nil
}
