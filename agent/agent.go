package agent

import (
	"context"
	"errors"

	"xdao.co/candep/identity"
	"xdao.co/candep/principal"
)

// Submitter delivers a sealed envelope to a host and returns the
// encoded result bytes. Implemented by the gRPC transport client and
// by in-process hosts in tests.
type Submitter interface {
	SubmitEnvelope(ctx context.Context, env *Envelope) ([]byte, error)
}

// Agent implements Transport by sealing each request with a signing
// identity and handing the envelope to a Submitter.
type Agent struct {
	sub Submitter
	id  identity.Identity
}

var _ Transport = (*Agent)(nil)

// New binds a submitter and an identity. A nil identity means
// anonymous calls.
func New(sub Submitter, id identity.Identity) *Agent {
	if id == nil {
		id = identity.Anonymous{}
	}
	return &Agent{sub: sub, id: id}
}

// Sender returns the principal this agent's calls are attributed to.
func (a *Agent) Sender() principal.Principal {
	return a.id.Sender()
}

func (a *Agent) Submit(ctx context.Context, req *CallRequest) ([]byte, error) {
	if a == nil || a.sub == nil {
		return nil, errors.New("agent: no submitter configured")
	}
	env, err := Seal(req, a.id)
	if err != nil {
		return nil, err
	}
	return a.sub.SubmitEnvelope(ctx, env)
}
