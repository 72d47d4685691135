package host

import (
	"context"

	"xdao.co/candep/agent"
)

// InProc adapts a Host into an agent.Submitter, so clients can run
// against a host in the same process. Envelopes go through the same
// verification path as the gRPC transport.
type InProc struct {
	Host *Host
}

var _ agent.Submitter = (*InProc)(nil)

func (p *InProc) SubmitEnvelope(ctx context.Context, env *agent.Envelope) ([]byte, error) {
	sender, req, err := env.Verify()
	if err != nil {
		return nil, err
	}
	return p.Host.Call(ctx, sender, req)
}
