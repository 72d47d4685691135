package grpcagent

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/principal"
)

// Handler executes one verified management call. Implemented by
// host.Host.
type Handler interface {
	Call(ctx context.Context, sender principal.Principal, req *agent.CallRequest) ([]byte, error)
}

// Server exposes a Handler over the Agent gRPC service. Envelope
// signatures are verified here; the handler sees only authenticated
// senders.
type Server struct {
	UnimplementedAgentServer
	Handler Handler
}

func (s *Server) Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Handler == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing handler")
	}
	var env agent.Envelope
	if err := codec.Unmarshal(in.GetValue(), &env); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed envelope")
	}
	sender, req, err := env.Verify()
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	out, err := s.Handler.Call(ctx, sender, req)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(out), nil
}
