// Package grpcagent carries sealed call envelopes over gRPC.
//
// We intentionally use protobuf well-known wrapper types so this
// package does not require a protoc/codegen toolchain: the envelope
// itself is CBOR inside a BytesValue.
package grpcagent

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AgentServer is the server API for the Agent gRPC service.
type AgentServer interface {
	Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedAgentServer can be embedded to have forward compatible
// implementations.
type UnimplementedAgentServer struct{}

func (UnimplementedAgentServer) Call(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Call not implemented")
}

// RegisterAgentServer registers the Agent service on a gRPC server.
func RegisterAgentServer(s grpc.ServiceRegistrar, srv AgentServer) {
	s.RegisterService(&Agent_ServiceDesc, srv)
}

// AgentClient is the client API for the Agent gRPC service.
type AgentClient interface {
	Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type agentClient struct{ cc grpc.ClientConnInterface }

func NewAgentClient(cc grpc.ClientConnInterface) AgentClient { return &agentClient{cc: cc} }

func (c *agentClient) Call(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/candep.transport.grpcagent.v1.Agent/Call", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Agent_Call_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/candep.transport.grpcagent.v1.Agent/Call"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServer).Call(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Agent_ServiceDesc is the grpc.ServiceDesc for the Agent service.
var Agent_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "candep.transport.grpcagent.v1.Agent",
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: _Agent_Call_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agent.proto",
}
