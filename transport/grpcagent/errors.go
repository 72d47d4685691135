package grpcagent

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/candep/mgmt"
)

// mapRPC translates a gRPC error into the management error taxonomy.
func mapRPC(method string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &mgmt.Error{Kind: mgmt.KindTransport, Method: method, Message: "call failed", Cause: err}
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &mgmt.Error{Kind: mgmt.KindValidation, Method: method, Message: st.Message(), Cause: err}
	case codes.FailedPrecondition, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied, codes.Unimplemented:
		return &mgmt.Error{Kind: mgmt.KindProtocol, Method: method, Message: st.Message(), Cause: err}
	default:
		// Unavailable, DeadlineExceeded, Canceled and everything else:
		// the call did not complete.
		return &mgmt.Error{Kind: mgmt.KindTransport, Method: method, Message: st.Message(), Cause: err}
	}
}

// mapErr translates a management error into a gRPC status for the
// server side.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var me *mgmt.Error
	if !errors.As(err, &me) {
		return status.Error(codes.Internal, err.Error())
	}
	switch me.Kind {
	case mgmt.KindValidation:
		return status.Error(codes.InvalidArgument, me.Error())
	case mgmt.KindProtocol:
		return status.Error(codes.FailedPrecondition, me.Error())
	default:
		return status.Error(codes.Unavailable, me.Error())
	}
}
