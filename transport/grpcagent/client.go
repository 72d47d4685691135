package grpcagent

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/candep/agent"
	"xdao.co/candep/codec"
	"xdao.co/candep/mgmt"
)

// Client delivers sealed envelopes to a host over gRPC. It implements
// agent.Submitter.
type Client struct {
	cc     *grpc.ClientConn
	client AgentClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ agent.Submitter = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero. Chunked
	// installs need this above the chunk size plus envelope overhead.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewAgentClient(cc), Timeout: 0}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) SubmitEnvelope(ctx context.Context, env *agent.Envelope) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, &mgmt.Error{Kind: mgmt.KindTransport, Method: env.Method, Message: "client not connected"}
	}
	b, err := codec.Marshal(env)
	if err != nil {
		return nil, &mgmt.Error{Kind: mgmt.KindValidation, Method: env.Method, Message: "envelope encoding failed", Cause: err}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	reply, err := c.client.Call(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return nil, mapRPC(env.Method, err)
	}
	return reply.GetValue(), nil
}
