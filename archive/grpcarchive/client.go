// Package grpcarchive exposes an archive.Store over gRPC and consumes one
// remotely.
package grpcarchive

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// Client is an archive.Store backed by a remote Archive service. It checks
// every returned ID and document against the local CID computation.
type Client struct {
	cc *grpc.ClientConn

	// Timeout bounds each RPC when non-zero.
	Timeout time.Duration
}

var _ archive.Store = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes sets both send and receive limits when non-zero.
	MaxMsgBytes int

	// Extra is appended to the default dial options.
	Extra []grpc.DialOption
}

// Dial creates a client for target. The connection is established lazily on
// the first RPC.
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
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	expected, err := cidutil.DocumentID(doc)
	if err != nil {
		return cid.Undef, err
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodPut, wrapperspb.Bytes(doc), reply); err != nil {
		return cid.Undef, mapRPC(err)
	}
	id, err := cidutil.Parse(reply.GetValue())
	if err != nil {
		return cid.Undef, archive.ErrInvalidCID
	}
	if !id.Equals(expected) {
		return cid.Undef, archive.ErrCIDMismatch
	}
	return id, nil
}

func (c *Client) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, archive.ErrInvalidCID
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodGet, wrapperspb.String(id.String()), reply); err != nil {
		return nil, mapRPC(err)
	}
	b := reply.GetValue()
	if !cidutil.Matches(id, b) {
		return nil, archive.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	ctx, cancel := c.rpcContext(ctx)
	defer cancel()

	reply := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, methodHas, wrapperspb.String(id.String()), reply); err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}
