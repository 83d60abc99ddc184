package grpcarchive

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// The service uses protobuf well-known wrapper types, so no generated code
// is needed:
//
//	service Archive {
//	  rpc Put(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Get(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	  rpc Has(google.protobuf.StringValue) returns (google.protobuf.BoolValue);
//	}
//
// Document IDs on the wire are raw sha2-256 CIDv1 strings.
const (
	ServiceName = "xdao.wxmsg.archive.v1.Archive"
	methodPut   = "/" + ServiceName + "/Put"
	methodGet   = "/" + ServiceName + "/Get"
	methodHas   = "/" + ServiceName + "/Has"
)

// RegisterArchiveServer serves store on s.
//
// Requests are checked before they reach the store: IDs must parse as
// document IDs, Put rejects empty documents, and neither Put nor Get answers
// with an ID or document that does not match the bytes involved.
func RegisterArchiveServer(s grpc.ServiceRegistrar, store archive.Store) {
	s.RegisterService(&serviceDesc, store)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*archive.Store)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: unary(methodPut, putDocument)},
		{MethodName: "Get", Handler: unary(methodGet, getDocument)},
		{MethodName: "Has", Handler: unary(methodHas, hasDocument)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "archive.proto",
}

// unary decodes a Req and runs fn against the registered store, going
// through the server interceptor when one is installed.
func unary[Req any, PReq interface {
	*Req
	proto.Message
}](method string, fn func(context.Context, archive.Store, PReq) (proto.Message, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		store := srv.(archive.Store)
		if interceptor == nil {
			return fn(ctx, store, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(ctx, store, req.(PReq))
		})
	}
}

func putDocument(ctx context.Context, store archive.Store, in *wrapperspb.BytesValue) (proto.Message, error) {
	doc := in.GetValue()
	if len(doc) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty document")
	}
	want, err := cidutil.DocumentID(doc)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := store.Put(ctx, doc)
	if err != nil {
		return nil, mapErr(err)
	}
	if !id.Equals(want) {
		return nil, mapErr(archive.ErrCIDMismatch)
	}
	return wrapperspb.String(id.String()), nil
}

func getDocument(ctx context.Context, store archive.Store, in *wrapperspb.StringValue) (proto.Message, error) {
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, err
	}
	doc, err := store.Get(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	if !cidutil.Matches(id, doc) {
		return nil, mapErr(archive.ErrCIDMismatch)
	}
	return wrapperspb.Bytes(doc), nil
}

func hasDocument(ctx context.Context, store archive.Store, in *wrapperspb.StringValue) (proto.Message, error) {
	id, err := parseID(in.GetValue())
	if err != nil {
		return nil, err
	}
	ok, err := store.Has(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}

func parseID(s string) (cid.Cid, error) {
	id, err := cidutil.Parse(s)
	if err != nil {
		return cid.Undef, mapErr(archive.ErrInvalidCID)
	}
	return id, nil
}
