package grpcarchive

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/archive/memory"
	"xdao.co/wxmsg/archive/testkit"
	"xdao.co/wxmsg/cidutil"
)

func serve(t *testing.T, store archive.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterArchiveServer(srv, &Server{Store: store})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCArchive_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) archive.Store {
		return serve(t, memory.New())
	})
}

func TestGRPCArchive_LocalFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	client := serve(t, store)

	payload := []byte("<xml><MsgType><![CDATA[event]]></MsgType></xml>")
	id, err := client.Put(ctx, payload)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := client.Has(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Has: ok=%v err=%v", ok, err)
	}
	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch")
	}
	local, err := store.Get(ctx, id)
	if err != nil || string(local) != string(payload) {
		t.Fatalf("server store missing document: %v", err)
	}
}

func TestGRPCArchive_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	client := serve(t, memory.New())

	missing, err := cidutil.DocumentID([]byte("never stored"))
	if err != nil {
		t.Fatalf("DocumentID: %v", err)
	}
	if _, err := client.Get(ctx, missing); err != archive.ErrNotFound {
		t.Fatalf("Get missing: got %v want ErrNotFound", err)
	}
	if _, err := client.Get(ctx, cid.Undef); err != archive.ErrInvalidCID {
		t.Fatalf("Get undef: got %v want ErrInvalidCID", err)
	}

	reply := new(wrapperspb.BoolValue)
	err = client.cc.Invoke(ctx, methodHas, wrapperspb.String("not-a-cid"), reply)
	if err == nil {
		t.Fatalf("Has with bad CID: got %v, want error", reply)
	}
	if mapRPC(err) != archive.ErrInvalidCID {
		t.Fatalf("Has with bad CID: got %v want ErrInvalidCID", mapRPC(err))
	}

	// Valid CIDs that are not document IDs are refused too.
	sum, err := multihash.Sum([]byte("x"), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Get(ctx, cid.NewCidV1(cid.DagCBOR, sum)); err != archive.ErrInvalidCID {
		t.Fatalf("Get dag-cbor CID: got %v want ErrInvalidCID", err)
	}

	empty := new(wrapperspb.StringValue)
	err = client.cc.Invoke(ctx, methodPut, wrapperspb.Bytes(nil), empty)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Put empty: got %v want InvalidArgument", err)
	}
}

// swapStore answers every Get with other bytes.
type swapStore struct {
	archive.Store
}

func (s swapStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if _, err := s.Store.Get(ctx, id); err != nil {
		return nil, err
	}
	return []byte("tampered"), nil
}

func TestGRPCArchive_ServerRefusesMismatchedDocuments(t *testing.T) {
	ctx := context.Background()
	client := serve(t, swapStore{Store: memory.New()})

	id, err := client.Put(ctx, []byte("<xml></xml>"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := client.Get(ctx, id); err != archive.ErrCIDMismatch {
		t.Fatalf("Get: got %v want ErrCIDMismatch", err)
	}
}

func TestGRPCArchive_MissingStore(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterArchiveServer(srv, &Server{})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	reply := new(wrapperspb.StringValue)
	err = client.cc.Invoke(context.Background(), methodPut, wrapperspb.Bytes([]byte("doc")), reply)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Put without store: got %v want FailedPrecondition", err)
	}
}

func TestMapErr_RoundTrip(t *testing.T) {
	for _, want := range []error{archive.ErrNotFound, archive.ErrInvalidCID, archive.ErrCIDMismatch, archive.ErrImmutable} {
		if got := mapRPC(mapErr(want)); got != want {
			t.Fatalf("mapRPC(mapErr(%v)) = %v", want, got)
		}
	}
}
