package archive_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/memory"
	"xdao.co/wxmsg/archive/testkit"
	"xdao.co/wxmsg/cidutil"
)

// liar returns the ID of a different document from Put.
type liar struct{ archive.Store }

func (l liar) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	return l.Store.Put(ctx, append([]byte("x"), doc...))
}

// broken fails every call.
type broken struct{}

var errBroken = errors.New("broken backend")

func (broken) Put(context.Context, []byte) (cid.Cid, error) { return cid.Undef, errBroken }
func (broken) Get(context.Context, cid.Cid) ([]byte, error) { return nil, errBroken }
func (broken) Has(context.Context, cid.Cid) (bool, error)   { return false, errBroken }

func TestMulti_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) archive.Store {
		return archive.Multi{Stores: []archive.Store{memory.New(), memory.New()}}
	})
}

func TestReplicating_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) archive.Store {
		return archive.Replicating{Backends: []archive.NamedStore{
			{Name: "a", Store: memory.New()},
			{Name: "b", Store: memory.New()},
		}}
	})
}

func TestMulti_WritesFirstReadsInOrder(t *testing.T) {
	ctx := context.Background()
	first, second := memory.New(), memory.New()
	m := archive.Multi{Stores: []archive.Store{first, second}}

	id, err := second.Put(ctx, []byte("only in second"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get fallback failed: %v", err)
	}
	if string(got) != "only in second" {
		t.Fatalf("Get fallback bytes: %q", got)
	}

	if _, err := m.Put(ctx, []byte("new")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if first.Len() != 1 || second.Len() != 1 {
		t.Fatalf("Put should write first only: first=%d second=%d", first.Len(), second.Len())
	}

	if _, err := (archive.Multi{}).Put(ctx, []byte("x")); err == nil {
		t.Fatalf("Put with no stores should fail")
	}
}

func TestMulti_StopsOnBackendError(t *testing.T) {
	ctx := context.Background()
	ok := memory.New()
	id, err := ok.Put(ctx, []byte("doc"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	m := archive.Multi{Stores: []archive.Store{broken{}, ok}}
	if _, err := m.Get(ctx, id); !errors.Is(err, errBroken) {
		t.Fatalf("Get: got %v want errBroken", err)
	}
}

func TestReplicating_PutAll(t *testing.T) {
	ctx := context.Background()
	a, b := memory.New(), memory.New()
	r := archive.Replicating{Backends: []archive.NamedStore{{Name: "a", Store: a}, {Name: "b", Store: b}}}

	doc := []byte("<xml><return_code>SUCCESS</return_code></xml>")
	id, per, err := r.PutAll(ctx, doc)
	if err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	if len(per) != 2 || !per["a"].Equals(id) || !per["b"].Equals(id) {
		t.Fatalf("per-backend IDs: %v", per)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("replica counts: a=%d b=%d", a.Len(), b.Len())
	}
}

func TestReplicating_MismatchAndErrors(t *testing.T) {
	ctx := context.Background()
	r := archive.Replicating{Backends: []archive.NamedStore{
		{Name: "good", Store: memory.New()},
		{Name: "liar", Store: liar{memory.New()}},
	}}
	if _, err := r.Put(ctx, []byte("doc")); err != archive.ErrCIDMismatch {
		t.Fatalf("Put: got %v want ErrCIDMismatch", err)
	}

	r = archive.Replicating{Backends: []archive.NamedStore{{Name: "down", Store: broken{}}}}
	if _, err := r.Put(ctx, []byte("doc")); !errors.Is(err, errBroken) {
		t.Fatalf("Put: got %v want errBroken", err)
	}

	if _, err := (archive.Replicating{}).Put(ctx, []byte("doc")); err == nil {
		t.Fatalf("Put with no backends should fail")
	}
}

func TestRecorder_SeenAfterCommit(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)
	store := memory.New()
	rec := archive.NewRecorder(store, zap.New(core))

	doc := []byte("<xml><MsgId>1234567890123456</MsgId></xml>")
	id1, seen, err := rec.Seen(ctx, doc)
	if err != nil {
		t.Fatalf("Seen(1) failed: %v", err)
	}
	if seen {
		t.Fatalf("first delivery reported as seen")
	}
	if ok, _ := store.Has(ctx, id1); ok {
		t.Fatalf("Seen stored the document")
	}

	// A delivery that was never committed is not a duplicate.
	if _, seen, _ := rec.Seen(ctx, doc); seen {
		t.Fatalf("uncommitted delivery reported as seen")
	}

	id2, err := rec.Commit(ctx, doc)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !id1.Equals(id2) {
		t.Fatalf("IDs differ: %s vs %s", id1, id2)
	}
	if _, err := rec.Commit(ctx, doc); err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if _, seen, err := rec.Seen(ctx, doc); err != nil || !seen {
		t.Fatalf("committed delivery: seen=%v err=%v", seen, err)
	}
	if n := logs.FilterMessage("duplicate callback").Len(); n != 1 {
		t.Fatalf("duplicate log entries: got %d want 1", n)
	}
}

func TestRecorder_WithoutStore(t *testing.T) {
	var rec *archive.Recorder
	doc := []byte("doc")
	id, seen, err := rec.Seen(context.Background(), doc)
	if err != nil || seen {
		t.Fatalf("nil Recorder: id=%s seen=%v err=%v", id, seen, err)
	}
	if !cidutil.Matches(id, doc) {
		t.Fatalf("nil Recorder returned wrong ID")
	}
	committed, err := rec.Commit(context.Background(), doc)
	if err != nil || !committed.Equals(id) {
		t.Fatalf("nil Recorder Commit: id=%s err=%v", committed, err)
	}
	if _, _, err := rec.Seen(context.Background(), nil); err == nil {
		t.Fatalf("empty document should fail")
	}
	if _, err := rec.Commit(context.Background(), nil); err == nil {
		t.Fatalf("empty document should fail")
	}
}

func TestRecorder_StoreFailure(t *testing.T) {
	rec := archive.NewRecorder(broken{}, nil)
	if _, _, err := rec.Seen(context.Background(), []byte("doc")); !errors.Is(err, errBroken) {
		t.Fatalf("Seen: got %v want errBroken", err)
	}
	if _, err := rec.Commit(context.Background(), []byte("doc")); !errors.Is(err, errBroken) {
		t.Fatalf("Commit: got %v want errBroken", err)
	}
}
