// Package testkit holds the conformance suite every archive.Store backend
// runs from its own tests.
package testkit

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// NewStore constructs a fresh, empty Store for one subtest.
type NewStore func(t *testing.T) archive.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("<xml><MsgType><![CDATA[text]]></MsgType></xml>")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.DocumentID(want)
		if err != nil {
			t.Fatalf("DocumentID failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		if !cidutil.Matches(id, got) {
			t.Fatalf("Get returned bytes not matching requested CID")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := cidutil.DocumentID(b)
		if err != nil {
			t.Fatalf("DocumentID failed: %v", err)
		}

		ok, err := s.Has(ctx, id)
		if err != nil {
			t.Fatalf("Has failed: %v", err)
		}
		if ok {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := s.Get(ctx, id); !archive.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		ok, err = s.Has(ctx, id)
		if err != nil {
			t.Fatalf("Has failed: %v", err)
		}
		if !ok {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if ok, _ := s.Has(ctx, undef); ok {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("ConcurrentPut", func(t *testing.T) {
		s := newStore(t)
		doc := []byte("retried delivery")
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Put(ctx, doc); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Put failed: %v", err)
		}
	})
}
