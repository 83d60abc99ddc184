package bundle_test

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/bundle"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/archive/memory"
	"xdao.co/wxmsg/cidutil"
)

func TestBundle_ExportIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id1, err := store.Put(ctx, []byte("<xml>hello</xml>"))
	if err != nil {
		t.Fatal(err)
	}
	id2, err := store.Put(ctx, []byte("<xml>world</xml>"))
	if err != nil {
		t.Fatal(err)
	}

	opts := bundle.ExportOptions{IncludeIndex: true, Labels: map[string]cid.Cid{"b": id2, "a": id1}}
	var outA, outB bytes.Buffer
	if err := bundle.Export(ctx, &outA, store, []cid.Cid{id2, id1, id2}, opts); err != nil {
		t.Fatal(err)
	}
	if err := bundle.Export(ctx, &outB, store, []cid.Cid{id1, id2}, opts); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memory.New()
	payload := []byte("<xml><return_code>SUCCESS</return_code></xml>")
	id, err := src.Put(ctx, payload)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	opts := bundle.ExportOptions{IncludeIndex: true, Labels: map[string]cid.Cid{"1217752501201407033233368018": id}}
	if err := bundle.Export(ctx, &buf, src, []cid.Cid{id}, opts); err != nil {
		t.Fatal(err)
	}

	dst, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ids, err := bundle.Import(ctx, bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || !ids[0].Equals(id) {
		t.Fatalf("imported IDs: %v", ids)
	}
	got, err := dst.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}

	labels, err := bundle.Labels(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if l, ok := labels["1217752501201407033233368018"]; !ok || !l.Equals(id) {
		t.Fatalf("labels: %v", labels)
	}
}

func TestBundle_ExportMissingDocument(t *testing.T) {
	id, err := cidutil.DocumentID([]byte("absent"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = bundle.Export(context.Background(), &buf, memory.New(), []cid.Cid{id}, bundle.ExportOptions{})
	if !archive.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBundle_ImportRejectsCIDMismatch(t *testing.T) {
	good := []byte("good")
	otherCID, err := cidutil.DocumentID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}

	// Name says "other" but bytes are "good".
	b := makeTar(t, "documents/"+otherCID.String(), good)
	_, err = bundle.Import(context.Background(), bytes.NewReader(b), memory.New(), bundle.ImportOptions{})
	if err != archive.ErrCIDMismatch {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestBundle_ImportUnknownEntries(t *testing.T) {
	ctx := context.Background()
	b := makeTar(t, "notes.txt", []byte("hi"))
	if _, err := bundle.Import(ctx, bytes.NewReader(b), memory.New(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("unknown entry should fail by default")
	}
	ids, err := bundle.Import(ctx, bytes.NewReader(b), memory.New(), bundle.ImportOptions{IgnoreUnknown: true})
	if err != nil || len(ids) != 0 {
		t.Fatalf("IgnoreUnknown: ids=%v err=%v", ids, err)
	}

	b = makeTar(t, "../escape", []byte("x"))
	if _, err := bundle.Import(ctx, bytes.NewReader(b), memory.New(), bundle.ImportOptions{IgnoreUnknown: true}); err == nil {
		t.Fatalf("path traversal should fail")
	}

	b = makeTar(t, "documents/not-a-cid", []byte("x"))
	if _, err := bundle.Import(ctx, bytes.NewReader(b), memory.New(), bundle.ImportOptions{}); err != archive.ErrInvalidCID {
		t.Fatalf("expected ErrInvalidCID, got %v", err)
	}
}

func makeTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	h := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(h); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
