package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) archive.Store {
		t.Helper()
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte("original")
	id, err := s.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := s.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := s.Get(ctx, id); err != archive.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, archive.ErrCIDMismatch)
	}
	if _, err := s.Put(ctx, orig); err != archive.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, archive.ErrImmutable)
	}
}

func TestLocalFS_LayoutAndList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := s.Put(ctx, []byte("<xml/>"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	str := id.String()
	info, err := os.Stat(filepath.Join(dir, str[:2], str))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o444 {
		t.Fatalf("mode: got %v want 0444", info.Mode().Perm())
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 || !ids[0].Equals(id) {
		t.Fatalf("List: got %v want [%s]", ids, id)
	}

	entries, err := os.ReadDir(filepath.Join(dir, str[:2]))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestLocalFS_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") should fail")
	}
}
