// Package localfs is an archive.Store on the local filesystem.
//
// Documents live at <root>/<first two CID chars>/<CID>, read-only once
// written.
package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// Store is a directory of immutable documents keyed by CID.
type Store struct {
	root string
}

var _ archive.Store = (*Store)(nil)

// New opens a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Put writes doc to a temp file and hard-links it into place, so readers
// never observe a partial document and concurrent writers of the same bytes
// agree on one file.
func (s *Store) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.DocumentID(doc)
	if err != nil {
		return cid.Undef, err
	}

	path := s.pathFor(id)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cid.Undef, err
	}
	if _, err := os.Stat(path); err == nil {
		return s.checkExisting(ctx, id, doc)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return cid.Undef, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		return cid.Undef, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return cid.Undef, err
	}
	if err := tmp.Close(); err != nil {
		return cid.Undef, err
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		return cid.Undef, err
	}
	if err := os.Link(tmpName, path); err != nil {
		if os.IsExist(err) {
			return s.checkExisting(ctx, id, doc)
		}
		return cid.Undef, err
	}
	return id, nil
}

func (s *Store) checkExisting(ctx context.Context, id cid.Cid, doc []byte) (cid.Cid, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		// Present but unreadable or corrupted.
		return cid.Undef, archive.ErrImmutable
	}
	if string(existing) != string(doc) {
		return cid.Undef, archive.ErrImmutable
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, archive.ErrInvalidCID
	}
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, archive.ErrNotFound
		}
		return nil, err
	}
	if !cidutil.Matches(id, b) {
		return nil, archive.ErrCIDMismatch
	}
	return b, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	_, err := os.Stat(s.pathFor(id))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// List returns the IDs of every stored document in directory order.
func (s *Store) List(ctx context.Context) ([]cid.Cid, error) {
	var out []cid.Cid
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, derr := cidutil.Parse(d.Name())
		if derr != nil {
			return nil
		}
		out = append(out, id)
		return nil
	})
	return out, err
}

func (s *Store) pathFor(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str)
	}
	return filepath.Join(s.root, str[:2], str)
}
