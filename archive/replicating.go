package archive

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/cidutil"
)

// NamedStore pairs a Store with a stable backend name.
type NamedStore struct {
	Name  string
	Store Store
}

// Replicating writes every document to all Backends and reads them back in
// order.
type Replicating struct {
	Backends []NamedStore
}

var _ Store = Replicating{}

// PutAll writes doc to every backend. It returns the ID computed from doc and
// the ID each backend reported, keyed by backend name. A backend reporting a
// different ID fails the write with ErrCIDMismatch.
func (r Replicating) PutAll(ctx context.Context, doc []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.DocumentID(doc)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(r.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("archive: Replicating has no backends")
	}

	out := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.Store == nil {
			return cid.Undef, nil, fmt.Errorf("archive: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(ctx, doc)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("archive: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (r Replicating) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(ctx, doc)
	return id, err
}

func (r Replicating) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(ctx, id)
		if err == nil {
			return out, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (r Replicating) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, b := range r.Backends {
		if b.Store == nil {
			continue
		}
		ok, err := b.Store.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
