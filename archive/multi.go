package archive

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// Multi reads from Stores in slice order and writes only to the first.
type Multi struct {
	Stores []Store
}

var _ Store = Multi{}

func (m Multi) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	if len(m.Stores) == 0 {
		return cid.Undef, errors.New("archive: Multi has no stores")
	}
	return m.Stores[0].Put(ctx, doc)
}

func (m Multi) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m Multi) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, s := range m.Stores {
		ok, err := s.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
