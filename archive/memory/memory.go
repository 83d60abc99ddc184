// Package memory is an in-process archive.Store.
package memory

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// Store keeps documents in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ archive.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: map[string][]byte{}}
}

func (s *Store) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.DocumentID(doc)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = map[string][]byte{}
	}
	if existing, ok := s.docs[key]; ok {
		if string(existing) != string(doc) {
			return cid.Undef, archive.ErrImmutable
		}
		return id, nil
	}
	s.docs[key] = append([]byte(nil), doc...)
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, archive.ErrInvalidCID
	}
	s.mu.RLock()
	b, ok := s.docs[id.KeyString()]
	s.mu.RUnlock()
	if !ok {
		return nil, archive.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	s.mu.RLock()
	_, ok := s.docs[id.KeyString()]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
