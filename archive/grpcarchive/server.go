package grpcarchive

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/wxmsg/archive"
)

var errNoStore = errors.New("grpcarchive: missing store")

// Server is the store wxarchived registers: it logs writes and failures and
// refuses calls until Store is set.
type Server struct {
	Store  archive.Store
	Logger *zap.Logger
}

var _ archive.Store = (*Server)(nil)

func (s *Server) Put(ctx context.Context, doc []byte) (cid.Cid, error) {
	if s == nil || s.Store == nil {
		return cid.Undef, errNoStore
	}
	id, err := s.Store.Put(ctx, doc)
	if err != nil {
		s.log().Warn("put failed", zap.Int("bytes", len(doc)), zap.Error(err))
		return cid.Undef, err
	}
	s.log().Debug("put", zap.Stringer("cid", id), zap.Int("bytes", len(doc)))
	return id, nil
}

func (s *Server) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if s == nil || s.Store == nil {
		return nil, errNoStore
	}
	doc, err := s.Store.Get(ctx, id)
	if err != nil && !errors.Is(err, archive.ErrNotFound) {
		s.log().Warn("get failed", zap.Stringer("cid", id), zap.Error(err))
	}
	return doc, err
}

func (s *Server) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if s == nil || s.Store == nil {
		return false, errNoStore
	}
	return s.Store.Has(ctx, id)
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
