package archive

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"xdao.co/wxmsg/cidutil"
)

// Recorder archives handled callback bodies and reports redeliveries.
//
// WeChat retries a callback until it sees a timely answer, so the same body
// can arrive several times. Callers check Seen before handling a body and
// Commit it only once handling succeeded, so a failed attempt is handled
// again on redelivery. A nil Recorder or one without a Store records nothing
// and never reports a body as seen.
type Recorder struct {
	Store  Store
	Logger *zap.Logger
}

// NewRecorder returns a Recorder writing to s. A nil logger discards output.
func NewRecorder(s Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{Store: s, Logger: logger}
}

// Seen returns the ID of doc and whether it was committed before. It does
// not store anything.
func (r *Recorder) Seen(ctx context.Context, doc []byte) (id cid.Cid, seen bool, err error) {
	if len(doc) == 0 {
		return cid.Undef, false, errors.New("archive: empty document")
	}
	id, err = cidutil.DocumentID(doc)
	if err != nil {
		return cid.Undef, false, err
	}
	if r == nil || r.Store == nil {
		return id, false, nil
	}
	seen, err = r.Store.Has(ctx, id)
	if err != nil {
		r.log().Error("archive lookup failed", zap.Stringer("cid", id), zap.Error(err))
		return id, false, err
	}
	if seen {
		r.log().Info("duplicate callback", zap.Stringer("cid", id), zap.Int("bytes", len(doc)))
	}
	return id, seen, nil
}

// Commit stores a handled doc. Committing the same body again is a no-op.
func (r *Recorder) Commit(ctx context.Context, doc []byte) (cid.Cid, error) {
	if len(doc) == 0 {
		return cid.Undef, errors.New("archive: empty document")
	}
	if r == nil || r.Store == nil {
		return cidutil.DocumentID(doc)
	}
	id, err := r.Store.Put(ctx, doc)
	if err != nil {
		r.log().Error("archive put failed", zap.Int("bytes", len(doc)), zap.Error(err))
		return cid.Undef, err
	}
	r.log().Debug("archived callback", zap.Stringer("cid", id), zap.Int("bytes", len(doc)))
	return id, nil
}

func (r *Recorder) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
