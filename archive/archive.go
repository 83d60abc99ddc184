// Package archive stores raw callback documents by content.
//
// Every document is keyed by its CIDv1 (raw, sha2-256). Stores never
// rewrite a stored document, and Put of bytes already present returns the
// same ID without error.
package archive

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// Store is the archive contract shared by every backend.
//
// Put must be idempotent. Get must return ErrNotFound when id is absent and
// must never return bytes that do not hash to id.
type Store interface {
	Put(ctx context.Context, doc []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

var (
	ErrNotFound    = errors.New("archive: not found")
	ErrInvalidCID  = errors.New("archive: invalid cid")
	ErrCIDMismatch = errors.New("archive: cid mismatch")
	ErrImmutable   = errors.New("archive: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
