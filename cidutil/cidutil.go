// Package cidutil derives content identifiers for archived callback documents.
//
// Every document ID is a CIDv1 with the "raw" multicodec over a sha2-256
// multihash of the exact bytes received.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DocumentID returns the CID of doc.
func DocumentID(doc []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(doc, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// DocumentIDString is DocumentID rendered in its default base32 form, or ""
// if hashing fails.
func DocumentIDString(doc []byte) string {
	id, err := DocumentID(doc)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes a CID string and requires it to be a raw sha2-256 CIDv1.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if err := checkShape(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Matches reports whether doc hashes to id.
func Matches(id cid.Cid, doc []byte) bool {
	got, err := DocumentID(doc)
	if err != nil {
		return false
	}
	return got.Equals(id)
}

func checkShape(id cid.Cid) error {
	pref := id.Prefix()
	if pref.Version != 1 || pref.Codec != cid.Raw || pref.MhType != multihash.SHA2_256 {
		return fmt.Errorf("cidutil: %s is not a raw sha2-256 CIDv1", id)
	}
	return nil
}
