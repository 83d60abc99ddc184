// Package signer computes the SHA-1 signatures WeChat uses for server URL
// verification and JS-SDK configuration.
package signer

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// ErrInvalidSignature is returned by CheckSignature on mismatch.
var ErrInvalidSignature = errors.New("signer: invalid signature")

// Signer accumulates items and signs them as the hex SHA-1 of the sorted
// items joined by Delimiter. The zero value joins with no delimiter.
type Signer struct {
	Delimiter string
	items     []string
}

// Add appends items to be signed.
func (s *Signer) Add(items ...string) {
	s.items = append(s.items, items...)
}

// Signature returns the lowercase hex SHA-1 signature. Added items are not
// reordered in place.
func (s *Signer) Signature() string {
	items := append([]string(nil), s.items...)
	sort.Strings(items)
	sum := sha1.Sum([]byte(strings.Join(items, s.Delimiter)))
	return hex.EncodeToString(sum[:])
}

// CheckSignature verifies a server callback signature over token, timestamp
// and nonce.
func CheckSignature(token, signature, timestamp, nonce string) error {
	var s Signer
	s.Add(token, timestamp, nonce)
	if subtle.ConstantTimeCompare([]byte(s.Signature()), []byte(signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// JSAPISignature returns the signature for wx.config.
func JSAPISignature(nonceStr, ticket, timestamp, url string) string {
	s := Signer{Delimiter: "&"}
	s.Add(
		"noncestr="+nonceStr,
		"jsapi_ticket="+ticket,
		"timestamp="+timestamp,
		"url="+url,
	)
	return s.Signature()
}
