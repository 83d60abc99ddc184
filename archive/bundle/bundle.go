// Package bundle moves archived callback documents between stores as a
// deterministic TAR file.
//
// Layout:
//
//	documents/<cid>   raw document bytes
//	index.json        optional, non-authoritative listing
//
// Entries are written in CID order with normalized headers, so exporting the
// same documents always yields the same bytes.
package bundle

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/cidutil"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

const (
	documentsDir = "documents/"
	indexName    = "index.json"
)

var epoch = time.Unix(0, 0).UTC()

type ExportOptions struct {
	// Labels maps free-form names (for example a MsgId or out_trade_no) to
	// document IDs and is recorded in index.json.
	Labels map[string]cid.Cid
	// IncludeIndex writes index.json after the documents.
	IncludeIndex bool
}

// Export writes the documents named by ids from store to w.
func Export(ctx context.Context, w io.Writer, store archive.Store, ids []cid.Cid, opts ExportOptions) error {
	if store == nil {
		return errors.New("bundle: nil store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return archive.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	idx := index{Version: FormatVersion, CIDCodec: "raw", Multihash: "sha2-256"}
	for _, k := range keys {
		id := uniq[k]
		doc, err := store.Get(ctx, id)
		if err != nil {
			return fail(fmt.Errorf("bundle: %s: %w", k, err))
		}
		if !cidutil.Matches(id, doc) {
			return fail(archive.ErrCIDMismatch)
		}
		if err := writeEntry(tw, documentsDir+k, doc); err != nil {
			return fail(err)
		}
		idx.Documents = append(idx.Documents, indexDocument{CID: k, Size: len(doc)})
	}

	if opts.IncludeIndex {
		names := make([]string, 0, len(opts.Labels))
		for name := range opts.Labels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if name == "" {
				return fail(errors.New("bundle: empty label"))
			}
			id := opts.Labels[name]
			if !id.Defined() {
				return fail(archive.ErrInvalidCID)
			}
			idx.Labels = append(idx.Labels, indexLabel{Name: name, CID: id.String()})
		}
		b, err := json.Marshal(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeEntry(tw, indexName, append(b, '\n')); err != nil {
			return fail(err)
		}
	}
	return tw.Close()
}

type ImportOptions struct {
	// IgnoreUnknown skips entries outside documents/ instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle from r into store and returns the imported IDs in
// bundle order. Every document must hash to the CID in its entry name.
func Import(ctx context.Context, r io.Reader, store archive.Store, opts ImportOptions) ([]cid.Cid, error) {
	if store == nil {
		return nil, errors.New("bundle: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var out []cid.Cid
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return out, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		}
		if name == indexName {
			continue
		}
		if !strings.HasPrefix(name, documentsDir) {
			if opts.IgnoreUnknown {
				continue
			}
			return out, fmt.Errorf("bundle: unknown entry %s", name)
		}

		id, err := cidutil.Parse(strings.TrimPrefix(name, documentsDir))
		if err != nil {
			return out, archive.ErrInvalidCID
		}
		if _, dup := seen[id.String()]; dup {
			return out, fmt.Errorf("bundle: duplicate document %s", id)
		}
		seen[id.String()] = struct{}{}

		doc, err := io.ReadAll(tr)
		if err != nil {
			return out, err
		}
		if !cidutil.Matches(id, doc) {
			return out, archive.ErrCIDMismatch
		}
		got, err := store.Put(ctx, doc)
		if err != nil {
			return out, err
		}
		if !got.Equals(id) {
			return out, archive.ErrCIDMismatch
		}
		out = append(out, id)
	}
}

// Labels reads index.json from a bundle and returns its labels. A bundle
// without an index yields an empty map.
func Labels(r io.Reader) (map[string]cid.Cid, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return map[string]cid.Cid{}, nil
		}
		if err != nil {
			return nil, err
		}
		if cleanPath(h.Name) != indexName {
			continue
		}
		var idx index
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return nil, fmt.Errorf("bundle: index: %w", err)
		}
		out := make(map[string]cid.Cid, len(idx.Labels))
		for _, l := range idx.Labels {
			id, err := cidutil.Parse(l.CID)
			if err != nil {
				return nil, fmt.Errorf("bundle: label %q: %w", l.Name, err)
			}
			out[l.Name] = id
		}
		return out, nil
	}
}

type index struct {
	Version   int             `json:"version"`
	CIDCodec  string          `json:"cidCodec"`
	Multihash string          `json:"multihash"`
	Documents []indexDocument `json:"documents"`
	Labels    []indexLabel    `json:"labels,omitempty"`
}

type indexDocument struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
