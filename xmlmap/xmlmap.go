// Package xmlmap decodes XML documents into generic nested mappings and
// writes the leaf shapes used by the WeChat XML envelope.
//
// Decoding rules:
//   - an element with only text decodes to its whitespace-trimmed string;
//   - an empty element decodes to nil;
//   - an element with children decodes to a Map keyed by child tag;
//   - repeated child tags collapse into a []any in document order;
//   - attributes are stored under "@name", mixed text under "#text".
//
// CDATA sections are treated as ordinary character data.
package xmlmap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// ErrNoRoot is returned when a document has no root element.
var ErrNoRoot = errors.New("xmlmap: document has no root element")

// Map is a decoded XML element.
type Map map[string]any

// Parse decodes data and returns a Map holding the root element under its tag.
func Parse(data []byte) (Map, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNoRoot
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		v, err := decodeElement(dec, start)
		if err != nil {
			return nil, err
		}
		return Map{start.Name.Local: v}, nil
	}
}

// ParseRoot decodes data and returns the children of the root element, which
// must be named root. An empty root element yields an empty Map.
func ParseRoot(data []byte, root string) (Map, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	v, ok := m[root]
	if !ok {
		return nil, &RootError{Want: root}
	}
	switch t := v.(type) {
	case nil:
		return Map{}, nil
	case Map:
		return t, nil
	default:
		return nil, &RootError{Want: root}
	}
}

// RootError reports a document whose root element is missing or is a text leaf.
type RootError struct {
	Want string
}

func (e *RootError) Error() string {
	return "xmlmap: missing <" + e.Want + "> root element"
}

func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	var children Map
	var text strings.Builder
	for _, a := range start.Attr {
		if children == nil {
			children = Map{}
		}
		children["@"+a.Name.Local] = a.Value
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			v, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			if children == nil {
				children = Map{}
			}
			children.add(t.Name.Local, v)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			s := strings.TrimSpace(text.String())
			if children == nil {
				if s == "" {
					return nil, nil
				}
				return s, nil
			}
			if s != "" {
				children["#text"] = s
			}
			return children, nil
		}
	}
}

func (m Map) add(key string, v any) {
	existing, ok := m[key]
	if !ok {
		m[key] = v
		return
	}
	if list, ok := existing.([]any); ok {
		m[key] = append(list, v)
		return
	}
	m[key] = []any{existing, v}
}

// String returns the text leaf stored under key.
func (m Map) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case nil:
		return "", true
	default:
		return "", false
	}
}

// Map returns the nested element stored under key.
func (m Map) Map(key string) (Map, bool) {
	v, ok := m[key].(Map)
	return v, ok
}

// List returns the values stored under key as a list. A single value becomes a
// one-element list; an absent or empty value becomes nil.
func (m Map) List(key string) []any {
	return AsList(m[key])
}

// AsList normalizes a decoded value into a list.
func AsList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}
