package fields

import (
	"sort"
	"strings"

	"xdao.co/wxmsg/xmlmap"
)

// MapField holds a nested XML block as a generic mapping, for structures the
// schema does not model field by field (ScanCodeInfo, SendPicsInfo, …).
type MapField struct{ base }

func Map(name string, opts ...Option) *MapField {
	return &MapField{newBase(name, opts)}
}

func (f *MapField) Convert(value any) (any, error) { return value, nil }

// ToXML renders nested maps as elements with sorted keys and scalar leaves as
// CDATA. Lists repeat the enclosing tag.
func (f *MapField) ToXML(value any) (string, error) {
	var sb strings.Builder
	writeNested(&sb, f.name, value)
	return sb.String(), nil
}

func (f *MapField) FromXML(value any) (any, error) { return value, nil }

func writeNested(sb *strings.Builder, name string, value any) {
	if m, ok := asMap(value); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var inner strings.Builder
		for _, k := range keys {
			writeNested(&inner, k, m[k])
		}
		sb.WriteString(xmlmap.Element(name, inner.String()))
		return
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			writeNested(sb, name, item)
		}
		return
	}
	if value == nil {
		sb.WriteString(xmlmap.Element(name))
		return
	}
	sb.WriteString(xmlmap.CDATA(name, toText(value)))
}
