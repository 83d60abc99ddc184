package xmlmap

import (
	"encoding/xml"
	"strings"
)

// CDATA renders <name><![CDATA[value]]></name>. A "]]>" inside value is split
// across two CDATA sections so the element stays well-formed.
func CDATA(name, value string) string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(name)
	sb.WriteString("><![CDATA[")
	sb.WriteString(strings.ReplaceAll(value, "]]>", "]]]]><![CDATA[>"))
	sb.WriteString("]]></")
	sb.WriteString(name)
	sb.WriteString(">")
	return sb.String()
}

// Leaf renders <name>value</name> with value escaped as character data.
func Leaf(name, value string) string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(name)
	sb.WriteString(">")
	_ = xml.EscapeText(&sb, []byte(value))
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteString(">")
	return sb.String()
}

// Element wraps already-rendered inner XML in <name>…</name>.
func Element(name string, inner ...string) string {
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(name)
	sb.WriteString(">")
	for _, s := range inner {
		sb.WriteString(s)
	}
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteString(">")
	return sb.String()
}
