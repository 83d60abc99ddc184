package xmlmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_FlatAndNested(t *testing.T) {
	doc := []byte(`<xml>
<ToUserName><![CDATA[toUser]]></ToUserName>
<CreateTime>1348831860</CreateTime>
<Empty></Empty>
<Image><MediaId><![CDATA[media_id]]></MediaId></Image>
</xml>`)

	m, err := ParseRoot(doc, "xml")
	require.NoError(t, err)

	s, ok := m.String("ToUserName")
	require.True(t, ok)
	require.Equal(t, "toUser", s)
	require.Equal(t, "1348831860", m["CreateTime"])
	require.Nil(t, m["Empty"])

	img, ok := m.Map("Image")
	require.True(t, ok)
	require.Equal(t, "media_id", img["MediaId"])
}

func TestParse_RepeatedTagsBecomeList(t *testing.T) {
	doc := []byte(`<xml><Articles><item><Title>a</Title></item><item><Title>b</Title></item></Articles></xml>`)
	m, err := ParseRoot(doc, "xml")
	require.NoError(t, err)

	articles, ok := m.Map("Articles")
	require.True(t, ok)
	items := articles.List("item")
	require.Len(t, items, 2)
	require.Equal(t, Map{"Title": "a"}, items[0])
	require.Equal(t, Map{"Title": "b"}, items[1])
}

func TestParse_SingleItemListNormalization(t *testing.T) {
	doc := []byte(`<xml><Articles><item><Title>a</Title></item></Articles></xml>`)
	m, err := ParseRoot(doc, "xml")
	require.NoError(t, err)
	articles, _ := m.Map("Articles")
	require.Len(t, articles.List("item"), 1)
	require.Nil(t, AsList(nil))
}

func TestParse_AttributesAndMixedText(t *testing.T) {
	m, err := Parse([]byte(`<root id="7">hello<child>x</child></root>`))
	require.NoError(t, err)
	root, ok := m.Map("root")
	require.True(t, ok)
	require.Equal(t, "7", root["@id"])
	require.Equal(t, "hello", root["#text"])
	require.Equal(t, "x", root["child"])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(""))
	require.ErrorIs(t, err, ErrNoRoot)

	_, err = Parse([]byte("<xml><a>"))
	require.Error(t, err)

	_, err = ParseRoot([]byte("<other/>"), "xml")
	var rootErr *RootError
	require.ErrorAs(t, err, &rootErr)

	m, err := ParseRoot([]byte("<xml></xml>"), "xml")
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestCDATA_SplitsTerminator(t *testing.T) {
	out := CDATA("Content", "a]]>b")
	require.Equal(t, "<Content><![CDATA[a]]]]><![CDATA[>b]]></Content>", out)

	m, err := ParseRoot([]byte("<xml>"+out+"</xml>"), "xml")
	require.NoError(t, err)
	require.Equal(t, "a]]>b", m["Content"])
}

func TestLeafEscapes(t *testing.T) {
	require.Equal(t, "<A>1&amp;2</A>", Leaf("A", "1&2"))
	require.Equal(t, "<Outer><A>1</A></Outer>", Element("Outer", Leaf("A", "1")))
}
