// Package replies builds and renders passive replies to WeChat callbacks.
//
// A reply renders as
//
//	<xml>
//	<MsgType><![CDATA[type]]></MsgType>
//	<FromUserName>…</FromUserName>
//	…
//	</xml>
//
// with one line per schema field in declaration order.
package replies

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"xdao.co/wxmsg/fields"
	"xdao.co/wxmsg/messages"
	"xdao.co/wxmsg/xmlmap"
)

// MaxArticles is the largest number of articles a news reply may carry.
const MaxArticles = 10

// Reply is implemented by every reply type.
type Reply interface {
	Type() string
	// Fields exposes the underlying field object; nil for an empty reply.
	Fields() *fields.Object
	Render() (string, error)
}

// Schema holds the fields common to every non-empty reply.
var Schema = fields.NewSchema(
	fields.Entry{Key: "source", Field: fields.String("FromUserName")},
	fields.Entry{Key: "target", Field: fields.String("ToUserName")},
	fields.Entry{Key: "time", Field: fields.Integer("CreateTime")},
)

// now is replaced in tests.
var now = time.Now

// Base carries the common reply state. Concrete types embed it.
type Base struct {
	typ string
	obj *fields.Object
}

func newBase(typ string, schema *fields.Schema) Base {
	b := Base{typ: typ, obj: fields.NewObject(schema, nil)}
	_ = b.obj.Set("time", now().Unix())
	return b
}

func (b *Base) Type() string           { return b.typ }
func (b *Base) Fields() *fields.Object { return b.obj }
func (b *Base) Source() string         { return b.obj.String("source") }
func (b *Base) Target() string         { return b.obj.String("target") }
func (b *Base) Time() int64            { return b.obj.Int("time") }

func (b *Base) SetSource(s string) { _ = b.obj.Set("source", s) }
func (b *Base) SetTarget(s string) { _ = b.obj.Set("target", s) }
func (b *Base) SetTime(t int64)    { _ = b.obj.Set("time", t) }

// Render returns the reply document.
func (b *Base) Render() (string, error) {
	frags, err := b.obj.Fragments()
	if err != nil {
		return "", wrapError(KindRender, "REPLY-RENDER-001", "replies: render "+b.typ+": "+err.Error(), err)
	}
	nodes := append([]string{xmlmap.CDATA("MsgType", b.typ)}, frags...)
	return "<xml>\n" + strings.Join(nodes, "\n") + "\n</xml>", nil
}

// ReplyTo addresses r as an answer to msg: the reply comes from the message's
// target and goes to its source. An empty reply is returned unchanged.
func ReplyTo(msg messages.Message, r Reply) Reply {
	obj := r.Fields()
	if obj == nil || msg == nil {
		return r
	}
	_ = obj.Set("source", msg.Target())
	_ = obj.Set("target", msg.Source())
	return r
}

// Create turns a handler result into a reply addressed to msg.
//
// A string becomes a text reply, a []fields.Article a news reply, an existing
// Reply is readdressed, and nil becomes an empty reply.
func Create(v any, msg messages.Message) (Reply, error) {
	var r Reply
	switch t := v.(type) {
	case nil:
		return &EmptyReply{}, nil
	case Reply:
		r = t
	case string:
		r = NewText(t)
	case []fields.Article:
		a, err := NewArticles(t...)
		if err != nil {
			return nil, err
		}
		r = a
	default:
		return nil, wrapError(KindRender, "REPLY-CREATE-001", fmt.Sprintf("replies: cannot build a reply from %T", v), nil)
	}
	return ReplyTo(msg, r), nil
}

// Deserialize parses a rendered reply back into its typed form. Empty input
// yields an empty reply.
func Deserialize(doc []byte) (Reply, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return &EmptyReply{}, nil
	}
	data, err := xmlmap.ParseRoot(doc, "xml")
	if err != nil {
		return nil, wrapError(KindParse, "REPLY-PARSE-001", "replies: decode document: "+err.Error(), err)
	}
	typ, _ := data.String("MsgType")
	ctor, ok := replyTypes[strings.ToLower(typ)]
	if !ok {
		return nil, wrapError(KindParse, "REPLY-PARSE-002", "replies: unknown reply type "+typ, ErrUnknownType)
	}
	r := ctor()
	if err := r.Fields().Load(data); err != nil {
		return nil, wrapError(KindParse, "REPLY-PARSE-003", "replies: load "+typ+": "+err.Error(), err)
	}
	return r, nil
}
