// Package messages parses inbound WeChat Work callback documents into typed
// messages and events.
//
// Parse dispatches on the lowercased MsgType, and for events on the lowercased
// Event. Anything not in the dispatch tables becomes an *UnknownMessage.
package messages

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"xdao.co/wxmsg/fields"
	"xdao.co/wxmsg/xmlmap"
)

// Message is implemented by every parsed message and event.
type Message interface {
	// Type is the dispatch key: the message type, or the event type for events.
	Type() string
	// Fields exposes the underlying field object.
	Fields() *fields.Object

	ID() int64
	Source() string
	Target() string
	CreateTime() time.Time
	Time() int64
	AgentID() int64
}

// Event is implemented by every event message.
type Event interface {
	Message
	Event() string
}

// Schema holds the fields common to every message.
var Schema = fields.NewSchema(
	fields.Entry{Key: "id", Field: fields.Integer("MsgId", fields.Default(0))},
	fields.Entry{Key: "source", Field: fields.String("FromUserName")},
	fields.Entry{Key: "target", Field: fields.String("ToUserName")},
	fields.Entry{Key: "create_time", Field: fields.DateTime("CreateTime")},
	fields.Entry{Key: "time", Field: fields.Integer("CreateTime")},
	fields.Entry{Key: "agent", Field: fields.Integer("AgentID", fields.Default(0))},
)

// Base carries the common accessors. Concrete types embed it.
type Base struct {
	typ string
	obj *fields.Object
}

func newBase(typ string, schema *fields.Schema, data xmlmap.Map) Base {
	return Base{typ: typ, obj: fields.NewObject(schema, data)}
}

func (b *Base) Type() string                { return b.typ }
func (b *Base) Fields() *fields.Object      { return b.obj }
func (b *Base) ID() int64                   { return b.obj.Int("id") }
func (b *Base) Source() string              { return b.obj.String("source") }
func (b *Base) Target() string              { return b.obj.String("target") }
func (b *Base) CreateTime() time.Time       { return b.obj.Time("create_time") }
func (b *Base) Time() int64                 { return b.obj.Int("time") }
func (b *Base) AgentID() int64              { return b.obj.Int("agent") }
func (b *Base) str(key string) string       { return b.obj.String(key) }
func (b *Base) integer(key string) int64    { return b.obj.Int(key) }
func (b *Base) float(key string) float64    { return b.obj.Float(key) }
func (b *Base) dict(key string) fields.Dict { return b.obj.Dict(key) }

// UnknownMessage is any document whose type is not in the dispatch tables.
type UnknownMessage struct {
	Base
}

// RawType returns the MsgType as it appeared in the document.
func (m *UnknownMessage) RawType() string {
	s, _ := m.obj.Data()["MsgType"].(string)
	return s
}

type constructor func(data xmlmap.Map) Message

// Parse decodes a callback document.
//
// Empty input fails with ErrEmptyDocument. Malformed XML, a missing <xml>
// root, a missing MsgType, or an event without Event fail with a KindParse
// error. Unknown types are not errors.
func Parse(doc []byte) (Message, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, ErrEmptyDocument
	}
	data, err := xmlmap.ParseRoot(doc, "xml")
	if err != nil {
		return nil, parseError("MSG-PARSE-001", "messages: decode document: "+err.Error(), err)
	}
	msgType, ok := data.String("MsgType")
	if !ok || msgType == "" {
		return nil, parseError("MSG-PARSE-002", "messages: document has no MsgType", nil)
	}
	msgType = strings.ToLower(msgType)

	table := messageTypes
	key := msgType
	if msgType == "event" {
		ev, ok := data.String("Event")
		if !ok || ev == "" {
			return nil, parseError("MSG-PARSE-003", "messages: event document has no Event", nil)
		}
		table = eventTypes
		key = strings.ToLower(ev)
	}
	if ctor, ok := table[key]; ok {
		return ctor(data), nil
	}
	return &UnknownMessage{Base: newBase("unknown", Schema, data)}, nil
}

// Types returns the registered message type keys.
func Types() []string { return keys(messageTypes) }

// EventTypes returns the registered event type keys.
func EventTypes() []string { return keys(eventTypes) }

func keys(m map[string]constructor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
