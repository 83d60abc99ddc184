// Package fields maps typed values to and from fragments of the WeChat XML
// envelope.
//
// A Field describes one named XML leaf or sub-structure: how to coerce a raw
// value (Convert), how to render it (ToXML) and how to read it back from a
// decoded xmlmap value (FromXML). Fields are grouped into a Schema, and an
// Object binds a Schema to one decoded document with a per-instance cache of
// materialized values.
package fields

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"xdao.co/wxmsg/xmlmap"
)

// Timezone is the fixed zone CreateTime-style timestamps are materialized in.
// China Standard Time has no daylight saving, so a fixed offset is exact.
var Timezone = time.FixedZone("CST", 8*60*60)

// Field is one entry of a Schema.
type Field interface {
	// Name is the XML tag the field reads from and writes to.
	Name() string
	// Default returns a fresh deep copy of the declared default (nil when none).
	Default() any
	// Convert coerces a raw scalar into the field's Go type.
	Convert(value any) (any, error)
	// ToXML renders value as the field's XML fragment.
	ToXML(value any) (string, error)
	// FromXML reads the field's value back from a decoded xmlmap value.
	// A nil input yields a nil value.
	FromXML(value any) (any, error)
}

// Option configures a field at construction time.
type Option func(*base)

// Default sets the field's declared default. The value is deep-copied every
// time it is materialized.
func Default(v any) Option {
	return func(b *base) { b.def = v }
}

type base struct {
	name string
	def  any
}

func newBase(name string, opts []Option) base {
	b := base{name: name}
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b base) Name() string { return b.name }
func (b base) Default() any { return deepCopy(b.def) }

func (b base) String() string { return b.name }

// StringField is a CDATA text leaf.
type StringField struct{ base }

func String(name string, opts ...Option) *StringField {
	return &StringField{newBase(name, opts)}
}

func (f *StringField) Convert(value any) (any, error) { return toText(value), nil }

func (f *StringField) ToXML(value any) (string, error) {
	return xmlmap.CDATA(f.name, toText(value)), nil
}

func (f *StringField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toText(value), nil
}

// IntegerField is a plain numeric leaf holding an int64.
type IntegerField struct{ base }

func Integer(name string, opts ...Option) *IntegerField {
	return &IntegerField{newBase(name, opts)}
}

func (f *IntegerField) Convert(value any) (any, error) { return toInt(f.name, value) }

func (f *IntegerField) ToXML(value any) (string, error) {
	if value == nil {
		value = f.def
	}
	if value == nil {
		return xmlmap.Leaf(f.name, ""), nil
	}
	n, err := toInt(f.name, value)
	if err != nil {
		return "", err
	}
	return xmlmap.Leaf(f.name, strconv.FormatInt(n, 10)), nil
}

func (f *IntegerField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toInt(f.name, value)
}

// FloatField is a plain numeric leaf holding a float64.
type FloatField struct{ base }

func Float(name string, opts ...Option) *FloatField {
	return &FloatField{newBase(name, opts)}
}

func (f *FloatField) Convert(value any) (any, error) { return toFloat(f.name, value) }

func (f *FloatField) ToXML(value any) (string, error) {
	if value == nil {
		value = f.def
	}
	if value == nil {
		return xmlmap.Leaf(f.name, ""), nil
	}
	v, err := toFloat(f.name, value)
	if err != nil {
		return "", err
	}
	return xmlmap.Leaf(f.name, strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func (f *FloatField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toFloat(f.name, value)
}

// DateTimeField is a Unix-seconds leaf materialized as a time.Time in Timezone.
type DateTimeField struct{ base }

func DateTime(name string, opts ...Option) *DateTimeField {
	return &DateTimeField{newBase(name, opts)}
}

func (f *DateTimeField) Convert(value any) (any, error) { return toTime(f.name, value) }

func (f *DateTimeField) ToXML(value any) (string, error) {
	if value == nil {
		value = f.def
	}
	if value == nil {
		return xmlmap.Leaf(f.name, ""), nil
	}
	t, err := toTime(f.name, value)
	if err != nil {
		return "", err
	}
	return xmlmap.Leaf(f.name, strconv.FormatInt(t.Unix(), 10)), nil
}

func (f *DateTimeField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return toTime(f.name, value)
}

// Base64EncodeField is a CDATA leaf whose converter base64-encodes its text.
type Base64EncodeField struct{ StringField }

func Base64Encode(name string, opts ...Option) *Base64EncodeField {
	return &Base64EncodeField{StringField{newBase(name, opts)}}
}

func (f *Base64EncodeField) Convert(value any) (any, error) {
	return base64.StdEncoding.EncodeToString([]byte(toText(value))), nil
}

func (f *Base64EncodeField) ToXML(value any) (string, error) {
	v, _ := f.Convert(value)
	return xmlmap.CDATA(f.name, v.(string)), nil
}

// FromXML decodes the rendered text back to the original value.
func (f *Base64EncodeField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return decodeBase64(f.name, toText(value))
}

// Base64DecodeField is a CDATA leaf whose converter base64-decodes its text.
type Base64DecodeField struct{ StringField }

func Base64Decode(name string, opts ...Option) *Base64DecodeField {
	return &Base64DecodeField{StringField{newBase(name, opts)}}
}

func (f *Base64DecodeField) Convert(value any) (any, error) {
	return decodeBase64(f.name, toText(value))
}

func (f *Base64DecodeField) ToXML(value any) (string, error) {
	v, err := f.Convert(value)
	if err != nil {
		return "", err
	}
	return xmlmap.CDATA(f.name, v.(string)), nil
}

// FromXML re-encodes the rendered text back to the original value.
func (f *Base64DecodeField) FromXML(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return base64.StdEncoding.EncodeToString([]byte(toText(value))), nil
}

func decodeBase64(key, s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", convertError("FIELD-CONV-301", key, "fields: "+key+": invalid base64", err)
	}
	return string(b), nil
}

func toText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt(key string, value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, convertError("FIELD-CONV-101", key, "fields: "+key+": integer overflow", nil)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string, []byte:
		s := strings.TrimSpace(toText(v))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, convertError("FIELD-CONV-102", key, fmt.Sprintf("fields: %s: invalid integer %q", key, s), err)
		}
		return n, nil
	default:
		return 0, convertError("FIELD-CONV-103", key, fmt.Sprintf("fields: %s: cannot convert %T to integer", key, value), nil)
	}
}

func toFloat(key string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string, []byte:
		s := strings.TrimSpace(toText(v))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, convertError("FIELD-CONV-201", key, fmt.Sprintf("fields: %s: invalid float %q", key, s), err)
		}
		return f, nil
	default:
		return 0, convertError("FIELD-CONV-202", key, fmt.Sprintf("fields: %s: cannot convert %T to float", key, value), nil)
	}
}

func toTime(key string, value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.In(Timezone), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, convertError("FIELD-CONV-401", key, "fields: "+key+": nil time", nil)
		}
		return v.In(Timezone), nil
	default:
		n, err := toInt(key, value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0).In(Timezone), nil
	}
}
