package fields

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"xdao.co/wxmsg/xmlmap"
)

// Entry binds a schema key to its field.
type Entry struct {
	Key   string
	Field Field
}

// Schema is an ordered set of fields. Render order is declaration order.
type Schema struct {
	entries []Entry
	index   map[string]int
}

// NewSchema builds a schema from entries. A repeated key replaces the earlier
// field in place.
func NewSchema(entries ...Entry) *Schema {
	s := &Schema{index: map[string]int{}}
	s.add(entries)
	return s
}

// Extend returns a new schema holding s's entries followed by entries.
// Overriding an existing key keeps that key's original position.
func (s *Schema) Extend(entries ...Entry) *Schema {
	out := &Schema{
		entries: append([]Entry(nil), s.entries...),
		index:   make(map[string]int, len(s.index)+len(entries)),
	}
	for k, i := range s.index {
		out.index[k] = i
	}
	out.add(entries)
	return out
}

func (s *Schema) add(entries []Entry) {
	for _, e := range entries {
		if i, ok := s.index[e.Key]; ok {
			s.entries[i] = e
			continue
		}
		s.index[e.Key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
}

// Field returns the field registered under key.
func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.entries[i].Field, true
}

// Entries returns the schema entries in declaration order.
func (s *Schema) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Object binds a Schema to one document's raw values, keyed by XML tag.
//
// Values are coerced on first Get and cached per instance. Object is not safe
// for concurrent use.
type Object struct {
	schema *Schema
	data   map[string]any
	cache  map[string]any
}

// NewObject wraps data, which is used as-is (not copied). A nil data map
// starts empty.
func NewObject(schema *Schema, data map[string]any) *Object {
	if data == nil {
		data = map[string]any{}
	}
	return &Object{schema: schema, data: data, cache: map[string]any{}}
}

func (o *Object) Schema() *Schema { return o.schema }

// Data returns the underlying raw mapping.
func (o *Object) Data() map[string]any { return o.data }

func (o *Object) field(key string) (Field, error) {
	f, ok := o.schema.Field(key)
	if !ok {
		return nil, &Error{
			Kind:    KindSchema,
			RuleID:  "FIELD-SCHEMA-001",
			Key:     key,
			Message: "fields: unknown schema key " + key,
		}
	}
	return f, nil
}

// Raw returns the stored value for key without conversion. An unset value is
// replaced by a fresh copy of the field default, which is stored.
func (o *Object) Raw(key string) (any, error) {
	f, err := o.field(key)
	if err != nil {
		return nil, err
	}
	v := o.data[f.Name()]
	if v == nil {
		v = f.Default()
		if v != nil {
			o.data[f.Name()] = v
		}
	}
	return v, nil
}

// Get returns the materialized value for key.
//
// Maps come back as Dict, slices pass through, and truthy scalars go through
// the field's Convert. Falsy scalars are returned unconverted.
func (o *Object) Get(key string) (any, error) {
	if v, ok := o.cache[key]; ok {
		return v, nil
	}
	f, err := o.field(key)
	if err != nil {
		return nil, err
	}
	v, _ := o.Raw(key)
	switch t := v.(type) {
	case map[string]any:
		v = Dict(t)
	case xmlmap.Map:
		v = Dict(t)
	case Dict:
	default:
		if truthy(v) && !isList(v) {
			v, err = f.Convert(v)
			if err != nil {
				return nil, err
			}
		}
	}
	o.cache[key] = v
	return v, nil
}

// Set stores a raw value for key and drops its cached materialization.
func (o *Object) Set(key string, value any) error {
	f, err := o.field(key)
	if err != nil {
		return err
	}
	o.data[f.Name()] = value
	delete(o.cache, key)
	return nil
}

// String returns the value for key as text, or "" when unset or invalid.
func (o *Object) String(key string) string {
	v, err := o.Get(key)
	if err != nil || v == nil {
		return ""
	}
	return toText(v)
}

// Int returns the value for key as an integer, or 0 when unset or invalid.
func (o *Object) Int(key string) int64 {
	v, err := o.Get(key)
	if err != nil || v == nil {
		return 0
	}
	n, err := toInt(key, v)
	if err != nil {
		return 0
	}
	return n
}

// Float returns the value for key as a float, or 0 when unset or invalid.
func (o *Object) Float(key string) float64 {
	v, err := o.Get(key)
	if err != nil || v == nil {
		return 0
	}
	f, err := toFloat(key, v)
	if err != nil {
		return 0
	}
	return f
}

// Time returns the value for key as a time, or the zero time when unset or
// invalid.
func (o *Object) Time(key string) time.Time {
	v, err := o.Get(key)
	if err != nil || !truthy(v) {
		return time.Time{}
	}
	t, err := toTime(key, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Dict returns the nested mapping for key, or nil.
func (o *Object) Dict(key string) Dict {
	v, err := o.Get(key)
	if err != nil {
		return nil
	}
	d, _ := v.(Dict)
	return d
}

// Fragments renders every schema entry in order from its raw value.
func (o *Object) Fragments() ([]string, error) {
	out := make([]string, 0, len(o.schema.entries))
	for _, e := range o.schema.entries {
		v, _ := o.Raw(e.Key)
		frag, err := e.Field.ToXML(v)
		if err != nil {
			return nil, fmt.Errorf("fields: render %s: %w", e.Key, err)
		}
		out = append(out, frag)
	}
	return out, nil
}

// XML concatenates Fragments.
func (o *Object) XML() (string, error) {
	frags, err := o.Fragments()
	if err != nil {
		return "", err
	}
	return strings.Join(frags, ""), nil
}

// Load fills o from a decoded XML mapping using each field's FromXML.
// Tags absent from src are left unset.
func (o *Object) Load(src map[string]any) error {
	for _, e := range o.schema.entries {
		raw, ok := src[e.Field.Name()]
		if !ok {
			continue
		}
		v, err := e.Field.FromXML(raw)
		if err != nil {
			return err
		}
		if err := o.Set(e.Key, v); err != nil {
			return err
		}
	}
	return nil
}

// Dict is a nested mapping with convenience accessors.
type Dict map[string]any

// Get returns the value under key; nested maps come back as Dict.
func (d Dict) Get(key string) any {
	switch t := d[key].(type) {
	case map[string]any:
		return Dict(t)
	case xmlmap.Map:
		return Dict(t)
	default:
		return t
	}
}

func (d Dict) String(key string) string {
	v := d[key]
	if v == nil {
		return ""
	}
	return toText(v)
}

func (d Dict) Int(key string) int64 {
	v := d[key]
	if v == nil {
		return 0
	}
	n, err := toInt(key, v)
	if err != nil {
		return 0
	}
	return n
}

func (d Dict) Dict(key string) Dict {
	v, _ := d.Get(key).(Dict)
	return v
}

// List returns the values under key, normalizing a single value into a
// one-element list.
func (d Dict) List(key string) []any {
	return xmlmap.AsList(d[key])
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Struct:
		return !rv.IsZero()
	default:
		return true
	}
}

func isList(v any) bool {
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
