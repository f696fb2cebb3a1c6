package model

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Declaration is a resolved nominal type: *Record or *Enum.
type Declaration interface {
	DeclName() string
	Doc() string
	// References lists every type ref held by the declaration.
	References() []TypeRef
	declaration()
}

type Field struct {
	Description string  `json:"description,omitempty"`
	Type        TypeRef `json:"type"`
	Required    bool    `json:"required"`
}

// Record is an object schema. Fields are kept sorted by key once finalized.
type Record struct {
	Name        string                                  `json:"name"`
	Description string                                  `json:"description,omitempty"`
	Fields      *orderedmap.OrderedMap[string, Field] `json:"fields"`
}

func NewRecord(name, description string) *Record {
	return &Record{Name: name, Description: description, Fields: orderedmap.New[string, Field]()}
}

// Set adds or overwrites a field.
func (r *Record) Set(key string, f Field) {
	r.Fields.Set(key, f)
}

func (r *Record) Field(key string) (Field, bool) {
	return r.Fields.Get(key)
}

// Keys returns the field names in their current order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Fields.Len())
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// SortFields reorders the fields by key.
func (r *Record) SortFields() {
	keys := r.Keys()
	sort.Strings(keys)
	sorted := orderedmap.New[string, Field](orderedmap.WithCapacity[string, Field](len(keys)))
	for _, k := range keys {
		f, _ := r.Fields.Get(k)
		sorted.Set(k, f)
	}
	r.Fields = sorted
}

// Defaultable reports whether the record has no required field, which lets
// renderers offer an all-defaults constructor.
func (r *Record) Defaultable() bool {
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Required {
			return false
		}
	}
	return true
}

func (r *Record) DeclName() string { return r.Name }
func (r *Record) Doc() string      { return r.Description }
func (r *Record) declaration()     {}

func (r *Record) References() []TypeRef {
	out := make([]TypeRef, 0, r.Fields.Len())
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Type)
	}
	return out
}

type EnumKind string

const (
	Standard    EnumKind = "standard"
	TaggedUnion EnumKind = "taggedUnion"
)

// Variant is a unit constant when Payload is nil, otherwise it wraps one type.
type Variant struct {
	Name    string   `json:"name"`
	Value   string   `json:"value,omitempty"`
	Payload *TypeRef `json:"payload,omitempty"`
}

func Unit(name, value string) Variant { return Variant{Name: name, Value: value} }

func Payload(name string, t TypeRef) Variant { return Variant{Name: name, Payload: &t} }

func (v Variant) IsUnit() bool { return v.Payload == nil }

type Enum struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        EnumKind  `json:"kind"`
	Variants    []Variant `json:"variants"`
}

func (e *Enum) DeclName() string { return e.Name }
func (e *Enum) Doc() string      { return e.Description }
func (e *Enum) declaration()     {}

func (e *Enum) References() []TypeRef {
	var out []TypeRef
	for _, v := range e.Variants {
		if v.Payload != nil {
			out = append(out, *v.Payload)
		}
	}
	return out
}

// Variant looks a variant up by name.
func (e *Enum) Variant(name string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}
