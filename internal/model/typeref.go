package model

// Resolved type model consumed by the emitters.

type TypeKind string

const (
	KindNamed     TypeKind = "named"
	KindList      TypeKind = "list"
	KindPrimitive TypeKind = "primitive"
	KindDynamic   TypeKind = "dynamic"
	KindStringMap TypeKind = "stringMap"
)

type Primitive string

const (
	String  Primitive = "string"
	Integer Primitive = "integer"
	Float   Primitive = "float"
	Boolean Primitive = "boolean"
)

// TypeRef is a closed set of type shapes. Only the fields matching Kind are set.
type TypeRef struct {
	Kind      TypeKind  `json:"kind"`
	Name      string    `json:"name,omitempty"`      // KindNamed
	Elem      *TypeRef  `json:"elem,omitempty"`      // KindList
	Primitive Primitive `json:"primitive,omitempty"` // KindPrimitive
}

func Named(name string) TypeRef { return TypeRef{Kind: KindNamed, Name: name} }

func ListOf(elem TypeRef) TypeRef { return TypeRef{Kind: KindList, Elem: &elem} }

func Prim(p Primitive) TypeRef { return TypeRef{Kind: KindPrimitive, Primitive: p} }

func Dynamic() TypeRef { return TypeRef{Kind: KindDynamic} }

func StringMapOf() TypeRef { return TypeRef{Kind: KindStringMap} }

// PrimitiveFor maps a JSON Schema type keyword to a primitive.
func PrimitiveFor(schemaType string) (Primitive, bool) {
	switch schemaType {
	case "string":
		return String, true
	case "integer":
		return Integer, true
	case "number":
		return Float, true
	case "boolean":
		return Boolean, true
	}
	return "", false
}

// String returns a stable, Go-flavoured debug form such as "[]Tag".
func (t TypeRef) String() string {
	switch t.Kind {
	case KindNamed:
		return t.Name
	case KindList:
		if t.Elem == nil {
			return "[]<nil>"
		}
		return "[]" + t.Elem.String()
	case KindPrimitive:
		switch t.Primitive {
		case Integer:
			return "int64"
		case Float:
			return "float64"
		case Boolean:
			return "bool"
		}
		return "string"
	case KindDynamic:
		return "any"
	case KindStringMap:
		return "map[string]string"
	}
	return "<invalid>"
}

// Equal compares two type refs structurally.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Kind != o.Kind || t.Name != o.Name || t.Primitive != o.Primitive {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

// Walk calls fn for t and every nested element type, outermost first.
func (t TypeRef) Walk(fn func(TypeRef)) {
	fn(t)
	if t.Kind == KindList && t.Elem != nil {
		t.Elem.Walk(fn)
	}
}

// NamedRefs returns the names referenced by t.
func (t TypeRef) NamedRefs() []string {
	var out []string
	t.Walk(func(r TypeRef) {
		if r.Kind == KindNamed {
			out = append(out, r.Name)
		}
	})
	return out
}
