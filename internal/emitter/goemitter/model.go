package goemitter

import (
	"fmt"

	"github.com/mark3labs/oapi2types/internal/deps"
	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
)

type fileData struct {
	Package string
	Title   string
	Version string
	Decls   []goDecl
}

// goDecl is one top-level Go type. Kind is "struct", "enum", "union" or "alias".
type goDecl struct {
	Name     string
	Kind     string
	Doc      []string
	Fields   []goField
	Consts   []goConst
	Variants []goVariant
	// Alias is the underlying type; Defined renders `type X T` instead of an alias.
	Alias   string
	Defined bool
	// HasUnits reports whether a union carries unit variants.
	HasUnits bool
}

type goField struct {
	Name string
	Type string
	Tag  string
	Doc  []string
}

type goConst struct {
	Name  string
	Value string
}

type goVariant struct {
	Name  string
	Type  string
	Value string
	Unit  bool
}

// builder maps store names onto Go identifiers. Identifiers are allocated in
// render order so the output does not depend on map iteration.
type builder struct {
	store *model.Store
	index *deps.Index
	ids   map[string]string
	taken map[string]bool
}

func newBuilder(store *model.Store, index *deps.Index, order []string) *builder {
	ids, taken := emitter.Identifiers(order, naming.Identifier)
	return &builder{store: store, index: index, ids: ids, taken: taken}
}

func (b *builder) build(pkg, title, version string, order []string) (*fileData, error) {
	data := &fileData{Package: pkg, Title: title, Version: version}
	for _, name := range order {
		var decl goDecl
		if d, ok := b.store.Declaration(name); ok {
			switch d := d.(type) {
			case *model.Record:
				decl = b.record(d)
			case *model.Enum:
				decl = b.enum(d)
			}
		} else if t, ok := b.store.Alias(name); ok {
			decl = b.alias(name, t)
		} else {
			return nil, fmt.Errorf("goemitter: %q is not bound", name)
		}
		data.Decls = append(data.Decls, decl)
	}
	return data, nil
}

func (b *builder) record(r *model.Record) goDecl {
	id := b.ids[r.Name]
	decl := goDecl{Name: id, Kind: "struct", Doc: emitter.DocLines(r.Description)}

	used := map[string]bool{}
	alloc := naming.Allocator{Taken: func(n string) bool { return used[n] }}
	for _, key := range r.Keys() {
		f, _ := r.Field(key)
		fname := alloc.Allocate(naming.Identifier(key))
		used[fname] = true
		decl.Fields = append(decl.Fields, goField{
			Name: fname,
			Type: b.fieldType(r.Name, f),
			Tag:  jsonTag(key, f.Required),
			Doc:  emitter.DocLines(f.Description),
		})
	}
	return decl
}

func (b *builder) enum(e *model.Enum) goDecl {
	id := b.ids[e.Name]
	if e.Kind == model.TaggedUnion {
		decl := goDecl{Name: id, Kind: "union", Doc: emitter.DocLines(e.Description)}
		for _, v := range e.Variants {
			gv := goVariant{Name: naming.Identifier(v.Name), Value: unitValue(v)}
			if v.IsUnit() {
				gv.Unit = true
				decl.HasUnits = true
			} else {
				gv.Type = b.typeExpr(*v.Payload)
			}
			decl.Variants = append(decl.Variants, gv)
		}
		return decl
	}

	decl := goDecl{Name: id, Kind: "enum", Doc: emitter.DocLines(e.Description)}
	alloc := naming.Allocator{Taken: func(n string) bool { return b.taken[n] }}
	for _, v := range e.Variants {
		c := alloc.Allocate(id + naming.Identifier(v.Name))
		b.taken[c] = true
		decl.Consts = append(decl.Consts, goConst{Name: c, Value: unitValue(v)})
	}
	return decl
}

func (b *builder) alias(name string, t model.TypeRef) goDecl {
	id := b.ids[name]
	// An alias that leads back to itself must be a defined type.
	cyclic := false
	for _, ref := range t.NamedRefs() {
		if b.reaches(ref, name) {
			cyclic = true
		}
	}
	return goDecl{Name: id, Kind: "alias", Alias: b.typeExpr(t), Defined: cyclic}
}

// fieldType renders a field type. Optional scalars and named types become
// pointers; a required named type that leads back to owner does too, since
// Go values cannot contain themselves.
func (b *builder) fieldType(owner string, f model.Field) string {
	t := f.Type
	expr := b.typeExpr(t)
	switch t.Kind {
	case model.KindPrimitive:
		if !f.Required {
			return "*" + expr
		}
	case model.KindNamed:
		if !f.Required || b.reaches(t.Name, owner) {
			return "*" + expr
		}
	}
	return expr
}

func (b *builder) typeExpr(t model.TypeRef) string {
	switch t.Kind {
	case model.KindNamed:
		if id, ok := b.ids[t.Name]; ok {
			return id
		}
		return naming.Identifier(t.Name)
	case model.KindList:
		if t.Elem == nil {
			return "[]json.RawMessage"
		}
		return "[]" + b.typeExpr(*t.Elem)
	case model.KindPrimitive:
		switch t.Primitive {
		case model.Integer:
			return "int64"
		case model.Float:
			return "float64"
		case model.Boolean:
			return "bool"
		}
		return "string"
	case model.KindStringMap:
		return "map[string]string"
	}
	return "json.RawMessage"
}

// reaches reports whether from leads to to through the relies-on relation.
func (b *builder) reaches(from, to string) bool {
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, b.index.ReliesOn(n)...)
	}
	return false
}

func jsonTag(key string, required bool) string {
	if required {
		return fmt.Sprintf("`json:%q`", key)
	}
	return fmt.Sprintf("`json:%q`", key+",omitempty")
}

func unitValue(v model.Variant) string {
	if v.Value != "" {
		return v.Value
	}
	return v.Name
}
