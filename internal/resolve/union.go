package resolve

import (
	"fmt"

	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
	"github.com/mark3labs/oapi2types/internal/tree"
)

// resolveUnion handles anyOf, oneOf and plain string enums. Each call binds
// exactly one outcome under name.
func (r *Resolver) resolveUnion(name string, node tree.Node) error {
	switch {
	case node.Has("anyOf"):
		return r.resolveAnyOf(name, node)
	case node.Has("oneOf"):
		return r.resolveOneOf(name, node)
	}
	return r.resolveStringEnum(name, node)
}

func (r *Resolver) resolveAnyOf(name string, node tree.Node) error {
	branches := listAt(node, "anyOf")
	vs := newVariantSet()
	var propagated *model.TypeRef

	// A primitive branch degrades the whole union, so nothing is synthesized
	// for inline branches. $ref branches still resolve: they bind names of
	// their own.
	dynamic := false
	for _, branch := range branches {
		if bareType(branch) {
			dynamic = true
			break
		}
	}

	for i, branch := range branches {
		switch {
		case dynamic && !branch.Has("$ref"):
			if !bareType(branch) && !branch.Has("enum") && !isInlineObject(branch) {
				return newError(InvalidUnionComposition, name, "", fmt.Sprintf("anyOf[%d] is neither a reference, an enum nor an object", i), branch)
			}
		case branch.Has("$ref"):
			ref := refName(tree.StringAt(branch, "$ref"))
			if r.active[ref] {
				return fmt.Errorf("anyOf[%d]: %w", i,
					newError(CyclicSchemaReference, ref, "", "union refers back to a schema still being resolved", branch))
			}
			t, err := r.resolveRef(branch)
			if err != nil {
				return fmt.Errorf("anyOf[%d]: %w", i, err)
			}
			if under, ok := r.store.Alias(ref); ok {
				if propagated == nil {
					propagated = &under
				}
				continue
			}
			if src, ok := r.store.Enum(ref); ok {
				for _, v := range src.Variants {
					vs.add(v, i)
				}
				continue
			}
			vs.add(model.Payload(naming.Identifier(ref), t), i)
		case branch.Has("enum"):
			for _, lit := range enumLiterals(branch) {
				vs.add(model.Unit(naming.Identifier(lit), lit), i)
			}
		case bareType(branch):
			// decided once every structural branch has been seen
		case isInlineObject(branch):
			t, err := r.inlineObject(naming.Indexed(name+"Option", i), branch)
			if err != nil {
				return fmt.Errorf("anyOf[%d]: %w", i, err)
			}
			vs.add(model.Payload(naming.Indexed("Option", i), t), i)
		default:
			return newError(InvalidUnionComposition, name, "", fmt.Sprintf("anyOf[%d] is neither a reference, an enum nor an object", i), branch)
		}
	}

	if dynamic {
		r.log.Warn("anyOf mixes primitive branches, using a dynamic value", "name", name)
		return r.bind(name, model.Dynamic())
	}
	if propagated != nil {
		return r.bind(name, *propagated)
	}
	if vs.len() == 0 {
		return newError(InvalidUnionComposition, name, "", "anyOf has no usable branch", node)
	}
	return r.declare(vs.enum(name, description(node)))
}

func (r *Resolver) resolveOneOf(name string, node tree.Node) error {
	branches := listAt(node, "oneOf")
	vs := newVariantSet()

	for i, branch := range branches {
		v, err := r.oneOfVariants(name, i, branch)
		if err != nil {
			return fmt.Errorf("oneOf[%d]: %w", i, err)
		}
		for _, variant := range v {
			vs.add(variant, i)
		}
	}
	if vs.len() == 0 {
		return newError(InvalidUnionComposition, name, "", "oneOf has no branches", node)
	}
	e := vs.enum(name, description(node))
	e.Kind = model.TaggedUnion
	return r.declare(e)
}

func (r *Resolver) oneOfVariants(name string, i int, branch tree.Node) ([]model.Variant, error) {
	if branch.Has("$ref") {
		ref := refName(tree.StringAt(branch, "$ref"))
		if !r.active[ref] {
			if err := r.Resolve(ref); err != nil {
				return nil, err
			}
			if !r.store.Has(ref) {
				return nil, newError(InvalidUnionComposition, name, "", fmt.Sprintf("referenced schema %q binds no type", ref), branch)
			}
		}
		return []model.Variant{model.Payload(naming.Identifier(ref), model.Named(ref))}, nil
	}
	if branch.Has("enum") {
		var out []model.Variant
		for _, lit := range enumLiterals(branch) {
			v := model.Payload(naming.Identifier(lit), model.Prim(model.String))
			v.Value = lit
			out = append(out, v)
		}
		return out, nil
	}

	typ, _ := schemaType(branch)
	switch {
	case typ == "array":
		list, err := r.ResolveArray(name, "", branch)
		if err != nil {
			return nil, err
		}
		label := "Array" + elemLabel(*list.Elem)
		alias := r.names.Allocate(name + label)
		if err := r.bind(alias, list); err != nil {
			return nil, err
		}
		return []model.Variant{model.Payload(label, model.Named(alias))}, nil
	case isInlineObject(branch):
		t, err := r.inlineObject(name+"Object", branch)
		if err != nil {
			return nil, err
		}
		return []model.Variant{model.Payload("Object", t)}, nil
	}
	if p, ok := model.PrimitiveFor(typ); ok {
		return []model.Variant{model.Payload(naming.Identifier(typ), model.Prim(p))}, nil
	}
	return nil, newError(InvalidUnionComposition, name, "", fmt.Sprintf("oneOf[%d] matches no known shape", i), branch)
}

func (r *Resolver) resolveStringEnum(name string, node tree.Node) error {
	lits := enumLiterals(node)
	if len(lits) == 0 {
		return newError(InvalidUnionComposition, name, "", "enum list is empty", node)
	}
	vs := newVariantSet()
	for i, lit := range lits {
		vs.add(model.Unit(naming.Identifier(lit), lit), i)
	}
	return r.declare(vs.enum(name, description(node)))
}

// variantSet keeps variants in source order. An exact duplicate is dropped; a
// name clash gets the 1-based option index appended.
type variantSet struct {
	list []model.Variant
	seen map[string]model.Variant
}

func newVariantSet() *variantSet {
	return &variantSet{seen: make(map[string]model.Variant)}
}

func (vs *variantSet) add(v model.Variant, index int) {
	if prev, ok := vs.seen[v.Name]; ok {
		if sameVariant(prev, v) {
			return
		}
		alloc := naming.Allocator{Taken: func(n string) bool {
			_, ok := vs.seen[n]
			return ok
		}}
		v.Name = alloc.Allocate(naming.Indexed(v.Name, index))
	}
	vs.seen[v.Name] = v
	vs.list = append(vs.list, v)
}

func (vs *variantSet) len() int { return len(vs.list) }

func (vs *variantSet) enum(name, doc string) *model.Enum {
	e := &model.Enum{Name: name, Description: doc, Kind: model.Standard, Variants: vs.list}
	for _, v := range vs.list {
		if !v.IsUnit() {
			e.Kind = model.TaggedUnion
			break
		}
	}
	return e
}

func sameVariant(a, b model.Variant) bool {
	if a.Value != b.Value || a.IsUnit() != b.IsUnit() {
		return false
	}
	return a.IsUnit() || a.Payload.Equal(*b.Payload)
}

// elemLabel names a list element type for synthesized alias names.
func elemLabel(t model.TypeRef) string {
	switch t.Kind {
	case model.KindNamed:
		return naming.Identifier(t.Name)
	case model.KindPrimitive:
		return naming.Identifier(string(t.Primitive))
	case model.KindList:
		if t.Elem != nil {
			return "Array" + elemLabel(*t.Elem)
		}
	case model.KindStringMap:
		return "StringMap"
	}
	return "Value"
}

// bareType reports a branch that only names a primitive or array type.
func bareType(branch tree.Node) bool {
	if branch.Has("$ref") || branch.Has("enum") {
		return false
	}
	switch typ, _ := schemaType(branch); typ {
	case "array", "string", "integer", "number", "boolean", "null":
		return true
	}
	return false
}

func isInlineObject(branch tree.Node) bool {
	typ, hasType := schemaType(branch)
	if hasType {
		return typ == "object"
	}
	return branch.Has("properties") || branch.Has("allOf")
}

func enumLiterals(node tree.Node) []string {
	var out []string
	for _, item := range listAt(node, "enum") {
		if item.IsNull() {
			continue
		}
		if s, ok := item.String(); ok {
			out = append(out, s)
		}
	}
	return out
}

func listAt(node tree.Node, key string) []tree.Node {
	v, ok := node.Get(key)
	if !ok {
		return nil
	}
	return v.List()
}
