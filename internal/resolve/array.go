package resolve

import (
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
	"github.com/mark3labs/oapi2types/internal/tree"
)

// ResolveArray resolves the items of an array node to ListOf(elem). Union and
// enum elements are named after owner alone ("Items", "Item"); record
// elements after owner and key. key is empty for top-level arrays and union
// branches. Repeats are disambiguated by the allocator.
func (r *Resolver) ResolveArray(owner, key string, node tree.Node) (model.TypeRef, error) {
	items, ok := node.Get("items")
	if !ok || !items.IsMapping() {
		return model.TypeRef{}, newError(UnsupportedArrayElementShape, owner, key, "array has no items schema", node)
	}

	base := naming.Join(owner, key, "")
	// an element named exactly like its owner would collide with it
	elemBase := base
	if key == "" {
		elemBase = base + "Item"
	}

	var (
		elem model.TypeRef
		err  error
	)
	typ, _ := schemaType(items)
	switch {
	case items.Has("oneOf") || items.Has("anyOf"):
		elem, err = r.synthesize(naming.Join(owner, "", "Items"), items, r.resolveUnion)
	case items.Has("allOf"):
		elem, err = r.synthesize(elemBase, items, r.resolveComposition)
	case items.Has("$ref"):
		elem, err = r.resolveRef(items)
	case items.Has("properties"):
		elem, err = r.synthesize(base+"Item", items, r.resolveRecord)
	case items.Has("enum"):
		elem, err = r.synthesize(naming.Join(owner, "", "Item"), items, r.resolveStringEnum)
	case typ == "object":
		elem, err = r.inlineObject(elemBase, items)
	case typ == "array":
		elem, err = r.ResolveArray(owner, key, items)
	default:
		p, ok := model.PrimitiveFor(typ)
		if !ok {
			return model.TypeRef{}, newError(UnsupportedArrayElementShape, owner, key, "items match no known shape", items)
		}
		elem = model.Prim(p)
	}
	if err != nil {
		return model.TypeRef{}, err
	}
	return model.ListOf(elem), nil
}
