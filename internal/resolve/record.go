package resolve

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
	"github.com/mark3labs/oapi2types/internal/tree"
)

// resolveRecord binds a record under name. allOf nodes are composed; an
// object with additionalProperties: false and no properties binds nothing.
func (r *Resolver) resolveRecord(name string, node tree.Node) error {
	if node.Has("allOf") {
		return r.resolveComposition(name, node)
	}
	if emptyObject(node) {
		r.log.Debug("empty schema, nothing bound", "name", name)
		return nil
	}
	rec := model.NewRecord(name, description(node))
	if err := r.mergeProperties(rec, name, node, requiredSet(node)); err != nil {
		return err
	}
	return r.declare(rec)
}

func (r *Resolver) resolveComposition(name string, node tree.Node) error {
	rec := model.NewRecord(name, description(node))
	required := requiredSet(node)
	degraded, err := r.compose(rec, name, node, required)
	if err != nil {
		return err
	}
	if degraded != "" {
		r.log.Debug("composition degraded to alias", "name", name, "target", degraded)
		return r.bind(name, model.Named(degraded))
	}
	for key := range required {
		if f, ok := rec.Field(key); ok && !f.Required {
			f.Required = true
			rec.Set(key, f)
		}
	}
	return r.declare(rec)
}

// pendingProp is an inline property waiting to be resolved once all allOf
// sources have been merged.
type pendingProp struct {
	node     tree.Node
	required bool
}

// compose merges the allOf branches of node into rec, then node's own
// properties. Later sources overwrite earlier ones, and each inline property
// is resolved once, after the merge, so an overwritten one synthesizes
// nothing. It returns the referent name when a $ref branch is not a record,
// in which case rec is abandoned.
func (r *Resolver) compose(rec *model.Record, owner string, node tree.Node, required map[string]bool) (string, error) {
	pending := orderedmap.New[string, pendingProp]()
	degraded, err := r.collect(rec, node, required, pending)
	if err != nil || degraded != "" {
		return degraded, err
	}
	for p := pending.Oldest(); p != nil; p = p.Next() {
		t, err := r.ResolveInline(owner, p.Key, p.Value.node)
		if err != nil {
			return "", fmt.Errorf("property %s: %w", p.Key, err)
		}
		rec.Set(p.Key, model.Field{
			Description: description(p.Value.node),
			Type:        t,
			Required:    p.Value.required,
		})
	}
	return "", nil
}

func (r *Resolver) collect(rec *model.Record, node tree.Node, required map[string]bool, pending *orderedmap.OrderedMap[string, pendingProp]) (string, error) {
	for i, branch := range listAt(node, "allOf") {
		if branch.Has("$ref") {
			ref := refName(tree.StringAt(branch, "$ref"))
			if r.active[ref] {
				return "", fmt.Errorf("allOf[%d]: %w", i,
					newError(CyclicSchemaReference, ref, "", "composition refers back to a schema still being resolved", branch))
			}
			if _, err := r.resolveRef(branch); err != nil {
				return "", fmt.Errorf("allOf[%d]: %w", i, err)
			}
			src, ok := r.store.Record(ref)
			if !ok {
				return ref, nil
			}
			for _, key := range src.Keys() {
				f, _ := src.Field(key)
				rec.Set(key, f)
				pending.Delete(key)
			}
			continue
		}

		branchRequired := mergeSets(required, requiredSet(branch))
		if branch.Has("allOf") {
			degraded, err := r.collect(rec, branch, branchRequired, pending)
			if err != nil || degraded != "" {
				return degraded, err
			}
			continue
		}
		addPending(pending, branch, branchRequired)
	}
	addPending(pending, node, required)
	return "", nil
}

func addPending(pending *orderedmap.OrderedMap[string, pendingProp], node tree.Node, required map[string]bool) {
	props, ok := node.Get("properties")
	if !ok {
		return
	}
	for _, key := range props.Keys() {
		prop, _ := props.Get(key)
		pending.Set(key, pendingProp{node: prop, required: required[key]})
	}
}

func (r *Resolver) mergeProperties(rec *model.Record, owner string, node tree.Node, required map[string]bool) error {
	props, ok := node.Get("properties")
	if !ok {
		return nil
	}
	for _, key := range props.Keys() {
		prop, _ := props.Get(key)
		t, err := r.ResolveInline(owner, key, prop)
		if err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
		rec.Set(key, model.Field{
			Description: description(prop),
			Type:        t,
			Required:    required[key],
		})
	}
	return nil
}

// ResolveInline resolves the property key of owner to a type reference,
// synthesizing declarations for anonymous nested shapes.
func (r *Resolver) ResolveInline(owner, key string, prop tree.Node) (model.TypeRef, error) {
	typ, hasType := schemaType(prop)
	if !hasType || typ == "object" {
		if t, ok := r.objectEscape(prop); ok {
			return t, nil
		}
	}

	base := naming.Join(owner, key, "")
	switch {
	case prop.Has("oneOf") || prop.Has("anyOf"):
		return r.synthesize(base, prop, r.resolveUnion)
	case prop.Has("allOf"):
		return r.synthesize(base, prop, r.resolveComposition)
	case prop.Has("$ref"):
		return r.resolveRef(prop)
	}

	switch typ {
	case "object":
		return r.inlineObject(base, prop)
	case "array":
		return r.ResolveArray(owner, key, prop)
	case "string":
		if prop.Has("enum") {
			return r.synthesize(base, prop, r.resolveUnion)
		}
	}
	if p, ok := model.PrimitiveFor(typ); ok {
		return model.Prim(p), nil
	}

	if !hasType {
		switch {
		case prop.Has("items"):
			return r.ResolveArray(owner, key, prop)
		case prop.Has("properties"):
			return r.synthesize(base, prop, r.resolveRecord)
		case prop.Has("enum"):
			return r.synthesize(base, prop, r.resolveUnion)
		case unconstrained(prop):
			return model.Dynamic(), nil
		}
	}
	return model.TypeRef{}, newError(UnresolvablePropertyShape, owner, key, "property matches no known shape", prop)
}

// annotationKeys describe a schema without constraining its shape.
var annotationKeys = map[string]bool{
	"description": true, "title": true, "example": true, "examples": true,
	"default": true, "nullable": true, "readOnly": true, "writeOnly": true,
	"deprecated": true,
}

// unconstrained reports a mapping that accepts any value: {} or one that
// only carries annotations and vendor extensions.
func unconstrained(node tree.Node) bool {
	if !node.IsMapping() {
		return false
	}
	for _, k := range node.Keys() {
		if !annotationKeys[k] && !strings.HasPrefix(k, "x-") {
			return false
		}
	}
	return true
}

func emptyObject(node tree.Node) bool {
	ap, ok := node.Get("additionalProperties")
	if !ok {
		return false
	}
	if b, ok := ap.Bool(); !ok || b {
		return false
	}
	props, _ := node.Get("properties")
	return props == nil || len(props.Keys()) == 0
}

func requiredSet(node tree.Node) map[string]bool {
	out := make(map[string]bool)
	req, ok := node.Get("required")
	if !ok {
		return out
	}
	for _, item := range req.List() {
		if s, ok := item.String(); ok {
			out[s] = true
		}
	}
	return out
}

func mergeSets(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
