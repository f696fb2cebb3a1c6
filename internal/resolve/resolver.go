// Package resolve turns the components.schemas table of an OpenAPI document
// into the declarations held by a model.Store.
//
// Resolution is depth-first and synchronous. A name is marked in progress
// before its body is resolved, so a $ref back to it yields Named(name)
// instead of recursing again; composition steps that need the finished body
// of such a name fail with CyclicSchemaReference.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
	"github.com/mark3labs/oapi2types/internal/tree"
)

// Resolver resolves schema names against one components table into a store.
type Resolver struct {
	schemas  tree.Node
	store    *model.Store
	settings Settings
	active   map[string]bool
	names    naming.Allocator
	log      *slog.Logger
}

// New returns a resolver reading schemas (the components.schemas mapping)
// and writing into store.
func New(schemas tree.Node, store *model.Store, opts ...Option) *Resolver {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	r := &Resolver{
		schemas:  schemas,
		store:    store,
		settings: s,
		active:   make(map[string]bool),
		log:      s.Logger,
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	r.names = naming.Allocator{Taken: r.taken}
	return r
}

// Store returns the store the resolver writes into.
func (r *Resolver) Store() *model.Store { return r.store }

// Resolve resolves the top-level schema name. Names already bound or in
// progress are left alone.
func (r *Resolver) Resolve(name string) error {
	if r.store.Has(name) || r.active[name] {
		return nil
	}
	node, ok := r.component(name)
	if !ok {
		return newError(DanglingReference, name, "", "schema not found in components", nil)
	}
	return r.ResolveNode(name, node)
}

// ResolveNode resolves node and binds the outcome under name.
func (r *Resolver) ResolveNode(name string, node tree.Node) error {
	if r.store.Has(name) || r.active[name] {
		return nil
	}
	r.active[name] = true
	defer delete(r.active, name)

	if err := r.dispatch(name, node); err != nil {
		return fmt.Errorf("resolve %s: %w", name, err)
	}
	r.log.Debug("resolved schema", "name", name, "kind", r.kindOf(name))
	return nil
}

func (r *Resolver) dispatch(name string, node tree.Node) error {
	switch {
	case node.Has("oneOf") || node.Has("anyOf"):
		return r.resolveUnion(name, node)
	case node.Has("allOf"):
		return r.resolveRecord(name, node)
	case node.Has("$ref"):
		t, err := r.resolveRef(node)
		if err != nil {
			return err
		}
		return r.bind(name, t)
	}

	typ, hasType := schemaType(node)
	if !hasType {
		switch {
		case r.settings.objectSchema(name):
			return r.resolveObject(name, node)
		case node.Has("items"):
			return r.resolveTopArray(name, node)
		case emptyObject(node):
			r.log.Debug("empty schema, nothing bound", "name", name)
			return nil
		}
		return newError(MissingSchemaType, name, "", "no type, composition keyword or items", node)
	}

	switch typ {
	case "object":
		return r.resolveObject(name, node)
	case "array":
		return r.resolveTopArray(name, node)
	case "string":
		if node.Has("enum") {
			return r.resolveUnion(name, node)
		}
	}
	if p, ok := model.PrimitiveFor(typ); ok {
		return r.bind(name, model.Prim(p))
	}
	return newError(UnsupportedSchemaShape, name, "", fmt.Sprintf("unsupported type %q", typ), node)
}

func (r *Resolver) resolveObject(name string, node tree.Node) error {
	if t, ok := r.objectEscape(node); ok {
		return r.bind(name, t)
	}
	return r.resolveRecord(name, node)
}

func (r *Resolver) resolveTopArray(name string, node tree.Node) error {
	t, err := r.ResolveArray(name, "", node)
	if err != nil {
		return err
	}
	return r.bind(name, t)
}

// objectEscape reports whether an object node is an open map or an untyped
// blob that should not become a record.
func (r *Resolver) objectEscape(node tree.Node) (model.TypeRef, bool) {
	if ap, ok := node.Get("additionalProperties"); ok {
		if b, ok := ap.Bool(); ok && b {
			return model.Dynamic(), true
		}
		if ap.IsMapping() && len(ap.Keys()) == 0 {
			return model.Dynamic(), true
		}
		if tree.StringAt(ap, "type") == "string" {
			return model.StringMapOf(), true
		}
	}
	if ext := r.settings.MapHintExtension; ext != "" && tree.StringAt(node, ext) == r.settings.MapHintValue {
		return model.Dynamic(), true
	}
	if ext := r.settings.MetaHintExtension; ext != "" && !node.Has("properties") {
		if v, ok := node.Get(ext); ok {
			if b, ok := v.Bool(); ok && b {
				return model.Dynamic(), true
			}
		}
	}
	return model.TypeRef{}, false
}

// resolveRef resolves the schema named by node's $ref.
func (r *Resolver) resolveRef(node tree.Node) (model.TypeRef, error) {
	ref := tree.StringAt(node, "$ref")
	name := refName(ref)
	if name == "" {
		return model.TypeRef{}, newError(DanglingReference, ref, "", "empty reference", node)
	}
	return r.reference(name)
}

func (r *Resolver) reference(name string) (model.TypeRef, error) {
	if r.active[name] {
		return model.Named(name), nil
	}
	if err := r.Resolve(name); err != nil {
		return model.TypeRef{}, err
	}
	if !r.store.Has(name) {
		return model.TypeRef{}, newError(DanglingReference, name, "", "referenced schema resolved to nothing", nil)
	}
	return model.Named(name), nil
}

// synthesize resolves node under a freshly allocated name derived from base.
// A body that binds nothing degrades to DynamicValue.
func (r *Resolver) synthesize(base string, node tree.Node, fn func(name string, node tree.Node) error) (model.TypeRef, error) {
	name := r.names.Allocate(base)
	r.active[name] = true
	defer delete(r.active, name)

	if err := fn(name, node); err != nil {
		return model.TypeRef{}, fmt.Errorf("resolve %s: %w", name, err)
	}
	if !r.store.Has(name) {
		return model.Dynamic(), nil
	}
	r.log.Debug("synthesized schema", "name", name, "kind", r.kindOf(name))
	return model.Named(name), nil
}

// inlineObject resolves an anonymous object, binding a record under a name
// derived from base unless the object is an escape.
func (r *Resolver) inlineObject(base string, node tree.Node) (model.TypeRef, error) {
	if t, ok := r.objectEscape(node); ok {
		return t, nil
	}
	return r.synthesize(base, node, r.resolveRecord)
}

func (r *Resolver) bind(name string, t model.TypeRef) error {
	if err := r.store.AddAlias(name, t); err != nil {
		return &Error{Code: NameCollision, Name: name, Cause: err}
	}
	return nil
}

func (r *Resolver) declare(d model.Declaration) error {
	if err := r.store.AddDeclaration(d); err != nil {
		return &Error{Code: NameCollision, Name: d.DeclName(), Cause: err}
	}
	return nil
}

func (r *Resolver) component(name string) (tree.Node, bool) {
	if r.schemas == nil {
		return nil, false
	}
	return r.schemas.Get(name)
}

func (r *Resolver) taken(name string) bool {
	if r.store.Has(name) || r.active[name] {
		return true
	}
	_, ok := r.component(name)
	return ok
}

func (r *Resolver) kindOf(name string) string {
	switch d, _ := r.store.Declaration(name); d.(type) {
	case *model.Record:
		return "record"
	case *model.Enum:
		return "enum"
	}
	if t, ok := r.store.Alias(name); ok {
		return "alias " + t.String()
	}
	return "none"
}

// schemaType returns the type keyword. A list form picks the first non-null
// entry.
func schemaType(node tree.Node) (string, bool) {
	v, ok := node.Get("type")
	if !ok {
		return "", false
	}
	if s, ok := v.String(); ok {
		return s, s != ""
	}
	for _, item := range v.List() {
		if s, ok := item.String(); ok && s != "null" {
			return s, true
		}
	}
	return "", false
}

// refName returns the last path segment of a $ref.
func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	ref = strings.ReplaceAll(ref, "~1", "/")
	return strings.ReplaceAll(ref, "~0", "~")
}

func description(node tree.Node) string {
	return strings.TrimSpace(tree.StringAt(node, "description"))
}

// Failure is a top-level schema that could not be resolved.
type Failure struct {
	Name string
	Err  error
}

// Result is the outcome of ResolveAll.
type Result struct {
	Store    *model.Store
	Failures []Failure
}

// ResolveAll resolves every top-level schema of the components table in
// document order. Without SkipErrors it stops at the first failure; the
// returned result still holds everything resolved so far.
func ResolveAll(ctx context.Context, schemas tree.Node, opts ...Option) (*Result, error) {
	opts = append([]Option{WithLogger(slogcontext.FromCtx(ctx))}, opts...)
	store := model.NewStore()
	r := New(schemas, store, opts...)
	res := &Result{Store: store}
	if schemas == nil {
		return res, nil
	}
	for _, name := range schemas.Keys() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := r.Resolve(name)
		if err == nil {
			continue
		}
		if !r.settings.SkipErrors {
			return res, err
		}
		r.log.Warn("skipping schema", "name", name, "error", err)
		res.Failures = append(res.Failures, Failure{Name: name, Err: err})
	}
	if len(res.Failures) > 0 {
		r.log.Info("resolution finished with failures", "resolved", store.Len(), "failed", len(res.Failures))
	}
	return res, nil
}

// Err joins the recorded failures.
func (res *Result) Err() error {
	errs := make([]error, 0, len(res.Failures))
	for _, f := range res.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
