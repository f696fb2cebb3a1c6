// Package pyemitter renders a resolved store as Python dataclasses.
package pyemitter

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
)

const (
	name           = "pyemitter"
	defaultPackage = "api_types"

	initPy = "\"\"\"Generated by oapi2types.\"\"\"\n\nfrom .models import *  # noqa: F401,F403\n"
)

// Emit writes a src/<package> layout with a models module and a minimal
// pyproject.toml.
func Emit(ctx context.Context, in *emitter.Input, opts emitter.Options) (*emitter.Result, error) {
	if err := emitter.Check(name, in, opts); err != nil {
		return nil, err
	}
	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = defaultPackage
	}
	order, err := in.Index.Order()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	models, err := Render(in, order)
	if err != nil {
		return nil, err
	}
	slogcontext.FromCtx(ctx).Debug("rendered python models", "package", pkg, "declarations", len(order))

	src := path.Join("src", pkg)
	files := map[string][]byte{
		"pyproject.toml":              []byte(renderPyproject(pkg, in.Version)),
		path.Join(src, "__init__.py"): []byte(initPy),
		path.Join(src, "models.py"):   models,
		path.Join(src, "py.typed"):    nil,
	}
	return emitter.Finish(ctx, name, files, opts, &emitter.Result{PackageName: pkg, Order: order})
}

// Render returns the models module for the store.
func Render(in *emitter.Input, order []string) ([]byte, error) {
	ids, _ := emitter.Identifiers(order, naming.Identifier)
	r := &renderer{store: in.Store, ids: ids, defined: map[string]bool{}, typing: map[string]bool{}}

	var body strings.Builder
	for _, n := range order {
		body.WriteString("\n\n")
		if err := r.decl(&body, n); err != nil {
			return nil, err
		}
		r.defined[n] = true
	}

	var b strings.Builder
	b.WriteString(`"""Generated by oapi2types. DO NOT EDIT.`)
	if in.Title != "" {
		fmt.Fprintf(&b, "\n\nSource: %s", strings.TrimSpace(in.Title+" "+in.Version))
	}
	b.WriteString("\n\"\"\"\n\nfrom __future__ import annotations\n\n")
	if r.dataclass {
		b.WriteString("from dataclasses import dataclass, field\n")
	}
	if r.enum {
		b.WriteString("from enum import Enum\n")
	}
	if len(r.typing) > 0 {
		names := make([]string, 0, len(r.typing))
		for n := range r.typing {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "from typing import %s\n", strings.Join(names, ", "))
	}
	b.WriteString(body.String())
	b.WriteString("\n")
	return []byte(b.String()), nil
}

type renderer struct {
	store   *model.Store
	ids     map[string]string
	defined map[string]bool
	typing  map[string]bool

	dataclass bool
	enum      bool
}

type pyField struct {
	name, key, typ, doc string
	required            bool
}

func (r *renderer) decl(b *strings.Builder, n string) error {
	id := r.ids[n]
	if t, ok := r.store.Alias(n); ok {
		fmt.Fprintf(b, "%s = %s", id, r.typeExpr(t, true))
		return nil
	}
	d, ok := r.store.Declaration(n)
	if !ok {
		return fmt.Errorf("%s: %q is not bound", name, n)
	}
	switch d := d.(type) {
	case *model.Record:
		r.record(b, id, d)
	case *model.Enum:
		if d.Kind == model.TaggedUnion {
			r.union(b, id, d)
			return nil
		}
		r.standardEnum(b, id, d)
	}
	return nil
}

func (r *renderer) record(b *strings.Builder, id string, rec *model.Record) {
	r.dataclass = true
	fmt.Fprintf(b, "@dataclass\nclass %s:\n", id)
	writeDocstring(b, rec.Description)

	used := map[string]bool{}
	alloc := naming.Allocator{Taken: func(s string) bool { return used[s] }}
	var required, optional []pyField
	for _, key := range rec.Keys() {
		f, _ := rec.Field(key)
		fname := alloc.Allocate(FieldName(key))
		used[fname] = true
		pf := pyField{name: fname, key: key, typ: r.typeExpr(f.Type, false), doc: f.Description, required: f.Required}
		if f.Required {
			required = append(required, pf)
		} else {
			optional = append(optional, pf)
		}
	}
	if len(required)+len(optional) == 0 {
		b.WriteString("    pass\n")
		return
	}
	// Fields without defaults must precede fields with defaults.
	for _, f := range append(required, optional...) {
		r.field(b, f)
	}
}

func (r *renderer) field(b *strings.Builder, f pyField) {
	typ := f.typ
	var args []string
	if !f.required {
		r.typing["Optional"] = true
		typ = "Optional[" + typ + "]"
		args = append(args, "default=None")
	}
	if f.name != f.key {
		args = append(args, fmt.Sprintf("metadata={\"json\": %s}", strconv.Quote(f.key)))
	}
	line := fmt.Sprintf("    %s: %s", f.name, typ)
	switch {
	case len(args) == 1 && !f.required && f.name == f.key:
		line += " = None"
	case len(args) > 0:
		line += " = field(" + strings.Join(args, ", ") + ")"
	}
	if doc := emitter.DocLines(f.doc); len(doc) > 0 {
		line += "  # " + doc[0]
	}
	b.WriteString(line + "\n")
}

func (r *renderer) standardEnum(b *strings.Builder, id string, e *model.Enum) {
	r.enum = true
	fmt.Fprintf(b, "class %s(str, Enum):\n", id)
	writeDocstring(b, e.Description)
	used := map[string]bool{}
	alloc := naming.Allocator{Taken: func(s string) bool { return used[s] }}
	for _, v := range e.Variants {
		member := alloc.Allocate(strings.ToUpper(naming.Snake(v.Name)))
		used[member] = true
		value := v.Value
		if value == "" {
			value = v.Name
		}
		fmt.Fprintf(b, "    %s = %s\n", member, strconv.Quote(value))
	}
}

func (r *renderer) union(b *strings.Builder, id string, e *model.Enum) {
	r.typing["Union"] = true
	parts := make([]string, 0, len(e.Variants))
	for _, v := range e.Variants {
		switch {
		case v.IsUnit():
			r.typing["Literal"] = true
			value := v.Value
			if value == "" {
				value = v.Name
			}
			parts = append(parts, "Literal["+strconv.Quote(value)+"]")
		case v.Value != "" && v.Payload.Kind == model.KindPrimitive && v.Payload.Primitive == model.String:
			r.typing["Literal"] = true
			parts = append(parts, "Literal["+strconv.Quote(v.Value)+"]")
		default:
			parts = append(parts, r.typeExpr(*v.Payload, true))
		}
	}
	for _, line := range emitter.DocLines(e.Description) {
		fmt.Fprintf(b, "# %s\n", line)
	}
	fmt.Fprintf(b, "%s = Union[\n", id)
	for _, p := range parts {
		fmt.Fprintf(b, "    %s,\n", p)
	}
	b.WriteString("]")
}

// typeExpr renders t. Module-level expressions are evaluated eagerly, so a
// named type that is not defined yet is quoted there.
func (r *renderer) typeExpr(t model.TypeRef, eager bool) string {
	switch t.Kind {
	case model.KindNamed:
		id, ok := r.ids[t.Name]
		if !ok {
			id = naming.Identifier(t.Name)
		}
		if eager && !r.defined[t.Name] {
			return strconv.Quote(id)
		}
		return id
	case model.KindList:
		r.typing["List"] = true
		if t.Elem == nil {
			r.typing["Any"] = true
			return "List[Any]"
		}
		return "List[" + r.typeExpr(*t.Elem, eager) + "]"
	case model.KindPrimitive:
		switch t.Primitive {
		case model.Integer:
			return "int"
		case model.Float:
			return "float"
		case model.Boolean:
			return "bool"
		}
		return "str"
	case model.KindStringMap:
		r.typing["Dict"] = true
		return "Dict[str, str]"
	}
	r.typing["Any"] = true
	return "Any"
}

func writeDocstring(b *strings.Builder, doc string) {
	lines := emitter.DocLines(doc)
	if len(lines) == 0 {
		return
	}
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(l, `"""`, `\"\"\"`)
	}
	if len(lines) == 1 {
		fmt.Fprintf(b, "    \"\"\"%s\"\"\"\n\n", lines[0])
		return
	}
	fmt.Fprintf(b, "    \"\"\"%s\n\n", lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(b, "    %s\n", l)
	}
	b.WriteString("    \"\"\"\n\n")
}

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true,
	"finally": true, "for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true, "nonlocal": true,
	"not": true, "or": true, "pass": true, "raise": true, "return": true,
	"try": true, "while": true, "with": true, "yield": true,
	// A class attribute with these names shadows the helpers used by later fields.
	"field": true, "dataclass": true,
}

// FieldName turns a JSON property key into a Python attribute name.
// Reserved words get a trailing underscore.
func FieldName(key string) string {
	s := naming.Snake(key)
	switch {
	case s == "":
		return "field_"
	case s[0] >= '0' && s[0] <= '9':
		s = "f_" + s
	}
	if keywords[s] {
		s += "_"
	}
	return s
}

func renderPyproject(pkg, version string) string {
	if strings.TrimSpace(version) == "" {
		version = "0.0.0"
	}
	return fmt.Sprintf(`[build-system]
requires = ["setuptools>=61"]
build-backend = "setuptools.build_meta"

[project]
name = %s
version = %s
requires-python = ">=3.8"

[tool.setuptools.packages.find]
where = ["src"]
`, strconv.Quote(strings.ReplaceAll(pkg, "_", "-")), strconv.Quote(version))
}

// sanitizePackageName turns name into an importable Python package name.
func sanitizePackageName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "p" + out
	}
	return out
}
