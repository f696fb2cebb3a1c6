// Package tsemitter renders a resolved store as TypeScript declarations.
package tsemitter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/naming"
)

const (
	name           = "tsemitter"
	defaultPackage = "api-types"
	typesFile      = "types.ts"
)

var bareKey = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Emit writes types.ts and a package.json declaring it.
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

	src, err := Render(in, order)
	if err != nil {
		return nil, err
	}
	manifest, err := renderPackageJSON(pkg, in.Version)
	if err != nil {
		return nil, err
	}
	slogcontext.FromCtx(ctx).Debug("rendered typescript", "package", pkg, "declarations", len(order))

	files := map[string][]byte{
		typesFile:      src,
		"package.json": manifest,
	}
	return emitter.Finish(ctx, name, files, opts, &emitter.Result{PackageName: pkg, Order: order})
}

// Render returns types.ts for the store.
func Render(in *emitter.Input, order []string) ([]byte, error) {
	ids, _ := emitter.Identifiers(order, naming.Identifier)
	r := &renderer{store: in.Store, ids: ids}

	var b strings.Builder
	b.WriteString("// Code generated by oapi2types. DO NOT EDIT.\n")
	if in.Title != "" {
		fmt.Fprintf(&b, "// Source: %s\n", strings.TrimSpace(in.Title+" "+in.Version))
	}
	for _, n := range order {
		b.WriteString("\n")
		if err := r.decl(&b, n); err != nil {
			return nil, err
		}
	}
	return []byte(b.String()), nil
}

type renderer struct {
	store *model.Store
	ids   map[string]string
}

func (r *renderer) decl(b *strings.Builder, n string) error {
	id := r.ids[n]
	if t, ok := r.store.Alias(n); ok {
		fmt.Fprintf(b, "export type %s = %s;\n", id, r.typeExpr(t))
		return nil
	}
	d, ok := r.store.Declaration(n)
	if !ok {
		return fmt.Errorf("%s: %q is not bound", name, n)
	}
	writeDoc(b, "", d.Doc())
	switch d := d.(type) {
	case *model.Record:
		fmt.Fprintf(b, "export interface %s {\n", id)
		for _, key := range d.Keys() {
			f, _ := d.Field(key)
			writeDoc(b, "  ", f.Description)
			opt := "?"
			if f.Required {
				opt = ""
			}
			fmt.Fprintf(b, "  %s%s: %s;\n", propertyKey(key), opt, r.typeExpr(f.Type))
		}
		b.WriteString("}\n")
	case *model.Enum:
		parts := make([]string, 0, len(d.Variants))
		for _, v := range d.Variants {
			parts = append(parts, r.variant(v))
		}
		fmt.Fprintf(b, "export type %s =\n  | %s;\n", id, strings.Join(parts, "\n  | "))
	}
	return nil
}

// variant renders unit variants and string literal payloads as literal types.
func (r *renderer) variant(v model.Variant) string {
	if v.IsUnit() {
		value := v.Value
		if value == "" {
			value = v.Name
		}
		return strconv.Quote(value)
	}
	if v.Value != "" && v.Payload.Kind == model.KindPrimitive && v.Payload.Primitive == model.String {
		return strconv.Quote(v.Value)
	}
	return r.typeExpr(*v.Payload)
}

func (r *renderer) typeExpr(t model.TypeRef) string {
	switch t.Kind {
	case model.KindNamed:
		if id, ok := r.ids[t.Name]; ok {
			return id
		}
		return naming.Identifier(t.Name)
	case model.KindList:
		if t.Elem == nil {
			return "unknown[]"
		}
		return r.typeExpr(*t.Elem) + "[]"
	case model.KindPrimitive:
		switch t.Primitive {
		case model.Integer, model.Float:
			return "number"
		case model.Boolean:
			return "boolean"
		}
		return "string"
	case model.KindStringMap:
		return "Record<string, string>"
	}
	return "unknown"
}

func propertyKey(key string) string {
	if bareKey.MatchString(key) {
		return key
	}
	return strconv.Quote(key)
}

func writeDoc(b *strings.Builder, indent, doc string) {
	lines := emitter.DocLines(doc)
	switch len(lines) {
	case 0:
		return
	case 1:
		fmt.Fprintf(b, "%s/** %s */\n", indent, escapeDoc(lines[0]))
		return
	}
	fmt.Fprintf(b, "%s/**\n", indent)
	for _, l := range lines {
		fmt.Fprintf(b, "%s * %s\n", indent, escapeDoc(l))
	}
	fmt.Fprintf(b, "%s */\n", indent)
}

func escapeDoc(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}

type packageJSON struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Types   string   `json:"types"`
	Files   []string `json:"files"`
}

func renderPackageJSON(pkg, version string) ([]byte, error) {
	if strings.TrimSpace(version) == "" {
		version = "0.0.0"
	}
	data, err := json.MarshalIndent(packageJSON{
		Name:    pkg,
		Version: version,
		Types:   typesFile,
		Files:   []string{typesFile},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: marshal package.json: %w", name, err)
	}
	return append(data, '\n'), nil
}

// sanitizePackageName keeps an npm-compatible name: lowercase, digits, dash,
// underscore and dot.
func sanitizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-.")
}
