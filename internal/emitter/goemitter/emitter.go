// Package goemitter renders a resolved store as Go source.
package goemitter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/tools/imports"

	"github.com/mark3labs/oapi2types/internal/emitter"
)

const (
	name           = "goemitter"
	defaultPackage = "api"
	typesFile      = "types.go"
)

// Emit renders every declaration and alias of the store into a single Go
// file, in dependency order.
func Emit(ctx context.Context, in *emitter.Input, opts emitter.Options) (*emitter.Result, error) {
	if err := emitter.Check(name, in, opts); err != nil {
		return nil, err
	}
	log := slogcontext.FromCtx(ctx)

	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = defaultPackage
	}
	order, err := in.Index.Order()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	src, err := Render(in, pkg, order)
	if err != nil {
		return nil, err
	}
	log.Debug("rendered go source", "package", pkg, "declarations", len(order), "bytes", len(src))

	files := map[string][]byte{typesFile: src}
	return emitter.Finish(ctx, name, files, opts, &emitter.Result{PackageName: pkg, Order: order})
}

// Render returns the formatted Go source for the store.
func Render(in *emitter.Input, pkg string, order []string) ([]byte, error) {
	data, err := newBuilder(in.Store, in.Index, order).build(pkg, in.Title, in.Version, order)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%s: exec template: %w", name, err)
	}
	out, err := imports.Process(typesFile, buf.Bytes(), &imports.Options{Comments: true, TabIndent: true, TabWidth: 8, FormatOnly: false})
	if err != nil {
		return nil, fmt.Errorf("%s: format source: %w\n%s", name, err, buf.String())
	}
	return out, nil
}

func sanitizePackageName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "p" + out
	}
	return out
}

var fileTemplate = template.Must(template.New(typesFile).Parse(`// Code generated by oapi2types. DO NOT EDIT.
{{- if .Title}}
// Source: {{.Title}}{{if .Version}} {{.Version}}{{end}}
{{- end}}

package {{.Package}}
{{range .Decls}}
{{- range .Doc}}
// {{.}}
{{- end}}
{{- if eq .Kind "struct"}}
type {{.Name}} struct {
{{- range .Fields}}
{{- range .Doc}}
	// {{.}}
{{- end}}
	{{.Name}} {{.Type}} {{.Tag}}
{{- end}}
}
{{else if eq .Kind "enum"}}
type {{.Name}} string

const (
{{- $enum := .Name}}
{{- range .Consts}}
	{{.Name}} {{$enum}} = {{printf "%q" .Value}}
{{- end}}
)
{{else if eq .Kind "union"}}
type {{.Name}} struct {
{{- range .Variants}}
	{{.Name}} {{if .Unit}}bool{{else}}*{{.Type}}{{end}}
{{- end}}
}

// MarshalJSON encodes the first variant that is set.
func (u {{.Name}}) MarshalJSON() ([]byte, error) {
{{- range .Variants}}
{{- if .Unit}}
	if u.{{.Name}} {
		return json.Marshal({{printf "%q" .Value}})
	}
{{- else}}
	if u.{{.Name}} != nil {
		return json.Marshal(u.{{.Name}})
	}
{{- end}}
{{- end}}
	return []byte("null"), nil
}

// UnmarshalJSON sets the first variant data decodes into.
func (u *{{.Name}}) UnmarshalJSON(data []byte) error {
	*u = {{.Name}}{}
{{- if .HasUnits}}
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		switch literal {
{{- range .Variants}}{{if .Unit}}
		case {{printf "%q" .Value}}:
			u.{{.Name}} = true
			return nil
{{- end}}{{end}}
		}
	}
{{- end}}
{{- range .Variants}}{{if not .Unit}}
	{
		var v {{.Type}}
		if err := json.Unmarshal(data, &v); err == nil {
			u.{{.Name}} = &v
			return nil
		}
	}
{{- end}}{{end}}
	return fmt.Errorf("{{.Name}}: no variant matches %s", data)
}
{{else}}
type {{.Name}} {{if not .Defined}}= {{end}}{{.Alias}}
{{end}}
{{- end}}`))
