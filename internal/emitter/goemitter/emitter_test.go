package goemitter

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapi2types/internal/emitter"
	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/resolve"
	"github.com/mark3labs/oapi2types/internal/tree"
)

const petstore = `
components:
  schemas:
    Pet:
      type: object
      description: A pet in the store.
      required: [id, kind, self]
      properties:
        id:
          type: integer
          description: Unique id.
        name:
          type: string
        kind:
          $ref: '#/components/schemas/Kind'
        self:
          $ref: '#/components/schemas/Pet'
        tags:
          type: array
          items:
            $ref: '#/components/schemas/Tag'
        labels:
          type: object
          additionalProperties:
            type: string
        extra:
          type: object
          x-type-label: map
    Kind:
      type: string
      enum: [cat, dog]
    Tag:
      type: string
    Pets:
      type: array
      items:
        $ref: '#/components/schemas/Pet'
    Shape:
      anyOf:
        - $ref: '#/components/schemas/Circle'
        - type: string
          enum: [none]
    Circle:
      type: object
      properties:
        radius:
          type: number
`

func input(t *testing.T, doc string) *emitter.Input {
	t.Helper()
	root, err := tree.Parse([]byte(doc))
	require.NoError(t, err)
	schemas, ok := tree.Lookup(root, "components", "schemas")
	require.True(t, ok)
	res, err := resolve.ResolveAll(context.Background(), schemas)
	require.NoError(t, err)
	in, err := emitter.NewInput("Petstore", "1.0.0", res.Store)
	require.NoError(t, err)
	return in
}

func render(t *testing.T, in *emitter.Input) string {
	t.Helper()
	order, err := in.Index.Order()
	require.NoError(t, err)
	src, err := Render(in, "petstore", order)
	require.NoError(t, err)

	_, err = parser.ParseFile(token.NewFileSet(), typesFile, src, parser.ParseComments)
	require.NoError(t, err, "rendered source must parse:\n%s", src)
	return squash(string(src))
}

// squash collapses gofmt column alignment so assertions can use single spaces.
func squash(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

func TestRender_Declarations(t *testing.T) {
	t.Parallel()
	src := render(t, input(t, petstore))

	require.Contains(t, src, "// Code generated by oapi2types. DO NOT EDIT.")
	require.Contains(t, src, "// Source: Petstore 1.0.0")
	require.Contains(t, src, "package petstore")
	require.Contains(t, src, `"encoding/json"`)

	require.Contains(t, src, "// A pet in the store.\ntype Pet struct {")
	require.Contains(t, src, "// Unique id.\nId int64 `json:\"id\"`")
	require.Contains(t, src, "Name *string `json:\"name,omitempty\"`")
	require.Contains(t, src, "Kind Kind `json:\"kind\"`")
	require.Contains(t, src, "Self *Pet `json:\"self\"`")
	require.Contains(t, src, "Tags []Tag `json:\"tags,omitempty\"`")
	require.Contains(t, src, "Labels map[string]string `json:\"labels,omitempty\"`")
	require.Contains(t, src, "Extra json.RawMessage `json:\"extra,omitempty\"`")

	require.Contains(t, src, "type Kind string")
	require.Contains(t, src, `KindCat Kind = "cat"`)
	require.Contains(t, src, `KindDog Kind = "dog"`)
	require.Contains(t, src, "type Tag = string")
	require.Contains(t, src, "type Pets = []Pet")
}

func TestRender_DependenciesFirst(t *testing.T) {
	t.Parallel()
	src := render(t, input(t, petstore))

	pos := func(decl string) int {
		i := strings.Index(src, decl)
		require.GreaterOrEqual(t, i, 0, "missing %q", decl)
		return i
	}
	require.Less(t, pos("type Kind string"), pos("type Pet struct"))
	require.Less(t, pos("type Tag = string"), pos("type Pet struct"))
	require.Less(t, pos("type Pet struct"), pos("type Pets = []Pet"))
	require.Less(t, pos("type Circle struct"), pos("type Shape struct"))
}

func TestRender_TaggedUnion(t *testing.T) {
	t.Parallel()
	src := render(t, input(t, petstore))

	require.Contains(t, src, "type Shape struct {\nCircle *Circle\nNone bool\n}")
	require.Contains(t, src, "func (u Shape) MarshalJSON() ([]byte, error)")
	require.Contains(t, src, "func (u *Shape) UnmarshalJSON(data []byte) error")
	require.Contains(t, src, `case "none":`)
	require.Contains(t, src, `"fmt"`)
}

func TestRender_CyclicAliasIsDefinedType(t *testing.T) {
	t.Parallel()
	s := model.NewStore()
	require.NoError(t, s.AddAlias("Tree", model.ListOf(model.Named("Tree"))))
	in, err := emitter.NewInput("", "", s)
	require.NoError(t, err)

	src := render(t, in)
	require.Contains(t, src, "type Tree []Tree")
	require.NotContains(t, src, "// Source:")
}

func TestRender_IdentifierCollisions(t *testing.T) {
	t.Parallel()
	s := model.NewStore()
	require.NoError(t, s.AddAlias("pet_owner", model.Prim(model.String)))
	require.NoError(t, s.AddAlias("PetOwner", model.Prim(model.Integer)))
	rec := model.NewRecord("Holder", "")
	rec.Set("a_b", model.Field{Type: model.Named("pet_owner"), Required: true})
	rec.Set("aB", model.Field{Type: model.Named("PetOwner"), Required: true})
	require.NoError(t, s.AddDeclaration(rec))
	in, err := emitter.NewInput("", "", s)
	require.NoError(t, err)

	src := render(t, in)
	require.Contains(t, src, "type PetOwner = int64")
	require.Contains(t, src, "type PetOwner2 = string")
	require.Contains(t, src, "AB PetOwner `json:\"aB\"`")
	require.Contains(t, src, "AB2 PetOwner2 `json:\"a_b\"`")
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), input(t, petstore), emitter.Options{OutDir: dir, PackageName: "example.com/Pet-Store", DryRun: true})
	require.NoError(t, err)
	require.Equal(t, "petstore", res.PackageName)
	require.Equal(t, []string{"types.go"}, res.Paths())
	require.Contains(t, res.Order, "Pet")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "dry-run must not write")
}

func TestEmit_WriteAndContents(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")
	res, err := Emit(context.Background(), input(t, petstore), emitter.Options{OutDir: dir})
	require.NoError(t, err)
	require.Equal(t, defaultPackage, res.PackageName)

	data, err := os.ReadFile(filepath.Join(dir, "types.go"))
	require.NoError(t, err)
	require.Contains(t, string(data), "package api")
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600))

	_, err := Emit(context.Background(), input(t, petstore), emitter.Options{OutDir: dir})
	require.ErrorIs(t, err, emitter.ErrNotEmpty)
}

func TestSanitizePackageName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "petstore", sanitizePackageName("github.com/acme/Pet-Store"))
	require.Equal(t, "p2fa", sanitizePackageName("2fa"))
	require.Equal(t, "", sanitizePackageName(" "))
}
