package tree

import (
	"testing"
)

const sampleDoc = `openapi: 3.0.0
components:
  schemas:
    Pet:
      type: object
      required: [id]
      properties:
        id:
          type: integer
        name: &name
          type: string
        nick: *name
    Tag:
      type: string
      x-meta: true
`

func TestParse_LookupAndKeys(t *testing.T) {
	t.Parallel()
	root, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	schemas, ok := Lookup(root, "components", "schemas")
	if !ok {
		t.Fatalf("components.schemas not found")
	}
	keys := schemas.Keys()
	if len(keys) != 2 || keys[0] != "Pet" || keys[1] != "Tag" {
		t.Fatalf("keys: got %v", keys)
	}

	pet, _ := schemas.Get("Pet")
	if pet.Path() != "#/components/schemas/Pet" {
		t.Errorf("path: got %q", pet.Path())
	}
	if got := StringAt(pet, "type"); got != "object" {
		t.Errorf("type: got %q", got)
	}
	req, _ := pet.Get("required")
	if items := req.List(); len(items) != 1 {
		t.Fatalf("required: got %d items", len(items))
	}

	props, _ := pet.Get("properties")
	if got := props.Keys(); len(got) != 3 || got[2] != "nick" {
		t.Fatalf("property order: got %v", got)
	}
	nick, ok := props.Get("nick")
	if !ok || StringAt(nick, "type") != "string" {
		t.Fatalf("alias node not followed")
	}
}

func TestNode_ShapeMismatch(t *testing.T) {
	t.Parallel()
	root, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tag, ok := Lookup(root, "components", "schemas", "Tag")
	if !ok {
		t.Fatalf("Tag not found")
	}
	typ, _ := tag.Get("type")
	if _, ok := typ.Get("anything"); ok {
		t.Errorf("scalar Get should fail")
	}
	if typ.List() != nil || typ.Keys() != nil {
		t.Errorf("scalar List/Keys should be nil")
	}
	if _, ok := tag.String(); ok {
		t.Errorf("mapping String should fail")
	}
	meta, _ := tag.Get("x-meta")
	if b, ok := meta.Bool(); !ok || !b {
		t.Errorf("x-meta bool: got %v %v", b, ok)
	}
	if meta.IsNull() {
		t.Errorf("x-meta should not be null")
	}
	if _, ok := Lookup(root, "components", "missing", "deeper"); ok {
		t.Errorf("missing path should not resolve")
	}
}

func TestPath_EscapesSegments(t *testing.T) {
	t.Parallel()
	root, err := Parse([]byte("paths:\n  /pets/{id}:\n    a~b: 1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, ok := Lookup(root, "paths", "/pets/{id}", "a~b")
	if !ok {
		t.Fatalf("lookup failed")
	}
	if n.Path() != "#/paths/~1pets~1{id}/a~0b" {
		t.Fatalf("path: got %q", n.Path())
	}
}
