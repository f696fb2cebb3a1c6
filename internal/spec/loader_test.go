package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func expectCode(t *testing.T, err error, codes ...ErrorCode) *SpecError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	for _, c := range codes {
		if se.Code == c {
			return se
		}
	}
	t.Fatalf("expected one of %v, got %v (%v)", codes, se.Code, err)
	return nil
}

const petstoreV3 = `openapi: 3.0.0
info:
  title: Petstore
  version: "1.2.0"
paths: {}
components:
  schemas:
    Pet:
      type: object
      properties:
        id:
          type: integer
    Tag:
      type: string
`

func TestLoad_EmptyInput(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "  ")
	expectCode(t, err, InputError)
}

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "file:///etc/hosts")
	expectCode(t, err, InputError)
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "ftp://example.com/spec.yaml")
	expectCode(t, err, InputError)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	se := expectCode(t, err, InputError)
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	expectCode(t, err, NetworkError)
}

func TestLoad_FromHTTP(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(petstoreV3))
	}))
	defer srv.Close()

	doc, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithBackoffBase(time.Millisecond))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected one retry, got %d requests", n)
	}
	if doc.Title() != "Petstore" || doc.Version() != "1.2.0" {
		t.Fatalf("info: got %q %q", doc.Title(), doc.Version())
	}
	if got := doc.Schemas().Keys(); len(got) != 2 || got[0] != "Pet" {
		t.Fatalf("schemas: got %v", got)
	}
}

func TestLoad_HTTPClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithBackoffBase(time.Millisecond))
	expectCode(t, err, NetworkError)
	if n := hits.Load(); n != 1 {
		t.Fatalf("expected a single request, got %d", n)
	}
}

func TestLoad_V3_File(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "petstore.yaml", petstoreV3)
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.SourceVersion != 3 || doc.OpenAPI == nil {
		t.Fatalf("expected validated v3 document, got version %d", doc.SourceVersion)
	}
	pet, ok := doc.Schemas().Get("Pet")
	if !ok || pet.Path() != "#/components/schemas/Pet" {
		t.Fatalf("Pet schema not reachable")
	}
}

func TestLoad_V3_InvalidSpec(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "bad.yaml", `openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses: {}
`)
	_, err := Load(context.Background(), path)
	se := expectCode(t, err, ValidationError, ParseError)
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}

	doc, err := Load(context.Background(), path, WithValidation(false))
	if err != nil {
		t.Fatalf("load without validation: %v", err)
	}
	if doc.OpenAPI != nil || doc.Title() != "Bad" {
		t.Fatalf("expected raw tree only, got title %q", doc.Title())
	}
	if doc.Schemas() != nil {
		t.Fatalf("expected no schemas")
	}
}

func TestLoad_UnknownVersion(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "odd.yaml", "openapi: 4.0.0\ninfo: {title: x, version: '1'}\n")
	_, err := Load(context.Background(), path)
	expectCode(t, err, ParseError)
}

func TestLoad_V2_Conversion_Success(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger.yaml", `swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello":
    get:
      responses:
        "200":
          description: ok
          schema:
            $ref: '#/definitions/Greeting'
definitions:
  Greeting:
    type: object
    properties:
      text:
        type: string
      tags:
        type: array
        items:
          $ref: '#/definitions/Tag'
  Tag:
    type: string
`)
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.SourceVersion != 2 || doc.OpenAPI == nil {
		t.Fatalf("expected converted document")
	}
	if !strings.HasPrefix(doc.OpenAPI.OpenAPI, "3.") {
		t.Fatalf("expected OpenAPI v3, got %q", doc.OpenAPI.OpenAPI)
	}
	greeting, ok := doc.Schemas().Get("Greeting")
	if !ok {
		t.Fatalf("Greeting not converted into components.schemas")
	}
	items, ok := greeting.Get("properties")
	if !ok {
		t.Fatalf("Greeting has no properties")
	}
	tags, _ := items.Get("tags")
	ref, _ := tags.Get("items")
	if got, _ := ref.Get("$ref"); got == nil {
		t.Fatalf("tags items lost their reference")
	} else if s, _ := got.String(); s != "#/components/schemas/Tag" {
		t.Fatalf("ref not rewritten: %q", s)
	}
	if doc.Title() != "Sample" || doc.Version() != "1.0.0" {
		t.Fatalf("info not carried over: %q %q", doc.Title(), doc.Version())
	}
	if got := greeting.Path(); got != "#/components/schemas/Greeting" {
		t.Fatalf("unexpected schema path %q", got)
	}
}

func TestLoad_V2_KeepsExtensionsAndWithoutDefinitions(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger-ext.yaml", `swagger: "2.0"
info:
  title: Ext
  version: "1"
paths:
  "/bag":
    get:
      responses:
        "200":
          description: ok
          schema:
            $ref: '#/definitions/Bag'
definitions:
  Bag:
    type: object
    x-type-label: map
    properties:
      owner:
        $ref: '#/definitions/Owner'
  Owner:
    type: string
`)
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bag, ok := doc.Schemas().Get("Bag")
	if !ok {
		t.Fatalf("Bag missing")
	}
	if s, _ := bag.Get("x-type-label"); s == nil {
		t.Fatalf("vendor extension dropped")
	}

	bare := writeSpec(t, "swagger-bare.yaml", `swagger: "2.0"
info:
  title: Bare
  version: "1"
paths:
  "/ping":
    get:
      responses:
        "200":
          description: ok
`)
	doc, err = Load(context.Background(), bare)
	if err != nil {
		t.Fatalf("load bare: %v", err)
	}
	if doc.Schemas() != nil {
		t.Fatalf("expected no schemas for a document without definitions")
	}
	if doc.Title() != "Bare" {
		t.Fatalf("title = %q", doc.Title())
	}
}

func TestLoad_V2_Conversion_Failure(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger-bad.yaml", `swagger: "2.0"
paths: {}
`)
	_, err := Load(context.Background(), path)
	expectCode(t, err, ConversionError, ValidationError, ParseError)
}
