package e2e

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	cli "github.com/mark3labs/oapi2types/internal/cli"
)

// An OpenAPI 3 document exercising records, enums, unions, maps and recursion.
const openAPISpec = `openapi: 3.0.0
info:
  title: E2E Sample
  version: '1.0.0'
paths: {}
components:
  schemas:
    Pet:
      type: object
      description: A pet for sale.
      required: [id, name]
      properties:
        id:
          type: integer
        name:
          type: string
        status:
          $ref: '#/components/schemas/Status'
        labels:
          $ref: '#/components/schemas/Labels'
        attributes:
          type: object
          x-type-label: map
        owner:
          type: object
          properties:
            name:
              type: string
    Status:
      type: string
      enum: [available, pending, sold]
    Labels:
      type: object
      additionalProperties:
        type: string
    Node:
      type: object
      properties:
        value:
          type: number
        children:
          type: array
          items:
            $ref: '#/components/schemas/Node'
    Animal:
      oneOf:
        - $ref: '#/components/schemas/Pet'
        - $ref: '#/components/schemas/Node'
    Pets:
      type: array
      items:
        $ref: '#/components/schemas/Pet'
`

// The same shapes described as Swagger 2.
const swaggerSpec = `swagger: '2.0'
info:
  title: E2E Legacy
  version: '0.9'
paths:
  /pets:
    get:
      responses:
        '200':
          description: ok
          schema:
            $ref: '#/definitions/Pet'
definitions:
  Pet:
    type: object
    required: [id]
    properties:
      id:
        type: integer
        format: int64
      status:
        $ref: '#/definitions/Status'
  Status:
    type: string
    enum: [available, sold]
`

func writeTempSpec(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return p
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		list = append(list, rel)
		// hash path + contents to be robust
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(list)
	return list, hex.EncodeToString(h.Sum(nil))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func mustContain(t *testing.T, src string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(src, w) {
			t.Errorf("output missing %q:\n%s", w, src)
		}
	}
}

func TestE2E_Deterministic(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, openAPISpec)
	for _, lang := range []string{"go", "typescript", "python", "json"} {
		t.Run(lang, func(t *testing.T) {
			t.Parallel()
			dir1 := t.TempDir()
			dir2 := t.TempDir()

			runCLI(t, "generate", "--input", spec, "--lang", lang, "--out", dir1, "--force")
			runCLI(t, "generate", "--input", spec, "--lang", lang, "--out", dir2, "--force")

			files1, sum1 := digestDir(t, dir1)
			files2, sum2 := digestDir(t, dir2)
			if !slicesEqual(files1, files2) || sum1 != sum2 {
				t.Fatalf("generated outputs differ between runs\nfiles1=%v\nfiles2=%v\nsum1=%s\nsum2=%s", files1, files2, sum1, sum2)
			}
			if len(files1) == 0 {
				t.Fatalf("nothing generated for %s", lang)
			}
		})
	}
}

func TestE2E_Go(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, openAPISpec)
	dir := t.TempDir()
	runCLI(t, "generate", "--input", spec, "--lang", "go", "--out", dir, "--package-name", "sample", "--force")

	src := readFile(t, filepath.Join(dir, "types.go"))
	mustContain(t, src,
		"// Code generated by oapi2types. DO NOT EDIT.",
		"package sample",
		"type Pet struct",
		"json.RawMessage",
		"type Labels = map[string]string",
		"type Status string",
		"type Node struct",
		"[]Node",
		"type Animal struct",
		"func (u *Animal) UnmarshalJSON(data []byte) error",
		"type Pets = []Pet",
	)
	// Dependencies are declared before their dependents.
	if strings.Index(src, "type Status string") > strings.Index(src, "type Pet struct") {
		t.Errorf("Status should precede Pet")
	}

	// Optional: compile the output if the toolchain is available
	if os.Getenv("OAPI2TYPES_E2E_ONLINE") == "1" && haveCmd("go") {
		gomod := "module example.com/sample\n\ngo 1.21\n"
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644); err != nil {
			t.Fatalf("write go.mod: %v", err)
		}
		if out, err := runCmdWithTimeout(dir, time.Minute, "go", "vet", "./..."); err != nil {
			t.Fatalf("go vet failed: %v\n%s", err, out)
		}
	}
}

func TestE2E_TypeScript(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, openAPISpec)
	dir := t.TempDir()
	runCLI(t, "generate", "--input", spec, "--lang", "typescript", "--out", dir, "--force")

	mustContain(t, readFile(t, filepath.Join(dir, "types.ts")),
		"export interface Pet {",
		"id: number;",
		"status?: Status;",
		"export type Labels = Record<string, string>;",
		"children?: Node[];",
	)
	mustContain(t, readFile(t, filepath.Join(dir, "package.json")), `"types": "types.ts"`)
}

func TestE2E_Python(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, openAPISpec)
	dir := t.TempDir()
	runCLI(t, "generate", "--input", spec, "--lang", "python", "--out", dir, "--package-name", "sample", "--force")

	models := filepath.Join(dir, "src", "sample", "models.py")
	mustContain(t, readFile(t, models),
		"from __future__ import annotations",
		"@dataclass",
		"class Pet:",
		"class Status(str, Enum):",
	)

	if os.Getenv("OAPI2TYPES_E2E_ONLINE") == "1" && haveCmd("python3") {
		if out, err := runCmdWithTimeout(dir, time.Minute, "python3", "-m", "py_compile", models); err != nil {
			t.Fatalf("py_compile failed: %v\n%s", err, out)
		}
	}
}

func TestE2E_Swagger2(t *testing.T) {
	t.Parallel()
	spec := writeTempSpec(t, swaggerSpec)
	dir := t.TempDir()
	runCLI(t, "generate", "--input", spec, "--lang", "json", "--out", dir, "--force")

	mustContain(t, readFile(t, filepath.Join(dir, "model.json")),
		`"title": "E2E Legacy"`,
		`"name": "Pet"`,
		`"name": "Status"`,
	)
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
