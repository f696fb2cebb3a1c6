// Package deps derives the "relies on" and "wanted by" relations between the
// names of a resolved store and a render order with dependencies first.
package deps

import (
	"errors"
	"fmt"
	"slices"

	"ocm.software/open-component-model/bindings/go/dag"

	"github.com/mark3labs/oapi2types/internal/model"
	"github.com/mark3labs/oapi2types/internal/resolve"
)

const attrKind = "oapi2types/kind"

// Index is built once after resolution and never mutated afterwards.
type Index struct {
	graph  *dag.DirectedAcyclicGraph[string]
	wanted *dag.DirectedAcyclicGraph[string]
	// back holds edges that would close a cycle; they stay out of graph.
	back map[string][]string
}

// Build walks every type ref held by the store. A Named ref to a name the
// store does not bind is a dangling reference.
func Build(store *model.Store) (*Index, error) {
	g := dag.NewDirectedAcyclicGraph[string]()
	names := store.Names()
	for _, name := range names {
		if err := g.AddVertex(name, map[string]any{attrKind: kindOf(store, name)}); err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
	}

	idx := &Index{graph: g, back: make(map[string][]string)}
	for _, name := range names {
		for _, ref := range refsOf(store, name) {
			if ref == name {
				continue
			}
			if !g.Contains(ref) {
				return nil, &resolve.Error{
					Code:    resolve.DanglingReference,
					Name:    ref,
					Message: fmt.Sprintf("referenced by %s", name),
				}
			}
			if err := g.AddEdge(name, ref); err != nil {
				var cycle *dag.CycleError
				if !errors.As(err, &cycle) {
					return nil, fmt.Errorf("link %s -> %s: %w", name, ref, err)
				}
				idx.back[name] = append(idx.back[name], ref)
			}
		}
	}

	rev, err := g.Reverse()
	if err != nil {
		return nil, fmt.Errorf("reverse dependency graph: %w", err)
	}
	idx.wanted = rev
	return idx, nil
}

// ReliesOn lists the names that name refers to, sorted.
func (idx *Index) ReliesOn(name string) []string {
	out := append(neighbors(idx.graph, name), idx.back[name]...)
	slices.Sort(out)
	return slices.Compact(out)
}

// WantedBy lists the names that refer to name, sorted.
func (idx *Index) WantedBy(name string) []string {
	out := neighbors(idx.wanted, name)
	for from, tos := range idx.back {
		if slices.Contains(tos, name) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Order returns every name with each name placed after the names it relies
// on. Ties are broken alphabetically.
func (idx *Index) Order() ([]string, error) {
	order, err := idx.graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("order declarations: %w", err)
	}
	return order, nil
}

// Kind returns "record", "enum" or "alias" for a bound name.
func (idx *Index) Kind(name string) string {
	v, ok := idx.graph.GetVertex(name)
	if !ok {
		return ""
	}
	k, _ := v.Attributes.Load(attrKind)
	s, _ := k.(string)
	return s
}

// Names returns every indexed name, sorted.
func (idx *Index) Names() []string { return idx.graph.GetVertices() }

func neighbors(g *dag.DirectedAcyclicGraph[string], name string) []string {
	v, ok := g.GetVertex(name)
	if !ok {
		return nil
	}
	var out []string
	v.Edges.Range(func(key, _ any) bool {
		out = append(out, key.(string))
		return true
	})
	return out
}

func refsOf(store *model.Store, name string) []string {
	var out []string
	for _, t := range store.References(name) {
		out = append(out, t.NamedRefs()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func kindOf(store *model.Store, name string) string {
	switch d, _ := store.Declaration(name); d.(type) {
	case *model.Record:
		return "record"
	case *model.Enum:
		return "enum"
	}
	return "alias"
}
