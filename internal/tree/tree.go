// Package tree is a read-only, path-indexable view over a parsed YAML/JSON
// document. Every accessor returns an empty result on shape mismatch instead
// of failing, so callers can probe optional keys freely.
package tree

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node is one subtree of a loaded document.
type Node interface {
	// Get returns the value stored under key when the node is a mapping.
	Get(key string) (Node, bool)
	// Has reports whether the mapping contains key.
	Has(key string) bool
	// String returns the scalar value of the node.
	String() (string, bool)
	// Bool returns the scalar value of the node parsed as a boolean.
	Bool() (bool, bool)
	// List returns the items of a sequence node, nil otherwise.
	List() []Node
	// Keys returns the mapping keys in document order, nil otherwise.
	Keys() []string
	IsMapping() bool
	IsSequence() bool
	IsScalar() bool
	// IsNull reports an explicit YAML/JSON null.
	IsNull() bool
	// Path is the JSON pointer of the node relative to the document root.
	Path() string
	// Encode renders the subtree as YAML, for diagnostics.
	Encode() string
}

type yamlNode struct {
	n    *yaml.Node
	path string
}

// Parse decodes YAML or JSON bytes into a Node rooted at the document.
func Parse(data []byte) (Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return FromYAML(&doc), nil
}

// FromYAML wraps an already decoded yaml.Node. Document nodes are unwrapped.
func FromYAML(n *yaml.Node) Node {
	return &yamlNode{n: deref(n), path: "#"}
}

// Lookup walks keys from node and returns the final node.
func Lookup(node Node, keys ...string) (Node, bool) {
	cur := node
	for _, k := range keys {
		if cur == nil {
			return nil, false
		}
		next, ok := cur.Get(k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// StringAt is a shortcut for Get(key) followed by String().
func StringAt(node Node, key string) string {
	if node == nil {
		return ""
	}
	v, ok := node.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.String()
	return s
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func (y *yamlNode) Get(key string) (Node, bool) {
	if !y.IsMapping() {
		return nil, false
	}
	for i := 0; i+1 < len(y.n.Content); i += 2 {
		if y.n.Content[i].Value == key {
			child := deref(y.n.Content[i+1])
			if child == nil {
				return nil, false
			}
			return &yamlNode{n: child, path: y.path + "/" + escape(key)}, true
		}
	}
	return nil, false
}

func (y *yamlNode) Has(key string) bool {
	_, ok := y.Get(key)
	return ok
}

func (y *yamlNode) String() (string, bool) {
	if !y.IsScalar() {
		return "", false
	}
	return y.n.Value, true
}

func (y *yamlNode) Bool() (bool, bool) {
	s, ok := y.String()
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}

func (y *yamlNode) List() []Node {
	if !y.IsSequence() {
		return nil
	}
	out := make([]Node, 0, len(y.n.Content))
	for i, c := range y.n.Content {
		if c = deref(c); c == nil {
			continue
		}
		out = append(out, &yamlNode{n: c, path: y.path + "/" + strconv.Itoa(i)})
	}
	return out
}

func (y *yamlNode) Keys() []string {
	if !y.IsMapping() {
		return nil
	}
	keys := make([]string, 0, len(y.n.Content)/2)
	for i := 0; i+1 < len(y.n.Content); i += 2 {
		keys = append(keys, y.n.Content[i].Value)
	}
	return keys
}

func (y *yamlNode) IsMapping() bool  { return y != nil && y.n != nil && y.n.Kind == yaml.MappingNode }
func (y *yamlNode) IsSequence() bool { return y != nil && y.n != nil && y.n.Kind == yaml.SequenceNode }
func (y *yamlNode) IsScalar() bool   { return y != nil && y.n != nil && y.n.Kind == yaml.ScalarNode }

func (y *yamlNode) IsNull() bool { return y.IsScalar() && y.n.Tag == "!!null" }

func (y *yamlNode) Path() string { return y.path }

func (y *yamlNode) Encode() string {
	if y == nil || y.n == nil {
		return ""
	}
	out, err := yaml.Marshal(y.n)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// escape applies JSON pointer escaping to a single path segment.
func escape(seg string) string {
	seg = strings.ReplaceAll(seg, "~", "~0")
	return strings.ReplaceAll(seg, "/", "~1")
}
