package spec

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

var v2Methods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "options": true, "head": true,
}

// preprocessV2 rewrites Swagger 2 constructs that openapi2conv rejects or
// that have no OpenAPI 3 schema equivalent:
//   - several body parameters on one operation are merged into one object body;
//   - body parameters mixed with formData become formData themselves;
//   - `type: file` inside definitions becomes a binary string.
//
// The document is edited as a yaml.Node graph so key order survives. On any
// error the input is returned unchanged.
func preprocessV2(data []byte) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return data, false, nil
	}
	root := doc.Content[0]
	changed := false

	if paths := mapValue(root, "paths"); paths != nil {
		for i := 1; i < len(paths.Content); i += 2 {
			item := paths.Content[i]
			for j := 0; j+1 < len(item.Content); j += 2 {
				if !v2Methods[strings.ToLower(item.Content[j].Value)] {
					continue
				}
				if fixOperation(item.Content[j+1]) {
					changed = true
				}
			}
		}
	}
	if defs := mapValue(root, "definitions"); defs != nil {
		for i := 1; i < len(defs.Content); i += 2 {
			if fixFileTypes(defs.Content[i]) {
				changed = true
			}
		}
	}

	if !changed {
		return data, false, nil
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixOperation(op *yaml.Node) bool {
	params := mapValue(op, "parameters")
	if params == nil || params.Kind != yaml.SequenceNode {
		return false
	}
	var body, rest []*yaml.Node
	hasForm := false
	for _, p := range params.Content {
		switch strings.ToLower(scalarValue(p, "in")) {
		case "body":
			body = append(body, p)
			continue
		case "formdata":
			hasForm = true
		}
		rest = append(rest, p)
	}

	switch {
	case len(body) == 0:
		return false
	case hasForm:
		for _, p := range body {
			toFormData(p)
		}
		ensureSequenceValue(op, "consumes", "multipart/form-data")
		return true
	case len(body) > 1:
		params.Content = append([]*yaml.Node{mergeBodies(body)}, rest...)
		return true
	}
	return false
}

func mergeBodies(body []*yaml.Node) *yaml.Node {
	props := mappingNode()
	required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, p := range body {
		name := scalarValue(p, "name")
		if name == "" {
			name = "field"
		}
		schema := paramSchema(p)
		if schema == nil {
			schema = mappingNode("type", "string")
		}
		setValue(props, name, schema)
		if isTrue(mapValue(p, "required")) {
			required.Content = append(required.Content, scalarNode(name))
		}
	}
	schema := mappingNode("type", "object")
	setValue(schema, "properties", props)
	if len(required.Content) > 0 {
		setValue(schema, "required", required)
	}
	merged := mappingNode("in", "body", "name", "body")
	setValue(merged, "schema", schema)
	return merged
}

// toFormData rewrites a body parameter in place. Referenced schemas cannot be
// expressed as form fields and degrade to strings.
func toFormData(p *yaml.Node) {
	name := scalarValue(p, "name")
	if name == "" {
		name = "field"
	}
	out := mappingNode("in", "formData", "name", name)
	if desc := scalarValue(p, "description"); desc != "" {
		setValue(out, "description", scalarNode(desc))
	}
	if req := mapValue(p, "required"); req != nil {
		setValue(out, "required", req)
	}

	src := p
	if sch := mapValue(p, "schema"); sch != nil {
		src = sch
	}
	typ := scalarValue(src, "type")
	if typ == "" || mapValue(src, "$ref") != nil {
		typ = "string"
	}
	setValue(out, "type", scalarNode(typ))
	if items := mapValue(src, "items"); items != nil {
		setValue(out, "items", items)
	}
	if format := scalarValue(src, "format"); format != "" {
		setValue(out, "format", scalarNode(format))
	}
	*p = *out
}

func paramSchema(p *yaml.Node) *yaml.Node {
	if sch := mapValue(p, "schema"); sch != nil && sch.Kind == yaml.MappingNode {
		return sch
	}
	typ := scalarValue(p, "type")
	if typ == "" {
		return nil
	}
	out := mappingNode("type", typ)
	if items := mapValue(p, "items"); items != nil {
		setValue(out, "items", items)
	}
	if format := scalarValue(p, "format"); format != "" {
		setValue(out, "format", scalarNode(format))
	}
	return out
}

// fixFileTypes replaces `type: file` anywhere below n.
func fixFileTypes(n *yaml.Node) bool {
	changed := false
	switch n.Kind {
	case yaml.MappingNode:
		if t := mapValue(n, "type"); t != nil && t.Kind == yaml.ScalarNode && t.Value == "file" {
			t.Value = "string"
			if mapValue(n, "format") == nil {
				setValue(n, "format", scalarNode("binary"))
			}
			changed = true
		}
		for i := 1; i < len(n.Content); i += 2 {
			if fixFileTypes(n.Content[i]) {
				changed = true
			}
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if fixFileTypes(c) {
				changed = true
			}
		}
	}
	return changed
}

func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func scalarValue(n *yaml.Node, key string) string {
	v := mapValue(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}

func setValue(n *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			n.Content[i+1] = value
			return
		}
	}
	n.Content = append(n.Content, scalarNode(key), value)
}

func ensureSequenceValue(n *yaml.Node, key, want string) {
	seq := mapValue(n, key)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setValue(n, key, seq)
	}
	for _, c := range seq.Content {
		if c.Value == want {
			return
		}
	}
	seq.Content = append(seq.Content, scalarNode(want))
}

func isTrue(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && strings.EqualFold(n.Value, "true")
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// mappingNode builds a mapping from alternating string keys and values.
func mappingNode(kv ...string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Content = append(n.Content, scalarNode(kv[i]), scalarNode(kv[i+1]))
	}
	return n
}

const (
	v2DefinitionsPrefix = "#/definitions/"
	v3SchemasPrefix     = "#/components/schemas/"
)

// v2SchemaRoot builds an OpenAPI 3 shaped root holding info and the
// definitions of a Swagger 2 document under components.schemas, with every
// definitions $ref rewritten. The schemas are taken from the source graph
// rather than from the converted document so nothing is lost in conversion.
func v2SchemaRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("document is not a mapping")
	}
	src := doc.Content[0]

	root := mappingNode("openapi", "3.0.0")
	if info := mapValue(src, "info"); info != nil {
		setValue(root, "info", info)
	}
	if defs := mapValue(src, "definitions"); defs != nil && defs.Kind == yaml.MappingNode {
		rewriteDefinitionRefs(defs)
		components := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setValue(components, "schemas", defs)
		setValue(root, "components", components)
	}
	return root, nil
}

func rewriteDefinitionRefs(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "$ref" && v.Kind == yaml.ScalarNode && strings.HasPrefix(v.Value, v2DefinitionsPrefix) {
				v.Value = v3SchemasPrefix + strings.TrimPrefix(v.Value, v2DefinitionsPrefix)
				continue
			}
			rewriteDefinitionRefs(v)
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			rewriteDefinitionRefs(c)
		}
	}
}
