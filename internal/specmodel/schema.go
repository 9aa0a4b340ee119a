package specmodel

import (
	"encoding/json"
	"sort"
)

// SchemaKind is the variant of a SchemaNode.
type SchemaKind string

const (
	SchemaAny       SchemaKind = "any"
	SchemaPrimitive SchemaKind = "primitive"
	SchemaObject    SchemaKind = "object"
	SchemaArray     SchemaKind = "array"
	SchemaUnion     SchemaKind = "union"
	SchemaRef       SchemaKind = "ref"
)

// SchemaNode is a normalized JSON-Schema-like type. A ref node names a
// schema component and never embeds it.
type SchemaNode struct {
	Kind        SchemaKind    `json:"kind"`
	Type        string        `json:"type,omitempty"`
	Format      string        `json:"format,omitempty"`
	Nullable    bool          `json:"nullable,omitempty"`
	Deprecated  bool          `json:"deprecated,omitempty"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Enum        []string      `json:"enum,omitempty"`
	Default     string        `json:"default,omitempty"`
	Example     string        `json:"example,omitempty"`
	Properties  []Property    `json:"properties,omitempty"`
	Additional  *SchemaNode   `json:"additional,omitempty"`
	Items       *SchemaNode   `json:"items,omitempty"`
	Union       string        `json:"union,omitempty"` // oneOf, anyOf or allOf
	Members     []*SchemaNode `json:"members,omitempty"`
	Ref         *ComponentKey `json:"-"`
	RefName     string        `json:"ref,omitempty"`
}

// Property is a named object member.
type Property struct {
	Name     string      `json:"name"`
	Required bool        `json:"required,omitempty"`
	Schema   *SchemaNode `json:"schema"`
}

// AnySchema is the unconstrained schema.
func AnySchema() *SchemaNode { return &SchemaNode{Kind: SchemaAny} }

// RefSchema returns a node pointing at a schema component.
func RefSchema(name string) *SchemaNode {
	key := ComponentKey{Kind: KindSchema, Name: name}
	return &SchemaNode{Kind: SchemaRef, Ref: &key, RefName: name}
}

// Canonical returns the deterministic serialization of the tree.
func (n *SchemaNode) Canonical() string {
	if n == nil {
		return "null"
	}
	data, err := json.Marshal(n)
	if err != nil {
		// Only strings, bools and nested nodes are marshaled.
		panic(err)
	}
	return string(data)
}

// TypeLabel is a short human label such as "string (date-time)" or "Widget[]".
func (n *SchemaNode) TypeLabel() string {
	if n == nil {
		return "any"
	}
	var label string
	switch n.Kind {
	case SchemaRef:
		label = n.RefName
	case SchemaPrimitive:
		label = n.Type
		if n.Format != "" {
			label += " (" + n.Format + ")"
		}
	case SchemaArray:
		label = n.Items.TypeLabel() + "[]"
	case SchemaObject:
		label = "object"
	case SchemaUnion:
		label = n.Union
	default:
		label = "any"
	}
	if n.Nullable {
		label += " | null"
	}
	return label
}

// Refs returns the sorted component keys referenced anywhere in the tree.
func (n *SchemaNode) Refs() []ComponentKey {
	set := keySet{}
	n.collectRefs(set)
	return set.sorted()
}

func (n *SchemaNode) collectRefs(set keySet) {
	if n == nil {
		return
	}
	if n.Ref != nil {
		set.add(*n.Ref)
	}
	for _, p := range n.Properties {
		p.Schema.collectRefs(set)
	}
	n.Additional.collectRefs(set)
	n.Items.collectRefs(set)
	for _, m := range n.Members {
		m.collectRefs(set)
	}
}

// canonicalize sorts properties by name and union members by serialization.
// Children are canonicalized first so member ordering is stable.
func (n *SchemaNode) canonicalize() {
	if n == nil {
		return
	}
	for _, p := range n.Properties {
		p.Schema.canonicalize()
	}
	n.Additional.canonicalize()
	n.Items.canonicalize()
	for _, m := range n.Members {
		m.canonicalize()
	}
	sort.SliceStable(n.Properties, func(i, j int) bool { return n.Properties[i].Name < n.Properties[j].Name })
	if len(n.Members) > 1 {
		keys := make([]string, len(n.Members))
		for i, m := range n.Members {
			keys[i] = m.Canonical()
		}
		idx := make([]int, len(n.Members))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
		sorted := make([]*SchemaNode, len(n.Members))
		for i, j := range idx {
			sorted[i] = n.Members[j]
		}
		n.Members = sorted
	}
}
