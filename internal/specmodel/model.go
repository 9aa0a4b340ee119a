package specmodel

import "strings"

// Model is the canonical, read-only view of one spec document.
type Model struct {
	Info           Info
	OpenAPIVersion string
	SpecSHA        string // short fingerprint of the source bytes
	Servers        []string
	Tags           []Tag
	Operations     []*Operation // sorted by ID
	Components     []*Component // sorted by registry then name

	operations map[string]*Operation
	components map[ComponentKey]*Component
}

// Info is the document's info block.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Tag is a declared top-level tag.
type Tag struct {
	Name        string
	Description string
}

// Operation is one HTTP method on one path.
type Operation struct {
	ID          string // method:normalized-path
	Method      string
	Path        string // normalized
	RawPath     string // as written in the document
	OperationID string // vendor operationId, may be empty
	Summary     string
	Description string
	Deprecated  bool
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response
	// Samples holds vendor code samples keyed by normalized language.
	Samples map[string]string
	// Components lists the sorted component keys the operation uses directly.
	Components []ComponentKey
	// Reaches lists every component reachable from the operation, sorted.
	Reaches []ComponentKey
	Origin  string
}

// Title is the human heading of the operation.
func (o *Operation) Title() string {
	if o.Summary != "" {
		return o.Summary
	}
	if o.OperationID != "" {
		return o.OperationID
	}
	return strings.ToUpper(o.Method) + " " + o.Path
}

// PrimaryTag is the first tag, or "untagged".
func (o *Operation) PrimaryTag() string {
	if len(o.Tags) == 0 {
		return UntaggedTag
	}
	return o.Tags[0]
}

// ParametersIn returns the parameters of one location in declaration order.
func (o *Operation) ParametersIn(in string) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// UntaggedTag groups operations that declare no tag.
const UntaggedTag = "untagged"

// ParameterLocations lists parameter locations in rendering order.
var ParameterLocations = []string{"path", "query", "header", "cookie"}

// Parameter is an operation or component parameter.
type Parameter struct {
	Name        string
	In          string
	Description string
	Required    bool
	Deprecated  bool
	Schema      *SchemaNode
	Examples    []Example
	// Ref is set when the parameter came from components.parameters.
	Ref *ComponentKey
}

// MediaType is one content entry of a body or response.
type MediaType struct {
	ContentType string
	Schema      *SchemaNode
	Examples    []Example
}

// Example is a labeled example value rendered as indented JSON.
type Example struct {
	Label string
	Value string
}

// RequestBody is an operation or component request body.
type RequestBody struct {
	Description string
	Required    bool
	Content     []MediaType // sorted by content type
	Ref         *ComponentKey
}

// Response is one status entry of an operation, or a response component.
type Response struct {
	Status      string
	Description string
	Headers     []Header
	Content     []MediaType
	Ref         *ComponentKey
}

// Header is a response header.
type Header struct {
	Name        string
	Description string
	Required    bool
	Schema      *SchemaNode
}

// Component is a named registry entry. Exactly one of Schema, Parameter,
// Response or RequestBody is set, matching Key.Kind.
type Component struct {
	Key         ComponentKey
	Description string
	Schema      *SchemaNode
	Parameter   *Parameter
	Response    *Response
	RequestBody *RequestBody
	// References are the components this one points at, sorted.
	References []ComponentKey
	// UsedBy are the IDs of operations reaching this component, sorted.
	UsedBy []string
	// ReferencedBy are the components pointing at this one, sorted.
	ReferencedBy []ComponentKey
	Origin       string
}

// Title is the human heading of the component.
func (c *Component) Title() string { return c.Key.Name }

// Operation looks up an operation by ID.
func (m *Model) Operation(id string) (*Operation, bool) {
	op, ok := m.operations[id]
	return op, ok
}

// Component looks up a component by key.
func (m *Model) Component(key ComponentKey) (*Component, bool) {
	c, ok := m.components[key]
	return c, ok
}

// ServerURL is the base URL used for synthesized samples.
func (m *Model) ServerURL() string {
	if len(m.Servers) > 0 && m.Servers[0] != "" {
		return m.Servers[0]
	}
	return DefaultServerURL
}

// DefaultServerURL is used when the document declares no server.
const DefaultServerURL = "https://api.example.com"
