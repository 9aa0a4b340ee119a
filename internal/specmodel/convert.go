package specmodel

import (
	"gopkg.in/yaml.v3"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
)

var unionKeywords = []string{"oneOf", "anyOf", "allOf"}

// schemaTop converts a schema and canonicalizes the resulting tree.
func (b *builder) schemaTop(n *yaml.Node) (*SchemaNode, error) {
	s, err := b.schema(n)
	if err != nil {
		return nil, err
	}
	s.canonicalize()
	return s, nil
}

func (b *builder) schema(n *yaml.Node) (*SchemaNode, error) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		// Boolean schemas and garbage both accept anything.
		return AnySchema(), nil
	}

	if ref := str(n, "$ref"); ref != "" {
		if key, ok := registryKey(ref); ok && key.Kind == KindSchema {
			if _, exists := b.raw[key]; !exists {
				return nil, builderrors.DanglingReference(ref, b.at(n))
			}
			s := RefSchema(key.Name)
			s.Description = str(n, "description")
			return s, nil
		}
		var s *SchemaNode
		err := b.inline(ref, n, func(target *yaml.Node) error {
			var ierr error
			s, ierr = b.schema(target)
			return ierr
		})
		return s, err
	}

	s := &SchemaNode{
		Kind:        SchemaAny,
		Title:       str(n, "title"),
		Description: str(n, "description"),
		Deprecated:  boolean(n, "deprecated"),
		Nullable:    boolean(n, "nullable"),
	}
	for _, e := range items(field(n, "enum")) {
		s.Enum = append(s.Enum, jsonScalar(e))
	}
	if d := field(n, "default"); d != nil {
		s.Default = jsonScalar(d)
	}
	if ex := field(n, "example"); ex != nil {
		s.Example = jsonText(ex)
	} else if list := items(field(n, "examples")); len(list) > 0 {
		s.Example = jsonText(list[0])
	}

	for _, kw := range unionKeywords {
		members := items(field(n, kw))
		if len(members) == 0 {
			continue
		}
		s.Kind = SchemaUnion
		s.Union = kw
		for _, m := range members {
			ms, err := b.schema(m)
			if err != nil {
				return nil, err
			}
			s.Members = append(s.Members, ms)
		}
		return s, nil
	}

	types, nullable := schemaTypes(field(n, "type"))
	s.Nullable = s.Nullable || nullable
	switch len(types) {
	case 0:
		switch {
		case nullable:
			s.Nullable = false
			return s, b.shape(s, n, "null")
		case field(n, "properties") != nil || field(n, "additionalProperties") != nil:
			return s, b.shape(s, n, "object")
		case field(n, "items") != nil:
			return s, b.shape(s, n, "array")
		}
		return s, nil
	case 1:
		return s, b.shape(s, n, types[0])
	default:
		s.Kind = SchemaUnion
		s.Union = "anyOf"
		for _, t := range types {
			member := &SchemaNode{}
			if err := b.shape(member, n, t); err != nil {
				return nil, err
			}
			s.Members = append(s.Members, member)
		}
		return s, nil
	}
}

// shape fills the structural part of s for a single JSON type.
func (b *builder) shape(s *SchemaNode, n *yaml.Node, typ string) error {
	switch typ {
	case "object":
		s.Kind = SchemaObject
		required := map[string]bool{}
		for _, r := range strList(field(n, "required")) {
			required[r] = true
		}
		for _, pp := range sortedPairs(field(n, "properties")) {
			ps, err := b.schema(pp.value)
			if err != nil {
				return err
			}
			s.Properties = append(s.Properties, Property{Name: pp.key, Required: required[pp.key], Schema: ps})
		}
		if ap := field(n, "additionalProperties"); ap != nil {
			switch {
			case ap.Kind == yaml.MappingNode:
				as, err := b.schema(ap)
				if err != nil {
					return err
				}
				s.Additional = as
			case ap.Kind == yaml.ScalarNode && ap.Value == "true":
				s.Additional = AnySchema()
			}
		}
	case "array":
		s.Kind = SchemaArray
		is, err := b.schema(field(n, "items"))
		if err != nil {
			return err
		}
		s.Items = is
	default:
		s.Kind = SchemaPrimitive
		s.Type = typ
		s.Format = str(n, "format")
	}
	return nil
}

// schemaTypes reads `type` as a string or a 3.1 type array; "null" becomes a flag.
func schemaTypes(n *yaml.Node) ([]string, bool) {
	var raw []string
	switch {
	case n == nil:
		return nil, false
	case n.Kind == yaml.ScalarNode:
		raw = []string{n.Value}
	default:
		raw = strList(n)
	}
	var types []string
	nullable := false
	for _, t := range raw {
		if t == "null" {
			nullable = true
			continue
		}
		types = append(types, t)
	}
	return types, nullable
}
