package specmodel

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/source"
)

type builder struct {
	origin   string
	root     *yaml.Node
	raw      map[ComponentKey]*yaml.Node
	built    map[ComponentKey]*Component
	building map[ComponentKey]bool
	inlining map[string]bool
}

// Build derives the canonical model from doc in a single traversal of the
// component registries and the paths object.
func Build(doc *source.SpecDocument) (*Model, error) {
	if doc == nil || doc.Root == nil {
		return nil, builderrors.SourceMalformed("<nil>", fmt.Errorf("no document"))
	}
	b := &builder{
		origin:   doc.Origin,
		root:     doc.Root,
		raw:      map[ComponentKey]*yaml.Node{},
		built:    map[ComponentKey]*Component{},
		building: map[ComponentKey]bool{},
		inlining: map[string]bool{},
	}

	m := &Model{
		OpenAPIVersion: doc.OpenAPIVersion,
		SpecSHA:        doc.ShortSHA(),
		operations:     map[string]*Operation{},
		components:     map[ComponentKey]*Component{},
	}
	info := field(b.root, "info")
	m.Info = Info{Title: str(info, "title"), Version: str(info, "version"), Description: str(info, "description")}
	for _, srv := range items(field(b.root, "servers")) {
		if u := strings.TrimSuffix(str(srv, "url"), "/"); u != "" {
			m.Servers = append(m.Servers, u)
		}
	}
	for _, t := range items(field(b.root, "tags")) {
		if name := str(t, "name"); name != "" {
			m.Tags = append(m.Tags, Tag{Name: name, Description: str(t, "description")})
		}
	}

	if err := b.buildComponents(m); err != nil {
		return nil, err
	}
	if err := b.buildOperations(m); err != nil {
		return nil, err
	}
	b.link(m)

	slog.Debug("Model built",
		logfields.Source(doc.Origin),
		slog.Int("operations", len(m.Operations)),
		slog.Int("components", len(m.Components)))
	return m, nil
}

func (b *builder) at(n *yaml.Node) string {
	if n == nil {
		return b.origin
	}
	return location(b.origin, n.Line)
}

func (b *builder) buildComponents(m *Model) error {
	registries := field(b.root, "components")
	var keys []ComponentKey
	for _, kind := range ComponentKinds {
		for _, p := range sortedPairs(field(registries, kind.Registry())) {
			key := ComponentKey{Kind: kind, Name: p.key}
			b.raw[key] = p.value
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		c, err := b.component(key, nil)
		if err != nil {
			return err
		}
		m.Components = append(m.Components, c)
		m.components[key] = c
	}
	return nil
}

// component builds a registry entry once; later calls return the memoized value.
func (b *builder) component(key ComponentKey, from *yaml.Node) (*Component, error) {
	if c, ok := b.built[key]; ok {
		return c, nil
	}
	raw, ok := b.raw[key]
	if !ok {
		return nil, builderrors.DanglingReference(key.Pointer(), b.at(from))
	}
	if b.building[key] {
		return nil, builderrors.DanglingReference(key.Pointer(), b.at(from)+" (circular alias)")
	}
	b.building[key] = true
	defer delete(b.building, key)

	c := &Component{Key: key, Description: str(raw, "description"), Origin: b.at(raw)}
	switch key.Kind {
	case KindSchema:
		s, err := b.schemaTop(raw)
		if err != nil {
			return nil, err
		}
		c.Schema = s
		c.References = s.Refs()
	case KindParameter:
		p, err := b.parameter(raw)
		if err != nil {
			return nil, err
		}
		c.Parameter = &p
		c.Description = p.Description
		c.References = parameterRefs(p)
	case KindResponse:
		r, err := b.response("", raw)
		if err != nil {
			return nil, err
		}
		c.Response = &r
		c.Description = r.Description
		c.References = responseRefs(r)
	case KindRequestBody:
		rb, err := b.requestBody(raw)
		if err != nil {
			return nil, err
		}
		c.RequestBody = rb
		c.Description = rb.Description
		c.References = requestBodyRefs(rb)
	}
	b.built[key] = c
	return c, nil
}

// inline resolves a non-registry local pointer and hands its target to fn.
func (b *builder) inline(ref string, at *yaml.Node, fn func(*yaml.Node) error) error {
	if !strings.HasPrefix(ref, "#") {
		return builderrors.DanglingReference(ref, b.at(at)+" (external references are not supported)")
	}
	if b.inlining[ref] {
		return builderrors.DanglingReference(ref, b.at(at)+" (circular pointer)")
	}
	target, err := walkPointer(b.root, ref)
	if err != nil {
		return builderrors.DanglingReference(ref, b.at(at))
	}
	b.inlining[ref] = true
	defer delete(b.inlining, ref)
	return fn(target)
}

type pathEntry struct {
	norm string
	raw  string
	item *yaml.Node
}

func (b *builder) buildOperations(m *Model) error {
	var entries []pathEntry
	for _, p := range pairs(field(b.root, "paths")) {
		if strings.HasPrefix(p.key, "x-") {
			continue
		}
		entries = append(entries, pathEntry{norm: NormalizePath(p.key), raw: p.key, item: p.value})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].norm != entries[j].norm {
			return entries[i].norm < entries[j].norm
		}
		return entries[i].raw < entries[j].raw
	})

	for _, e := range entries {
		item := e.item
		if ref := str(item, "$ref"); ref != "" {
			if err := b.inline(ref, item, func(target *yaml.Node) error {
				item = target
				return nil
			}); err != nil {
				return err
			}
		}
		shared, err := b.parameterList(field(item, "parameters"))
		if err != nil {
			return err
		}
		for _, mp := range sortedPairs(item) {
			if !IsMethod(mp.key) {
				continue
			}
			op, err := b.operation(e, mp, shared)
			if err != nil {
				return err
			}
			if prev, dup := m.operations[op.ID]; dup {
				return builderrors.DuplicateOperation(op.ID, prev.Origin, op.Origin)
			}
			m.operations[op.ID] = op
			m.Operations = append(m.Operations, op)
		}
	}
	sort.SliceStable(m.Operations, func(i, j int) bool { return m.Operations[i].ID < m.Operations[j].ID })
	return nil
}

func (b *builder) operation(e pathEntry, mp pair, shared []Parameter) (*Operation, error) {
	n := mp.value
	op := &Operation{
		ID:          OperationID(mp.key, e.raw),
		Method:      NormalizeMethod(mp.key),
		Path:        e.norm,
		RawPath:     e.raw,
		OperationID: str(n, "operationId"),
		Summary:     strings.TrimSpace(str(n, "summary")),
		Description: strings.TrimSpace(str(n, "description")),
		Deprecated:  boolean(n, "deprecated"),
		Tags:        dedupe(strList(field(n, "tags"))),
		Samples:     vendorSamples(n),
		Origin:      fmt.Sprintf("%s %s at %s", strings.ToUpper(mp.key), e.raw, location(b.origin, mp.line)),
	}
	if len(op.Tags) == 0 {
		op.Tags = []string{UntaggedTag}
	}

	own, err := b.parameterList(field(n, "parameters"))
	if err != nil {
		return nil, err
	}
	op.Parameters = mergeParameters(shared, own)

	if rb := field(n, "requestBody"); rb != nil {
		body, err := b.requestBody(rb)
		if err != nil {
			return nil, err
		}
		op.RequestBody = body
	}

	statuses := pairs(field(n, "responses"))
	sort.SliceStable(statuses, func(i, j int) bool { return statusLess(statuses[i].key, statuses[j].key) })
	for _, sp := range statuses {
		if strings.HasPrefix(sp.key, "x-") {
			continue
		}
		r, err := b.response(sp.key, sp.value)
		if err != nil {
			return nil, err
		}
		op.Responses = append(op.Responses, r)
	}

	refs := keySet{}
	for _, p := range op.Parameters {
		refs.add(parameterRefs(p)...)
	}
	refs.add(requestBodyRefs(op.RequestBody)...)
	for _, r := range op.Responses {
		refs.add(responseRefs(r)...)
	}
	op.Components = refs.sorted()
	return op, nil
}

func (b *builder) parameterList(n *yaml.Node) ([]Parameter, error) {
	var out []Parameter
	for _, it := range items(n) {
		p, err := b.parameter(it)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// mergeParameters overlays operation parameters on path parameters by (name, in).
func mergeParameters(shared, own []Parameter) []Parameter {
	type id struct{ name, in string }
	var out []Parameter
	pos := map[id]int{}
	for _, list := range [][]Parameter{shared, own} {
		for _, p := range list {
			k := id{p.Name, p.In}
			if i, ok := pos[k]; ok {
				out[i] = p
				continue
			}
			pos[k] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func (b *builder) parameter(n *yaml.Node) (Parameter, error) {
	if ref := str(n, "$ref"); ref != "" {
		if key, ok := registryKey(ref); ok && key.Kind == KindParameter {
			c, err := b.component(key, n)
			if err != nil {
				return Parameter{}, err
			}
			p := *c.Parameter
			p.Ref = &key
			return p, nil
		}
		var p Parameter
		err := b.inline(ref, n, func(target *yaml.Node) error {
			var ierr error
			p, ierr = b.parameter(target)
			return ierr
		})
		return p, err
	}

	p := Parameter{
		Name:        str(n, "name"),
		In:          strings.ToLower(str(n, "in")),
		Description: strings.TrimSpace(str(n, "description")),
		Required:    boolean(n, "required"),
		Deprecated:  boolean(n, "deprecated"),
	}
	if p.In == "path" {
		p.Required = true
	}
	var err error
	switch {
	case field(n, "schema") != nil:
		p.Schema, err = b.schemaTop(field(n, "schema"))
	case field(n, "content") != nil:
		var media []MediaType
		media, err = b.content(field(n, "content"))
		if err == nil && len(media) > 0 {
			p.Schema = media[0].Schema
		}
	}
	if err != nil {
		return Parameter{}, err
	}
	if p.Schema == nil {
		p.Schema = AnySchema()
	}
	p.Examples, err = b.examples(n)
	return p, err
}

func (b *builder) requestBody(n *yaml.Node) (*RequestBody, error) {
	if ref := str(n, "$ref"); ref != "" {
		if key, ok := registryKey(ref); ok && key.Kind == KindRequestBody {
			c, err := b.component(key, n)
			if err != nil {
				return nil, err
			}
			rb := *c.RequestBody
			rb.Ref = &key
			return &rb, nil
		}
		var rb *RequestBody
		err := b.inline(ref, n, func(target *yaml.Node) error {
			var ierr error
			rb, ierr = b.requestBody(target)
			return ierr
		})
		return rb, err
	}

	content, err := b.content(field(n, "content"))
	if err != nil {
		return nil, err
	}
	return &RequestBody{
		Description: strings.TrimSpace(str(n, "description")),
		Required:    boolean(n, "required"),
		Content:     content,
	}, nil
}

func (b *builder) response(status string, n *yaml.Node) (Response, error) {
	if ref := str(n, "$ref"); ref != "" {
		if key, ok := registryKey(ref); ok && key.Kind == KindResponse {
			c, err := b.component(key, n)
			if err != nil {
				return Response{}, err
			}
			r := *c.Response
			r.Status = status
			r.Ref = &key
			return r, nil
		}
		var r Response
		err := b.inline(ref, n, func(target *yaml.Node) error {
			var ierr error
			r, ierr = b.response(status, target)
			return ierr
		})
		return r, err
	}

	r := Response{Status: status, Description: strings.TrimSpace(str(n, "description"))}
	var err error
	if r.Content, err = b.content(field(n, "content")); err != nil {
		return Response{}, err
	}
	for _, hp := range sortedPairs(field(n, "headers")) {
		h, err := b.header(hp.key, hp.value)
		if err != nil {
			return Response{}, err
		}
		r.Headers = append(r.Headers, h)
	}
	return r, nil
}

func (b *builder) header(name string, n *yaml.Node) (Header, error) {
	if ref := str(n, "$ref"); ref != "" {
		var h Header
		err := b.inline(ref, n, func(target *yaml.Node) error {
			var ierr error
			h, ierr = b.header(name, target)
			return ierr
		})
		return h, err
	}
	h := Header{Name: name, Description: strings.TrimSpace(str(n, "description")), Required: boolean(n, "required")}
	s, err := b.schemaTop(field(n, "schema"))
	if err != nil {
		return Header{}, err
	}
	h.Schema = s
	return h, nil
}

func (b *builder) content(n *yaml.Node) ([]MediaType, error) {
	var out []MediaType
	for _, cp := range sortedPairs(n) {
		mt := MediaType{ContentType: cp.key}
		if s := field(cp.value, "schema"); s != nil {
			schema, err := b.schemaTop(s)
			if err != nil {
				return nil, err
			}
			mt.Schema = schema
		}
		examples, err := b.examples(cp.value)
		if err != nil {
			return nil, err
		}
		mt.Examples = examples
		out = append(out, mt)
	}
	return out, nil
}

// examples reads `example` (labeled "default") and the `examples` map in source order.
func (b *builder) examples(n *yaml.Node) ([]Example, error) {
	var out []Example
	if ex := field(n, "example"); ex != nil {
		out = append(out, Example{Label: "default", Value: jsonText(ex)})
	}
	for _, ep := range pairs(field(n, "examples")) {
		value := ep.value
		if ref := str(value, "$ref"); ref != "" {
			if err := b.inline(ref, value, func(target *yaml.Node) error {
				value = target
				return nil
			}); err != nil {
				return nil, err
			}
		}
		if value.Kind == yaml.MappingNode {
			v := field(value, "value")
			if v == nil {
				continue
			}
			value = v
		}
		out = append(out, Example{Label: ep.key, Value: jsonText(value)})
	}
	return out, nil
}

func parameterRefs(p Parameter) []ComponentKey {
	if p.Ref != nil {
		return []ComponentKey{*p.Ref}
	}
	return p.Schema.Refs()
}

func requestBodyRefs(rb *RequestBody) []ComponentKey {
	if rb == nil {
		return nil
	}
	if rb.Ref != nil {
		return []ComponentKey{*rb.Ref}
	}
	set := keySet{}
	for _, mt := range rb.Content {
		set.add(mt.Schema.Refs()...)
	}
	return set.sorted()
}

func responseRefs(r Response) []ComponentKey {
	if r.Ref != nil {
		return []ComponentKey{*r.Ref}
	}
	set := keySet{}
	for _, mt := range r.Content {
		set.add(mt.Schema.Refs()...)
	}
	for _, h := range r.Headers {
		set.add(h.Schema.Refs()...)
	}
	return set.sorted()
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
