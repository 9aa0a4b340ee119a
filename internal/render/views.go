package render

import (
	"html/template"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

type linkView struct {
	Href string
	ID   string
	Text string
}

type linksView struct {
	Class string
	Title string
	Links []linkView
}

type schemaView struct {
	Label       string
	Link        *linkView
	Nullable    bool
	Deprecated  bool
	Description string
	Enum        []string
	Default     string
	Properties  []propertyView
	Additional  *schemaView
	Items       *schemaView
	Union       string
	Members     []*schemaView
}

type propertyView struct {
	Name     string
	Required bool
	Schema   *schemaView
}

type paramView struct {
	Name        string
	In          string
	Required    bool
	Deprecated  bool
	Description template.HTML
	Schema      *schemaView
	Link        *linkView
}

type paramGroup struct {
	Title  string
	Params []paramView
}

type mediaView struct {
	ContentType string
	Schema      *schemaView
}

type headerView struct {
	Name        string
	Required    bool
	Description string
	Schema      *schemaView
}

type responseView struct {
	Status      string
	Description template.HTML
	Headers     []headerView
	Content     []mediaView
	Link        *linkView
}

type bodyView struct {
	Required    bool
	Description template.HTML
	Content     []mediaView
	Link        *linkView
}

type exampleView struct {
	Title string
	Value string
}

// paramGroupTitles holds the heading of each parameter location. Casers keep
// state, so the titles are computed once instead of per render.
var paramGroupTitles = func() map[string]string {
	caser := cases.Title(language.English)
	out := make(map[string]string, len(specmodel.ParameterLocations))
	for _, in := range specmodel.ParameterLocations {
		out[in] = caser.String(in) + " parameters"
	}
	return out
}()

// pageBuilder converts model values into template views for one fragment and
// records every fragment it links to.
type pageBuilder struct {
	self  string // output path of the fragment being rendered
	md    goldmark.Markdown
	links map[string]struct{}
}

func newPageBuilder(selfPath string) *pageBuilder {
	return &pageBuilder{self: selfPath, md: newMarkdown(), links: map[string]struct{}{}}
}

func (p *pageBuilder) linkTo(key specmodel.ComponentKey) *linkView {
	id := ComponentFragmentID(key)
	target, err := PathFor(id)
	if err != nil {
		return nil
	}
	p.links[id] = struct{}{}
	return &linkView{Href: relPath(p.self, target), ID: id, Text: key.Name}
}

func (p *pageBuilder) linkList(class, title string, keys []specmodel.ComponentKey) linksView {
	v := linksView{Class: class, Title: title}
	for _, k := range keys {
		if l := p.linkTo(k); l != nil {
			v.Links = append(v.Links, *l)
		}
	}
	return v
}

// siblings links the other operations sharing op's primary tag, rendered in
// the same language.
func (p *pageBuilder) siblings(m *specmodel.Model, op *specmodel.Operation, lang string) linksView {
	v := linksView{Class: "siblings", Title: "Related operations"}
	tag := op.PrimaryTag()
	for _, other := range m.Operations {
		if other.ID == op.ID || other.PrimaryTag() != tag {
			continue
		}
		id := OperationFragmentID(other.ID, lang)
		target, err := PathFor(id)
		if err != nil {
			continue
		}
		p.links[id] = struct{}{}
		v.Links = append(v.Links, linkView{Href: relPath(p.self, target), ID: id, Text: other.Title()})
	}
	return v
}

func (p *pageBuilder) linkedIDs() []string {
	out := make([]string, 0, len(p.links))
	for id := range p.links {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (p *pageBuilder) markdown(src string) template.HTML {
	return markdownHTML(p.md, src)
}

func (p *pageBuilder) schema(n *specmodel.SchemaNode) *schemaView {
	if n == nil {
		return nil
	}
	v := &schemaView{
		Label: n.TypeLabel(),
		// Links show the bare component name, so the flag is rendered separately.
		Nullable:    n.Nullable && n.Ref != nil,
		Deprecated:  n.Deprecated,
		Description: strings.TrimSpace(n.Description),
		Enum:        n.Enum,
		Default:     n.Default,
		Union:       n.Union,
	}
	if n.Ref != nil {
		v.Link = p.linkTo(*n.Ref)
	}
	for _, prop := range n.Properties {
		v.Properties = append(v.Properties, propertyView{Name: prop.Name, Required: prop.Required, Schema: p.schemaOrAny(prop.Schema)})
	}
	v.Additional = p.schema(n.Additional)
	v.Items = p.schema(n.Items)
	for _, m := range n.Members {
		v.Members = append(v.Members, p.schemaOrAny(m))
	}
	return v
}

// schemaOrAny is schema for positions that always show a type.
func (p *pageBuilder) schemaOrAny(n *specmodel.SchemaNode) *schemaView {
	if n == nil {
		n = specmodel.AnySchema()
	}
	return p.schema(n)
}

func (p *pageBuilder) parameter(param specmodel.Parameter) paramView {
	v := paramView{
		Name:        param.Name,
		In:          param.In,
		Required:    param.Required,
		Deprecated:  param.Deprecated,
		Description: p.markdown(param.Description),
		Schema:      p.schemaOrAny(param.Schema),
	}
	if param.Ref != nil {
		v.Link = p.linkTo(*param.Ref)
	}
	return v
}

func (p *pageBuilder) parameterGroups(op *specmodel.Operation) []paramGroup {
	var groups []paramGroup
	for _, in := range specmodel.ParameterLocations {
		params := op.ParametersIn(in)
		if len(params) == 0 {
			continue
		}
		g := paramGroup{Title: paramGroupTitles[in]}
		for _, param := range params {
			g.Params = append(g.Params, p.parameter(param))
		}
		groups = append(groups, g)
	}
	return groups
}

func (p *pageBuilder) media(content []specmodel.MediaType) []mediaView {
	var out []mediaView
	for _, mt := range content {
		out = append(out, mediaView{ContentType: mt.ContentType, Schema: p.schema(mt.Schema)})
	}
	return out
}

func (p *pageBuilder) response(r specmodel.Response) responseView {
	v := responseView{
		Status:      r.Status,
		Description: p.markdown(r.Description),
		Content:     p.media(r.Content),
	}
	for _, h := range r.Headers {
		v.Headers = append(v.Headers, headerView{Name: h.Name, Required: h.Required, Description: h.Description, Schema: p.schemaOrAny(h.Schema)})
	}
	if r.Ref != nil {
		v.Link = p.linkTo(*r.Ref)
	}
	return v
}

func (p *pageBuilder) body(rb *specmodel.RequestBody) *bodyView {
	if rb == nil {
		return nil
	}
	v := &bodyView{Required: rb.Required, Description: p.markdown(rb.Description), Content: p.media(rb.Content)}
	if rb.Ref != nil {
		v.Link = p.linkTo(*rb.Ref)
	}
	return v
}

func mediaExamples(prefix string, content []specmodel.MediaType) []exampleView {
	var out []exampleView
	for _, mt := range content {
		for _, ex := range mt.Examples {
			out = append(out, exampleView{Title: strings.TrimSpace(prefix + " " + mt.ContentType + " (" + ex.Label + ")"), Value: ex.Value})
		}
	}
	return out
}

func operationExamples(op *specmodel.Operation) []exampleView {
	var out []exampleView
	if op.RequestBody != nil {
		out = append(out, mediaExamples("Request", op.RequestBody.Content)...)
	}
	for _, r := range op.Responses {
		out = append(out, mediaExamples("Response "+r.Status, r.Content)...)
	}
	return out
}
