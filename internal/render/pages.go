package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

type operationPage struct {
	ID           string
	Language     string
	Title        string
	Method       string
	Path         string
	Deprecated   bool
	OperationID  string
	Tags         []string
	Description  template.HTML
	ParamGroups  []paramGroup
	RequestBody  *bodyView
	Responses    []responseView
	Examples     []exampleView
	Sample       string
	SampleSource string
	Siblings     linksView
	Related      linksView
}

type componentPage struct {
	ID           string
	Title        string
	Description  template.HTML
	Schema       *schemaView
	Parameter    *paramView
	Responses    []responseView
	RequestBody  *bodyView
	Examples     []exampleView
	References   linksView
	ReferencedBy linksView
	UsedBy       []string
}

func (r *Registry) renderOperation(m *specmodel.Model, e Entity, lang string) (Fragment, error) {
	op := e.Operation
	if op == nil {
		return Fragment{}, fmt.Errorf("operation renderer called without an operation")
	}
	id := OperationFragmentID(op.ID, lang)
	out, err := PathFor(id)
	if err != nil {
		return Fragment{}, err
	}
	sample, source, err := r.sampleFor(m, op, lang)
	if err != nil {
		return Fragment{}, err
	}

	p := newPageBuilder(out)
	page := operationPage{
		ID:           id,
		Language:     lang,
		Title:        op.Title(),
		Method:       strings.ToUpper(op.Method),
		Path:         op.Path,
		Deprecated:   op.Deprecated,
		OperationID:  op.OperationID,
		Tags:         op.Tags,
		Description:  p.markdown(op.Description),
		ParamGroups:  p.parameterGroups(op),
		RequestBody:  p.body(op.RequestBody),
		Examples:     operationExamples(op),
		Sample:       sample,
		SampleSource: source,
		Siblings:     p.siblings(m, op, lang),
		Related:      p.linkList("related", "Referenced components", op.Reaches),
	}
	for _, resp := range op.Responses {
		page.Responses = append(page.Responses, p.response(resp))
	}

	meta := Meta{
		Method:      page.Method,
		APIPath:     op.Path,
		Tag:         op.PrimaryTag(),
		OperationID: op.OperationID,
		Summary:     summaryOf(op.Summary, op.Description),
		Deprecated:  op.Deprecated,
	}
	header := []string{"id=" + id, "kind=" + string(KindOperation), "method=" + page.Method, "path=" + op.Path, "lang=" + lang, "spec=" + m.SpecSHA}
	return r.execute(KindOperation, page, fragmentHead{
		id: id, kind: KindOperation, entity: op.ID, lang: lang, title: page.Title, path: out, meta: meta, header: header,
	}, p)
}

func (r *Registry) renderComponent(m *specmodel.Model, e Entity, _ string) (Fragment, error) {
	c := e.Component
	if c == nil {
		return Fragment{}, fmt.Errorf("component renderer called without a component")
	}
	kind := Kind(c.Key.Kind)
	id := ComponentFragmentID(c.Key)
	out, err := PathFor(id)
	if err != nil {
		return Fragment{}, err
	}

	p := newPageBuilder(out)
	page := componentPage{
		ID:           id,
		Title:        c.Title(),
		Description:  p.markdown(c.Description),
		References:   p.linkList("references", "References", c.References),
		ReferencedBy: p.linkList("referenced-by", "Referenced by", c.ReferencedBy),
		UsedBy:       c.UsedBy,
	}
	switch {
	case c.Schema != nil:
		view := p.schemaOrAny(c.Schema)
		view.Description = ""
		page.Schema = view
		if c.Schema.Example != "" {
			page.Examples = []exampleView{{Title: "Example", Value: c.Schema.Example}}
		}
	case c.Parameter != nil:
		view := p.parameter(*c.Parameter)
		page.Parameter = &view
		for _, ex := range c.Parameter.Examples {
			page.Examples = append(page.Examples, exampleView{Title: ex.Label, Value: ex.Value})
		}
	case c.Response != nil:
		page.Responses = []responseView{p.response(*c.Response)}
		page.Examples = mediaExamples("Response", c.Response.Content)
	case c.RequestBody != nil:
		page.RequestBody = p.body(c.RequestBody)
		page.Examples = mediaExamples("Request", c.RequestBody.Content)
	}

	header := []string{"id=" + id, "kind=" + string(kind), "name=" + c.Key.Name, "spec=" + m.SpecSHA}
	return r.execute(kind, page, fragmentHead{
		id: id, kind: kind, entity: id, title: page.Title, path: out,
		meta:   Meta{Summary: summaryOf("", c.Description)},
		header: header,
	}, p)
}

type fragmentHead struct {
	id     string
	kind   Kind
	entity string
	lang   string
	title  string
	path   string
	meta   Meta
	header []string
}

func (r *Registry) execute(kind Kind, page any, head fragmentHead, p *pageBuilder) (Fragment, error) {
	var buf bytes.Buffer
	buf.WriteString(metadataComment(head.header))
	if err := r.pages.ExecuteTemplate(&buf, pageName(kind), page); err != nil {
		return Fragment{}, fmt.Errorf("render %s: %w", head.id, err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	content := buf.Bytes()
	return Fragment{
		ID:       head.id,
		Kind:     head.kind,
		EntityID: head.entity,
		Language: head.lang,
		Title:    head.title,
		Path:     head.path,
		Content:  content,
		Hash:     contentHash(content),
		Links:    p.linkedIDs(),
		Meta:     head.meta,
	}, nil
}

// metadataComment is the first line of every fragment. "--" cannot appear
// inside an HTML comment and is split.
func metadataComment(fields []string) string {
	line := strings.Join(fields, " ")
	for strings.Contains(line, "--") {
		line = strings.ReplaceAll(line, "--", "- -")
	}
	return "<!-- fragment: " + line + " -->\n"
}

// summaryOf is the summary when set, else the first line of the description.
func summaryOf(summary, description string) string {
	if s := strings.TrimSpace(summary); s != "" {
		return s
	}
	first, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	return strings.TrimSpace(first)
}
