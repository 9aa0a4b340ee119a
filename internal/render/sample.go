package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	texttemplate "text/template"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

const (
	sampleVendor    = "vendor"
	sampleGenerated = "generated"
)

// SampleData is the input of a code-sample template.
type SampleData struct {
	Method      string
	URL         string
	Headers     []SampleHeader
	ContentType string
	Body        string
}

// SampleHeader is one required request header.
type SampleHeader struct {
	Name  string
	Value string
}

var sampleFuncs = texttemplate.FuncMap{
	// shq escapes a value for use inside a single-quoted POSIX shell word.
	"shq": func(s string) string { return strings.ReplaceAll(s, `'`, `'\''`) },
}

// sampleFor returns the code sample for op in lang and whether it came from
// the document or was synthesized.
func (r *Registry) sampleFor(m *specmodel.Model, op *specmodel.Operation, lang string) (string, string, error) {
	if code, ok := op.Samples[lang]; ok {
		return strings.TrimRight(code, "\n"), sampleVendor, nil
	}
	tpl, ok := r.samples[lang]
	if !ok {
		return "", "", fmt.Errorf("no sample template for %q", lang)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, NewSampleData(m, op)); err != nil {
		return "", "", fmt.Errorf("render %s sample for %s: %w", lang, op.ID, err)
	}
	return strings.TrimRight(buf.String(), "\n"), sampleGenerated, nil
}

// NewSampleData derives the request a synthesized sample performs. Path
// parameters stay as {name} placeholders; required query parameters are
// appended with their example value when one exists.
func NewSampleData(m *specmodel.Model, op *specmodel.Operation) SampleData {
	d := SampleData{Method: strings.ToUpper(op.Method)}

	target := strings.TrimRight(m.ServerURL(), "/") + op.RawPath
	var query []string
	for _, p := range op.ParametersIn("query") {
		if p.Required {
			query = append(query, url.QueryEscape(p.Name)+"="+paramValue(p, url.QueryEscape))
		}
	}
	if len(query) > 0 {
		target += "?" + strings.Join(query, "&")
	}
	d.URL = target

	for _, p := range op.ParametersIn("header") {
		if p.Required {
			d.Headers = append(d.Headers, SampleHeader{Name: p.Name, Value: paramValue(p, nil)})
		}
	}

	if op.RequestBody != nil {
		for _, mt := range op.RequestBody.Content {
			if len(mt.Examples) > 0 {
				d.ContentType = mt.ContentType
				d.Body = mt.Examples[0].Value
				break
			}
		}
	}
	return d
}

// paramValue is the first example of p as plain text passed through escape,
// or an unescaped {name} placeholder.
func paramValue(p specmodel.Parameter, escape func(string) string) string {
	if len(p.Examples) == 0 {
		return "{" + p.Name + "}"
	}
	raw := p.Examples[0].Value
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		s = strings.Join(strings.Fields(raw), "")
	}
	if escape != nil {
		s = escape(s)
	}
	return s
}
