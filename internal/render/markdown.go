package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// newMarkdown returns a converter for description fields. Raw HTML in
// descriptions is omitted by goldmark's default renderer.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// markdownHTML renders a CommonMark description; empty input yields "".
func markdownHTML(md goldmark.Markdown, src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>") // #nosec G203 - escaped above
	}
	// #nosec G203 - goldmark output with raw HTML disabled
	return template.HTML(strings.TrimSpace(buf.String()))
}
