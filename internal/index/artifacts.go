package index

import (
	"bytes"
	"embed"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/specblocks/internal/render"
)

// Artifact paths relative to the output root.
const (
	LLMSPath     = "llms.txt"
	ManifestPath = "manifest.json"
	BlocksPath   = "blocks/index.json"
	SitemapPath  = "sitemap.xml"
	HTMLPath     = "index.html"
)

const defaultTitle = "API reference"

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var overviewTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

var kindHeadings = []struct {
	kind  render.Kind
	title string
	label string
}{
	{render.KindOperation, "Operations", "Operation"},
	{render.KindParameter, "Parameters", "Parameter component"},
	{render.KindRequestBody, "Request bodies", "Request body component"},
	{render.KindResponse, "Responses", "Response component"},
	{render.KindSchema, "Schemas", "Schema component"},
}

// Artifact is one discovery file.
type Artifact struct {
	Path    string
	Content []byte
}

// Artifacts serializes every discovery file in a fixed order.
func (ix *Index) Artifacts() ([]Artifact, error) {
	manifest, err := ix.ManifestJSON()
	if err != nil {
		return nil, err
	}
	blocks, err := ix.BlocksJSON()
	if err != nil {
		return nil, err
	}
	sitemap, err := ix.SitemapXML()
	if err != nil {
		return nil, err
	}
	overview, err := ix.IndexHTML()
	if err != nil {
		return nil, err
	}
	return []Artifact{
		{Path: LLMSPath, Content: ix.LLMSText()},
		{Path: ManifestPath, Content: manifest},
		{Path: BlocksPath, Content: blocks},
		{Path: SitemapPath, Content: sitemap},
		{Path: HTMLPath, Content: overview},
	}, nil
}

func (ix *Index) title() string {
	if t := strings.TrimSpace(ix.Site.Title); t != "" {
		return t
	}
	return defaultTitle
}

// LLMSText renders the flat plain-text summary.
func (ix *Index) LLMSText() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ix.title())

	desc, _, _ := strings.Cut(strings.TrimSpace(ix.Site.Description), "\n")
	if desc == "" {
		desc = "Deterministic HTML fragments generated from the " + ix.title() + " OpenAPI document."
	}
	fmt.Fprintf(&b, "> %s\n\n", strings.TrimSpace(desc))
	if ix.Site.APIVersion != "" {
		fmt.Fprintf(&b, "API version %s, OpenAPI %s.\n", ix.Site.APIVersion, ix.Site.OpenAPIVersion)
	}
	fmt.Fprintf(&b, "Source fingerprint: %s. Fragments: %d.\n\n", ix.Site.SpecSHA, ix.Count())

	b.WriteString("## Entry points\n\n")
	b.WriteString("- [Overview](" + HTMLPath + "): Fragments grouped by tag and kind\n")
	b.WriteString("- [Manifest](" + ManifestPath + "): Every fragment with kind, path and content hash\n")
	b.WriteString("- [Block index](" + BlocksPath + "): Fragment lookup by identifier\n")
	b.WriteString("- [Sitemap](" + SitemapPath + "): URL list for crawlers\n")

	for _, h := range kindHeadings {
		entries := ix.ofKind(h.kind)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", h.title)
		for _, e := range entries {
			fmt.Fprintf(&b, "- [%s](%s): %s\n", linkText(e), e.Path, describe(e, h.label))
		}
	}
	return []byte(b.String())
}

func (ix *Index) ofKind(kind render.Kind) []Entry {
	var out []Entry
	for _, e := range ix.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func linkText(e Entry) string {
	t := strings.NewReplacer("[", "(", "]", ")").Replace(e.Title)
	if e.Language != "" {
		t += " (" + e.Language + ")"
	}
	return t
}

func describe(e Entry, label string) string {
	var parts []string
	if e.Method != "" {
		parts = append(parts, e.Method+" "+e.APIPath)
	}
	if e.Summary != "" && e.Summary != e.Title {
		parts = append(parts, e.Summary)
	}
	if e.Deprecated {
		parts = append(parts, "deprecated")
	}
	if len(parts) == 0 {
		return label
	}
	return strings.Join(parts, ". ")
}

type manifestDoc struct {
	Version int     `json:"version"`
	SpecSHA string  `json:"spec_sha"`
	Title   string  `json:"title"`
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

// ManifestJSON renders manifest.json.
func (ix *Index) ManifestJSON() ([]byte, error) {
	return encodeJSON(manifestDoc{
		Version: FormatVersion,
		SpecSHA: ix.Site.SpecSHA,
		Title:   ix.title(),
		Count:   ix.Count(),
		Entries: ix.Entries,
	})
}

type blocksDoc struct {
	Version int           `json:"version"`
	SpecSHA string        `json:"spec_sha"`
	Blocks  orderedBlocks `json:"blocks"`
}

// orderedBlocks marshals as an object keyed by fragment ID in entry order.
type orderedBlocks []Entry

func (b orderedBlocks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeCompact(e.ID)
		if err != nil {
			return nil, err
		}
		val, err := encodeCompact(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BlocksJSON renders blocks/index.json.
func (ix *Index) BlocksJSON() ([]byte, error) {
	return encodeJSON(blocksDoc{Version: FormatVersion, SpecSHA: ix.Site.SpecSHA, Blocks: ix.Entries})
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// SitemapXML renders sitemap.xml.
func (ix *Index) SitemapXML() ([]byte, error) {
	base := strings.TrimRight(ix.Site.BaseURL, "/")
	doc := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range []string{HTMLPath, LLMSPath} {
		doc.URLs = append(doc.URLs, sitemapURL{Loc: base + "/" + p})
	}
	for _, e := range ix.Entries {
		doc.URLs = append(doc.URLs, sitemapURL{Loc: base + "/" + e.Path})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	return append(append([]byte(xml.Header), out...), '\n'), nil
}

type overviewGroup struct {
	Title   string
	Entries []Entry
}

type overviewPage struct {
	Title       string
	Description string
	APIVersion  string
	SpecSHA     string
	Tags        []overviewGroup
	Components  []overviewGroup
}

// IndexHTML renders the landing page: operations grouped by tag, then
// components grouped by kind.
func (ix *Index) IndexHTML() ([]byte, error) {
	page := overviewPage{
		Title:       ix.title(),
		Description: strings.TrimSpace(ix.Site.Description),
		APIVersion:  ix.Site.APIVersion,
		SpecSHA:     ix.Site.SpecSHA,
	}

	tagCaser := cases.Title(language.English, cases.NoLower)
	byTag := map[string]int{}
	for _, e := range ix.ofKind(render.KindOperation) {
		i, ok := byTag[e.Tag]
		if !ok {
			i = len(page.Tags)
			byTag[e.Tag] = i
			page.Tags = append(page.Tags, overviewGroup{Title: tagCaser.String(e.Tag)})
		}
		page.Tags[i].Entries = append(page.Tags[i].Entries, e)
	}
	sort.SliceStable(page.Tags, func(i, j int) bool { return page.Tags[i].Title < page.Tags[j].Title })

	for _, h := range kindHeadings[1:] {
		if entries := ix.ofKind(h.kind); len(entries) > 0 {
			page.Components = append(page.Components, overviewGroup{Title: h.title, Entries: entries})
		}
	}

	var buf bytes.Buffer
	if err := overviewTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render %s: %w", HTMLPath, err)
	}
	return buf.Bytes(), nil
}
