package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/source"
	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

const widgetsSpec = `openapi: 3.1.0
info:
  title: Widgets API
  version: "1.0"
paths:
  /widgets:
    get:
      parameters:
        - name: limit
          in: query
          required: true
          schema:
            type: integer
          example: 10
      responses:
        "200":
          description: OK
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Widget'
components:
  schemas:
    Widget:
      type: object
      properties:
        id:
          type: string
`

const cyclicSpec = `openapi: 3.0.3
info:
  title: Tree
  version: "1"
servers:
  - url: https://trees.example.com/v1/
paths:
  /nodes:
    post:
      summary: Create a node
      description: Creates a **node**.
      x-codeSamples:
        - lang: shell
          source: curl https://trees.example.com/v1/nodes -d @node.json
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Node'
            example:
              name: root
      responses:
        "201":
          description: Created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Node'
components:
  schemas:
    Node:
      type: object
      description: A tree node.
      properties:
        name:
          type: string
        children:
          type: array
          items:
            $ref: '#/components/schemas/Node'
`

func buildModel(t *testing.T, spec string) *specmodel.Model {
	t.Helper()
	doc, err := source.Parse("spec.yaml", []byte(spec))
	require.NoError(t, err)
	m, err := specmodel.Build(doc)
	require.NoError(t, err)
	return m
}

func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	reg, err := NewRegistry("")
	require.NoError(t, err)
	return NewRenderer(reg, opts...)
}

func parse(t *testing.T, f Fragment) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(f.Content))
	require.NoError(t, err)
	return doc
}

func TestRenderWidgets(t *testing.T) {
	m := buildModel(t, widgetsSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, []string{"curl"})
	require.NoError(t, err)
	require.Len(t, frags, 2)

	op, schema := frags[0], frags[1]
	assert.Equal(t, "operation:get:/widgets:curl", op.ID)
	assert.Equal(t, KindOperation, op.Kind)
	assert.Equal(t, "get:/widgets", op.EntityID)
	assert.Equal(t, "operations/get-widgets.curl.html", op.Path)
	assert.Equal(t, []string{"schema:Widget"}, op.Links)
	assert.Equal(t, Meta{Method: "GET", APIPath: "/widgets", Tag: specmodel.UntaggedTag}, op.Meta)
	assert.Equal(t, contentHash(op.Content), op.Hash)
	assert.True(t, strings.HasPrefix(string(op.Content),
		"<!-- fragment: id=operation:get:/widgets:curl kind=operation method=GET path=/widgets lang=curl spec="+m.SpecSHA+" -->\n"))

	doc := parse(t, op)
	assert.Equal(t, 1, doc.Find(`section[data-fragment-id="operation:get:/widgets:curl"]`).Length())
	link := doc.Find(`a[data-fragment="schema:Widget"]`).First()
	href, _ := link.Attr("href")
	assert.Equal(t, "../components/schemas/Widget.html", href)
	assert.Equal(t, "Not documented.", doc.Find(".sb-summary .sb-placeholder").Text())
	assert.Equal(t, "No request body.", doc.Find(".sb-body .sb-placeholder").Text())
	assert.Equal(t, "Query parameters", doc.Find(".sb-parameters h4").Text())

	sample := doc.Find(".sb-sample code")
	src, _ := sample.Attr("data-sample-source")
	assert.Equal(t, sampleGenerated, src)
	assert.Equal(t, `curl -X GET "https://api.example.com/widgets?limit=10"`, sample.Text())

	assert.Equal(t, "schema:Widget", schema.ID)
	assert.Equal(t, "components/schemas/Widget.html", schema.Path)
	assert.Empty(t, schema.Language)
	assert.Empty(t, schema.Links)
	sdoc := parse(t, schema)
	assert.Equal(t, "get:/widgets", sdoc.Find(".sb-used-by code").Text())
	assert.Equal(t, 1, sdoc.Find(".sb-properties li").Length())
}

func TestRenderDefaultsToCurlAndPython(t *testing.T) {
	m := buildModel(t, widgetsSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, nil)
	require.NoError(t, err)

	var ids []string
	for _, f := range frags {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{
		"operation:get:/widgets:curl",
		"operation:get:/widgets:python",
		"schema:Widget",
	}, ids)
}

func TestRenderIsDeterministic(t *testing.T) {
	m := buildModel(t, cyclicSpec)
	langs := []string{"go", "python", "curl", "javascript", "Python"}

	first, err := newTestRenderer(t, WithWorkers(1)).Render(context.Background(), m, langs)
	require.NoError(t, err)
	second, err := newTestRenderer(t, WithWorkers(8)).Render(context.Background(), buildModel(t, cyclicSpec), langs)
	require.NoError(t, err)

	require.Len(t, first, 5)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Hash, second[i].Hash, first[i].ID)
		assert.Equal(t, string(first[i].Content), string(second[i].Content))
	}
}

func TestRenderUnknownLanguage(t *testing.T) {
	m := buildModel(t, widgetsSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, []string{"curl", "cobol"})
	require.Error(t, err)
	assert.Nil(t, frags)
	assert.True(t, errors.Is(err, builderrors.ErrRenderConfig))
	assert.Contains(t, err.Error(), "cobol")
}

func TestRenderCyclicSchemaOnce(t *testing.T) {
	m := buildModel(t, cyclicSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, []string{"curl"})
	require.NoError(t, err)

	var node []Fragment
	for _, f := range frags {
		if f.Kind == KindSchema {
			node = append(node, f)
		}
	}
	require.Len(t, node, 1)
	assert.Equal(t, []string{"schema:Node"}, node[0].Links)

	doc := parse(t, node[0])
	href, ok := doc.Find(`.sb-items a[data-fragment="schema:Node"]`).Attr("href")
	require.True(t, ok)
	assert.Equal(t, "Node.html", href)
	assert.Equal(t, "A tree node.", strings.TrimSpace(doc.Find(".sb-description").First().Text()))
}

func TestRenderVendorSampleAndBody(t *testing.T) {
	m := buildModel(t, cyclicSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, []string{"bash", "python"})
	require.NoError(t, err)
	require.Len(t, frags, 3)

	curl := parse(t, frags[0])
	assert.Equal(t, "operation:post:/nodes:curl", frags[0].ID)
	src, _ := curl.Find(".sb-sample code").Attr("data-sample-source")
	assert.Equal(t, sampleVendor, src)
	assert.Equal(t, "curl https://trees.example.com/v1/nodes -d @node.json", curl.Find(".sb-sample code").Text())
	assert.Equal(t, "node", curl.Find(".sb-description strong").Text())
	assert.Equal(t, "Create a node", frags[0].Meta.Summary)

	py := parse(t, frags[1])
	src, _ = py.Find(".sb-sample code").Attr("data-sample-source")
	assert.Equal(t, sampleGenerated, src)
	code := py.Find(".sb-sample code").Text()
	assert.Contains(t, code, `"POST",`)
	assert.Contains(t, code, `"https://trees.example.com/v1/nodes",`)
	assert.Contains(t, code, `"name": "root"`)
	assert.Contains(t, code, "json=payload")
}

func TestRegistryOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "samples"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "samples", "ruby.tmpl"),
		[]byte(`Net::HTTP.{{.Method}} "{{.URL}}"`), 0o600))

	reg, err := NewRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "go", "javascript", "python", "ruby"}, reg.Languages())

	m := buildModel(t, widgetsSpec)
	frags, err := NewRenderer(reg).Render(context.Background(), m, []string{"ruby"})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, `Net::HTTP.GET "https://api.example.com/widgets?limit=10"`,
		parse(t, frags[0]).Find(".sb-sample code").Text())
}

func TestRegistryRejectsBrokenOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "schema.html.tmpl"), []byte(`{{.Title`), 0o600))

	_, err := NewRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema.html.tmpl")

	_, err = NewRegistry(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRenderer(t).Render(ctx, buildModel(t, widgetsSpec), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMetadataComment(t *testing.T) {
	assert.Equal(t, "<!-- fragment: id=schema:a- -b name=a- - -c -->\n",
		metadataComment([]string{"id=schema:a--b", "name=a---c"}))
}

const taggedSpec = `openapi: 3.1.0
info:
  title: Shop
  version: "1"
paths:
  /widgets:
    get:
      tags: [widgets]
      summary: List widgets
      responses:
        "200":
          description: OK
    post:
      tags: [widgets]
      summary: Create a widget
      responses:
        "201":
          description: Created
  /gadgets:
    get:
      tags: [gadgets]
      summary: List gadgets
      responses:
        "200":
          description: OK
`

func TestRenderLinksSiblingOperations(t *testing.T) {
	m := buildModel(t, taggedSpec)
	frags, err := newTestRenderer(t).Render(context.Background(), m, []string{"curl", "python"})
	require.NoError(t, err)

	byID := map[string]Fragment{}
	for _, f := range frags {
		byID[f.ID] = f
	}

	list := byID["operation:get:/widgets:python"]
	assert.Equal(t, []string{"operation:post:/widgets:python"}, list.Links)
	doc := parse(t, list)
	links := doc.Find(".sb-siblings a")
	require.Equal(t, 1, links.Length())
	assert.Equal(t, "Related operations", doc.Find(".sb-siblings h3").Text())
	href, _ := links.Attr("href")
	assert.Equal(t, "post-widgets.python.html", href)
	target, _ := links.Attr("data-fragment")
	assert.Equal(t, "operation:post:/widgets:python", target)
	assert.Equal(t, "Create a widget", links.Text())

	create := parse(t, byID["operation:post:/widgets:curl"])
	target, _ = create.Find(".sb-siblings a").Attr("data-fragment")
	assert.Equal(t, "operation:get:/widgets:curl", target)

	gadgets := byID["operation:get:/gadgets:curl"]
	assert.Empty(t, gadgets.Links)
	assert.Equal(t, 0, parse(t, gadgets).Find(".sb-siblings").Length())
}

func parameterisedSpec(n int) string {
	var b strings.Builder
	b.WriteString("openapi: 3.1.0\ninfo:\n  title: Many\n  version: \"1\"\npaths:\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `  /items%d/{id}:
    get:
      tags: [t%d]
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
        - name: limit
          in: query
          schema:
            type: integer
        - name: X-Trace
          in: header
          schema:
            type: string
      responses:
        "200":
          description: OK
`, i, i%4)
	}
	return b.String()
}

func TestRenderParallelParameterHeadings(t *testing.T) {
	spec := parameterisedSpec(64)
	langs := []string{"curl", "go", "javascript", "python"}

	serial, err := newTestRenderer(t, WithWorkers(1)).Render(context.Background(), buildModel(t, spec), langs)
	require.NoError(t, err)
	parallel, err := newTestRenderer(t, WithWorkers(8)).Render(context.Background(), buildModel(t, spec), langs)
	require.NoError(t, err)

	require.Len(t, parallel, 64*4)
	require.Equal(t, len(serial), len(parallel))
	for i := range serial {
		require.Equal(t, serial[i].ID, parallel[i].ID)
		assert.Equal(t, string(serial[i].Content), string(parallel[i].Content), serial[i].ID)
	}

	headings := parse(t, parallel[0]).Find(".sb-parameters h4").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	assert.Equal(t, []string{"Path parameters", "Query parameters", "Header parameters"}, headings)
}
