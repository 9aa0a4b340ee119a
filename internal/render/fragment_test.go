package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

func TestPathFor(t *testing.T) {
	tests := map[string]string{
		"operation:get:/widgets:curl":             "operations/get-widgets.curl.html",
		"operation:get:/:python":                  "operations/get-_root.python.html",
		"operation:get:/_root:python":             "operations/get-__root.python.html",
		"operation:post:/widgets/{id}/parts:go":   "operations/post-widgets._7Bid_7D.parts.go.html",
		"operation:get:/v1/models/{m}:predict:js": "operations/get-v1.models._7Bm_7D_3Apredict.js.html",
		"operation:get:/v1.2/user-items:curl":     "operations/get-v1_2E2.user-items.curl.html",
		"schema:Widget":                           "components/schemas/Widget.html",
		"schema:snake_case":                       "components/schemas/snake__case.html",
		"schema:io.k8s.api.Pod":                   "components/schemas/io.k8s.api.Pod.html",
		"schema:..":                               "components/schemas/_2E..html",
		"requestBody:CreateWidget":                "components/request-bodies/CreateWidget.html",
		"parameter:X-Trace":                       "components/parameters/X-Trace.html",
		"response:Not Found":                      "components/responses/Not_20Found.html",
	}
	for id, want := range tests {
		got, err := PathFor(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}

	for _, bad := range []string{"", "schema", "operation:get", "operation:get:/x:", "operation:fetch:/x:curl", "widget:Foo"} {
		_, err := PathFor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFragmentIDs(t *testing.T) {
	assert.Equal(t, "operation:get:/widgets:curl", OperationFragmentID("get:/widgets", "curl"))
	assert.Equal(t, "schema:Widget", ComponentFragmentID(specmodel.ComponentKey{Kind: specmodel.KindSchema, Name: "Widget"}))
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "../components/schemas/Widget.html",
		relPath("operations/get-widgets.curl.html", "components/schemas/Widget.html"))
	assert.Equal(t, "Gadget.html",
		relPath("components/schemas/Widget.html", "components/schemas/Gadget.html"))
	assert.Equal(t, "../schemas/Widget.html",
		relPath("components/responses/Error.html", "components/schemas/Widget.html"))
	assert.Equal(t, "operations/get-_root.curl.html",
		relPath("index.html", "operations/get-_root.curl.html"))
}

func TestPathForIsInjective(t *testing.T) {
	pairs := [][2]string{
		{"operation:get:/widgets:curl", "operation:get:/Widgets:curl"},
		{"operation:get:/a-b:curl", "operation:get:/a/b:curl"},
		{"operation:get:/widgets/{id}:curl", "operation:get:/widgets/id:curl"},
		{"operation:get:/a.b:curl", "operation:get:/a/b:curl"},
		{"operation:get:/a_2Db:curl", "operation:get:/a-b:curl"},
		{"operation:get:/:curl", "operation:get:/root:curl"},
		{"schema:Foo-Bar", "schema:Foo Bar"},
		{"schema:Foo_Bar", "schema:Foo Bar"},
		{"schema:Foo_20Bar", "schema:Foo Bar"},
		{"schema:widget", "schema:Widget"},
	}
	for _, pair := range pairs {
		a, err := PathFor(pair[0])
		require.NoError(t, err)
		b, err := PathFor(pair[1])
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "%s and %s share %s", pair[0], pair[1], a)
	}
}
