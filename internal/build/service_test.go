package build

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
	"git.home.luguber.info/inful/specblocks/internal/notify"
	"git.home.luguber.info/inful/specblocks/internal/render"
	"git.home.luguber.info/inful/specblocks/internal/retry"
	"git.home.luguber.info/inful/specblocks/internal/source"
	"git.home.luguber.info/inful/specblocks/internal/storage"
)

const widgetsSpec = `openapi: 3.1.0
info:
  title: Widgets API
  version: "1.0"
paths:
  /widgets:
    get:
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

const duplicateSpec = `openapi: 3.0.3
info:
  title: Dup
  version: "1"
paths:
  /widgets:
    get:
      responses:
        "200":
          description: OK
  /widgets/:
    get:
      responses:
        "200":
          description: OK
`

const lookalikeSpec = `openapi: 3.1.0
info:
  title: Lookalikes
  version: "1"
paths:
  /widgets:
    get:
      responses:
        "200":
          description: OK
  /Widgets:
    get:
      responses:
        "200":
          description: OK
  /a-b:
    get:
      responses:
        "200":
          description: OK
  /a/b:
    get:
      responses:
        "200":
          description: OK
  /widgets/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: OK
  /widgets/id:
    get:
      responses:
        "200":
          description: OK
components:
  schemas:
    Foo-Bar:
      type: string
    Foo Bar:
      type: integer
`

type fakeRecorder struct {
	metrics.NoopRecorder
	outcomes  []metrics.BuildOutcomeLabel
	stages    map[string]metrics.ResultLabel
	fragments map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{stages: map[string]metrics.ResultLabel{}, fragments: map[string]int{}}
}

func (f *fakeRecorder) IncBuildOutcome(o metrics.BuildOutcomeLabel) {
	f.outcomes = append(f.outcomes, o)
}
func (f *fakeRecorder) IncStageResult(stage string, r metrics.ResultLabel) {
	f.stages[stage] = r
}
func (f *fakeRecorder) SetFragments(kind string, n int) { f.fragments[kind] = n }

func newTestService(t *testing.T, store storage.EntryStore, opts ...Option) *Service {
	t.Helper()
	reg, err := render.NewRegistry("")
	require.NoError(t, err)
	loader := source.NewLoader(store,
		source.WithRetryPolicy(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 1)))
	return NewService(loader, render.NewRenderer(reg), opts...)
}

func writeSpec(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "openapi.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	}))
	return out
}

func TestRunWidgetsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "site")
	reports := filepath.Join(dir, "reports")
	rec := newFakeRecorder()
	pub := &notify.RecordingPublisher{}
	svc := newTestService(t, nil, WithRecorder(rec), WithPublisher(pub), WithReportDir(reports))

	report, err := svc.Run(context.Background(), Request{
		Source:    source.Location{Path: writeSpec(t, dir, widgetsSpec)},
		OutputDir: out,
		Languages: []string{"curl"},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, report.Outcome)
	assert.Equal(t, 2, report.Fragments)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, []string{"curl"}, report.Languages)
	assert.NotEmpty(t, report.BuildID)
	assert.Len(t, report.SpecSHA, 12)
	for _, stage := range []StageName{StageAcquire, StageModel, StageRender, StageIndex, StageWrite} {
		assert.Equal(t, StageResultSuccess, report.StageResults[stage], stage)
	}

	tree := readTree(t, out)
	var paths []string
	for p := range tree {
		paths = append(paths, p)
	}
	assert.ElementsMatch(t, []string{
		"operations/get-widgets.curl.html",
		"components/schemas/Widget.html",
		"llms.txt",
		"manifest.json",
		"blocks/index.json",
		"sitemap.xml",
		"index.html",
	}, paths)

	var manifest struct {
		Count   int `json:"count"`
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(tree["manifest.json"]), &manifest))
	assert.Equal(t, 2, manifest.Count)
	require.Len(t, manifest.Entries, 2)
	assert.Equal(t, "operation:get:/widgets:curl", manifest.Entries[0].ID)
	assert.Equal(t, "schema:Widget", manifest.Entries[1].ID)

	assert.NoDirExists(t, out+"_stage")
	assert.NoDirExists(t, out+".prev")

	var persisted map[string]any
	data, err := os.ReadFile(filepath.Join(reports, ReportFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "success", persisted["outcome"])
	assert.Equal(t, report.BuildID, persisted["build_id"])

	require.Len(t, pub.Events, 1)
	assert.Equal(t, report.BuildID, pub.Events[0].BuildID)
	assert.Equal(t, 2, pub.Events[0].Entries)

	assert.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeSuccess}, rec.outcomes)
	assert.Equal(t, metrics.ResultSuccess, rec.stages["write"])
	assert.Equal(t, 1, rec.fragments["schema"])
}

func TestRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	spec := writeSpec(t, dir, widgetsSpec)
	svc := newTestService(t, nil)

	for _, name := range []string{"a", "b"} {
		_, err := svc.Run(context.Background(), Request{
			Source:    source.Location{Path: spec},
			OutputDir: filepath.Join(dir, name),
			Languages: []string{"python", "curl", "go"},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, readTree(t, filepath.Join(dir, "a")), readTree(t, filepath.Join(dir, "b")))
}

func TestRunDuplicateOperationWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "site")
	rec := newFakeRecorder()
	svc := newTestService(t, nil, WithRecorder(rec))

	report, err := svc.Run(context.Background(), Request{
		Source:    source.Location{Path: writeSpec(t, dir, duplicateSpec)},
		OutputDir: out,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, builderrors.ErrDuplicateFragment)
	assert.Equal(t, "DuplicateFragment", builderrors.Code(err))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageModel, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StageResultFatal, report.StageResults[StageModel])
	assert.NotContains(t, report.StageResults, StageWrite)
	assert.NoDirExists(t, out)
	assert.NoDirExists(t, out+"_stage")
	assert.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeFailed}, rec.outcomes)
}

func TestRunFailureKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "site")
	spec := writeSpec(t, dir, widgetsSpec)
	svc := newTestService(t, nil)

	_, err := svc.Run(context.Background(), Request{Source: source.Location{Path: spec}, OutputDir: out})
	require.NoError(t, err)
	before := readTree(t, out)

	_, err = svc.Run(context.Background(), Request{Source: source.Location{Path: spec}, OutputDir: out, Languages: []string{"cobol"}})
	require.ErrorIs(t, err, builderrors.ErrRenderConfig)
	assert.Equal(t, before, readTree(t, out))
	assert.NoDirExists(t, out+"_stage")
}

func TestRunReplacesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "operations"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(out, "operations", "old.html"), []byte("old"), 0o600))
	require.NoError(t, os.MkdirAll(out+"_stage", 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(out+"_stage", "leftover"), []byte("x"), 0o600))

	_, err := newTestService(t, nil).Run(context.Background(), Request{
		Source:    source.Location{Path: writeSpec(t, dir, widgetsSpec)},
		OutputDir: out,
		Languages: []string{"curl"},
	})
	require.NoError(t, err)
	tree := readTree(t, out)
	assert.NotContains(t, tree, "operations/old.html")
	assert.NotContains(t, tree, "leftover")
	assert.Contains(t, tree, "operations/get-widgets.curl.html")
	assert.NoDirExists(t, out+".prev")
}

func TestRunStaleSourceIsWarning(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(widgetsSpec))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	rec := newFakeRecorder()
	svc := newTestService(t, storage.NewMemoryStore(), WithRecorder(rec))
	req := Request{Source: source.Location{URL: srv.URL + "/openapi.yaml"}, OutputDir: filepath.Join(dir, "site")}

	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Stale)

	fail.Store(true)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Stale)
	assert.Equal(t, OutcomeWarning, second.Outcome)
	assert.Equal(t, StageResultWarning, second.StageResults[StageAcquire])
	require.Len(t, second.Warnings, 1)
	assert.Contains(t, second.Warnings[0], "using cached copy")
	assert.Equal(t, first.SpecSHA, second.SpecSHA)
	assert.Equal(t, metrics.BuildOutcomeWarning, rec.outcomes[1])
}

func TestRunSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	report, err := newTestService(t, storage.NewMemoryStore()).Run(context.Background(), Request{
		Source:    source.Location{URL: srv.URL},
		OutputDir: filepath.Join(dir, "site"),
	})
	require.ErrorIs(t, err, builderrors.ErrSourceUnavailable)
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StageResultFatal, report.StageResults[StageAcquire])
	assert.NoDirExists(t, filepath.Join(dir, "site"))
}

func TestRunCanceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestService(t, nil).Run(ctx, Request{
		Source:    source.Location{Path: writeSpec(t, dir, widgetsSpec)},
		OutputDir: filepath.Join(dir, "site"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeCanceled, report.Outcome)
	assert.Equal(t, StageResultCanceled, report.StageResults[StageAcquire])
	assert.NoDirExists(t, filepath.Join(dir, "site"))
}

func TestRunPublishFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	pub := &notify.RecordingPublisher{Err: errors.New("nats down")}
	report, err := newTestService(t, nil, WithPublisher(pub)).Run(context.Background(), Request{
		Source:    source.Location{Path: writeSpec(t, dir, widgetsSpec)},
		OutputDir: filepath.Join(dir, "site"),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "nats down")
	assert.FileExists(t, filepath.Join(dir, "site", "llms.txt"))
}

func TestReportJSON(t *testing.T) {
	r := newReport("id-1", "spec.yaml", "site")
	r.StageDurations[StageAcquire] = 1500 * time.Millisecond
	r.StageResults[StageAcquire] = StageResultFatal
	r.finish(builderrors.SourceNotFound("spec.yaml", nil))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "failed", got["outcome"])
	assert.Equal(t, "SourceNotFound", got["error_code"])
	assert.Equal(t, map[string]any{"acquire": float64(1500)}, got["stage_durations_ms"])
	assert.Equal(t, map[string]any{"acquire": "fatal"}, got["stage_results"])
}

func TestRunKeepsLookalikeIdentifiersApart(t *testing.T) {
	dir := t.TempDir()
	if caseInsensitiveFS(t, dir) {
		t.Skip("file system folds case")
	}
	out := filepath.Join(dir, "site")
	report, err := newTestService(t, nil).Run(context.Background(), Request{
		Source:    source.Location{Path: writeSpec(t, dir, lookalikeSpec)},
		OutputDir: out,
		Languages: []string{"curl"},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, report.Fragments)
	assert.Equal(t, 8, report.Entries)

	tree := readTree(t, out)
	for _, p := range []string{
		"operations/get-widgets.curl.html",
		"operations/get-Widgets.curl.html",
		"operations/get-a-b.curl.html",
		"operations/get-a.b.curl.html",
		"operations/get-widgets._7Bid_7D.curl.html",
		"operations/get-widgets.id.curl.html",
		"components/schemas/Foo-Bar.html",
		"components/schemas/Foo_20Bar.html",
	} {
		assert.Contains(t, tree, p)
	}
	assert.Contains(t, tree["operations/get-widgets.curl.html"],
		`href="get-Widgets.curl.html" data-fragment="operation:get:/Widgets:curl"`)
}

func caseInsensitiveFS(t *testing.T, dir string) bool {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "case"), nil, 0o600))
	_, err := os.Stat(filepath.Join(dir, "CASE"))
	return err == nil
}
