package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("render", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStageResult("render", ResultSuccess)
	pr.IncBuildOutcome(BuildOutcomeSuccess)
	pr.IncFetchResult(FetchNotModified)
	pr.IncFetchResult(FetchNotModified)
	pr.IncFetchRetry()
	pr.SetFragments("schema", 4)

	assert.Equal(t, 1.0, testutil.ToFloat64(pr.stageResults.WithLabelValues("render", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.fetchResults.WithLabelValues("not_modified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.fetchRetries))
	assert.Equal(t, 4.0, testutil.ToFloat64(pr.fragments.WithLabelValues("schema")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncFetchRetry()
		pr.SetFragments("schema", 1)
		pr.IncBuildOutcome(BuildOutcomeFailed)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncBuildOutcome(BuildOutcomeWarning)

	path := filepath.Join(t.TempDir(), "specblocks.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `specblocks_build_outcomes_total{outcome="warning"} 1`))
}
