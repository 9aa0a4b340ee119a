package metrics

import (
	"testing"
	"time"
)

// Compile-time interface checks.
var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("acquire", time.Second)
	r.ObserveBuildDuration(time.Second)
	r.IncStageResult("acquire", ResultFatal)
	r.IncBuildOutcome(BuildOutcomeFailed)
	r.IncFetchResult(FetchFailed)
	r.IncFetchRetry()
	r.SetFragments("operation", 0)
}
