package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// BuildOutcomeLabel is the final status of a build.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeWarning  BuildOutcomeLabel = "warning"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// FetchResultLabel describes how a spec source was obtained.
type FetchResultLabel string

const (
	FetchLocal       FetchResultLabel = "local"
	FetchFetched     FetchResultLabel = "fetched"
	FetchNotModified FetchResultLabel = "not_modified"
	FetchStale       FetchResultLabel = "stale"
	FetchFailed      FetchResultLabel = "failed"
)

// Recorder defines observability hooks for build, stage and fetch metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	IncFetchResult(result FetchResultLabel)
	IncFetchRetry()
	SetFragments(kind string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) IncFetchResult(FetchResultLabel)            {}
func (NoopRecorder) IncFetchRetry()                             {}
func (NoopRecorder) SetFragments(string, int)                   {}
