package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "specblocks"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	fetchResults  *prom.CounterVec
	fetchRetries  prom.Counter
	fragments     *prom.GaugeVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		fetchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_results_total",
			Help:      "Spec acquisitions by result",
		}, []string{"result"}),
		fetchRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_retries_total",
			Help:      "Remote fetch retries after transient failures",
		}),
		fragments: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "fragments",
			Help:      "Fragments rendered by the last build, by kind",
		}, []string{"kind"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.fetchResults, pr.fetchRetries, pr.fragments)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFetchResult(result FetchResultLabel) {
	if p == nil {
		return
	}
	p.fetchResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncFetchRetry() {
	if p == nil {
		return
	}
	p.fetchRetries.Inc()
}

func (p *PrometheusRecorder) SetFragments(kind string, n int) {
	if p == nil {
		return
	}
	p.fragments.WithLabelValues(kind).Set(float64(n))
}
