// Package metrics provides build observability hooks for specblocks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	svc := build.NewService(store, build.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// A one-shot CLI build has nothing to scrape it, so WriteTextfile dumps the
// registry in text exposition format for the node_exporter textfile collector.
package metrics
