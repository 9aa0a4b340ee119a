package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
	"git.home.luguber.info/inful/specblocks/internal/version"
)

// ReportFile is the name of the persisted report inside the report directory.
const ReportFile = "last-build.json"

// Outcome is the final result of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Report captures what one build did. It is persisted next to the cache and
// never written into the output tree.
type Report struct {
	SchemaVersion   int
	BuildID         string
	Source          string
	OutputDir       string
	SpecSHA         string
	OpenAPIVersion  string
	Stale           bool
	Languages       []string
	Start           time.Time
	End             time.Time
	StageDurations  map[StageName]time.Duration
	StageResults    map[StageName]StageResult
	Fragments       int
	FragmentsByKind map[string]int
	Entries         int
	Warnings        []string
	Err             error
	Outcome         Outcome
	Version         string
}

func newReport(buildID, source, outputDir string) *Report {
	return &Report{
		SchemaVersion:   1,
		BuildID:         buildID,
		Source:          source,
		OutputDir:       outputDir,
		Start:           time.Now(),
		StageDurations:  make(map[StageName]time.Duration),
		StageResults:    make(map[StageName]StageResult),
		FragmentsByKind: make(map[string]int),
		Version:         version.Version,
	}
}

func (r *Report) recordStage(stage StageName, d time.Duration, res StageResult, recorder metrics.Recorder) {
	r.StageDurations[stage] = d
	r.StageResults[stage] = res
	recorder.ObserveStageDuration(string(stage), d)
	recorder.IncStageResult(string(stage), res.label())
}

// finish sets the end time and derives the outcome from err and warnings.
func (r *Report) finish(err error) {
	r.End = time.Now()
	r.Err = err
	switch {
	case err != nil && isCanceled(err):
		r.Outcome = OutcomeCanceled
	case err != nil:
		r.Outcome = OutcomeFailed
	case len(r.Warnings) > 0:
		r.Outcome = OutcomeWarning
	default:
		r.Outcome = OutcomeSuccess
	}
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary is a one-line human description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("outcome=%s fragments=%d entries=%d warnings=%d stale=%t duration=%s",
		r.Outcome, r.Fragments, r.Entries, len(r.Warnings), r.Stale, r.Duration().Round(time.Millisecond))
}

type reportJSON struct {
	SchemaVersion    int               `json:"schema_version"`
	BuildID          string            `json:"build_id"`
	Source           string            `json:"source"`
	OutputDir        string            `json:"output_dir"`
	SpecSHA          string            `json:"spec_sha,omitempty"`
	OpenAPIVersion   string            `json:"openapi_version,omitempty"`
	Stale            bool              `json:"stale"`
	Languages        []string          `json:"languages,omitempty"`
	Start            time.Time         `json:"start"`
	End              time.Time         `json:"end"`
	DurationMS       int64             `json:"duration_ms"`
	StageDurationsMS map[string]int64  `json:"stage_durations_ms"`
	StageResults     map[string]string `json:"stage_results"`
	Fragments        int               `json:"fragments"`
	FragmentsByKind  map[string]int    `json:"fragments_by_kind"`
	Entries          int               `json:"entries"`
	Warnings         []string          `json:"warnings,omitempty"`
	Error            string            `json:"error,omitempty"`
	ErrorCode        string            `json:"error_code,omitempty"`
	Outcome          Outcome           `json:"outcome"`
	Version          string            `json:"version"`
}

// MarshalJSON converts typed maps and the error into JSON-friendly fields.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		SchemaVersion:    r.SchemaVersion,
		BuildID:          r.BuildID,
		Source:           r.Source,
		OutputDir:        r.OutputDir,
		SpecSHA:          r.SpecSHA,
		OpenAPIVersion:   r.OpenAPIVersion,
		Stale:            r.Stale,
		Languages:        r.Languages,
		Start:            r.Start,
		End:              r.End,
		DurationMS:       r.Duration().Milliseconds(),
		StageDurationsMS: make(map[string]int64, len(r.StageDurations)),
		StageResults:     make(map[string]string, len(r.StageResults)),
		Fragments:        r.Fragments,
		FragmentsByKind:  r.FragmentsByKind,
		Entries:          r.Entries,
		Warnings:         r.Warnings,
		Outcome:          r.Outcome,
		Version:          r.Version,
	}
	for k, v := range r.StageDurations {
		out.StageDurationsMS[string(k)] = v.Milliseconds()
	}
	for k, v := range r.StageResults {
		out.StageResults[string(k)] = string(v)
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.ErrorCode = builderrors.Code(r.Err)
	}
	return json.Marshal(out)
}

// Persist writes the report atomically to dir/last-build.json.
func (r *Report) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	target := filepath.Join(dir, ReportFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("atomic rename report json: %w", err)
	}
	return nil
}

func (o Outcome) label() metrics.BuildOutcomeLabel {
	switch o {
	case OutcomeWarning:
		return metrics.BuildOutcomeWarning
	case OutcomeFailed:
		return metrics.BuildOutcomeFailed
	case OutcomeCanceled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeSuccess
	}
}
