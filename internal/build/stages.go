package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/specblocks/internal/foundation/errors"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
)

// StageName identifies a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageAcquire StageName = "acquire"
	StageModel   StageName = "model"
	StageRender  StageName = "render"
	StageIndex   StageName = "index"
	StageWrite   StageName = "write"
)

// Stage is one step of the pipeline.
type Stage func(ctx context.Context, bs *buildState) error

type stageDef struct {
	Name StageName
	Fn   Stage
}

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageResult is the classified outcome of one stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

func (r StageResult) label() metrics.ResultLabel {
	switch r {
	case StageResultWarning:
		return metrics.ResultWarning
	case StageResultFatal:
		return metrics.ResultFatal
	case StageResultCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultSuccess
	}
}

// classify maps a stage error to its kind. Classified warnings continue the
// build; cancellation and everything else abort it.
func classify(stage StageName, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
	}
	if ce, ok := ferrors.AsClassified(err); ok && ce.Severity() == ferrors.SeverityWarning {
		return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
	}
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func resultFor(se *StageError) StageResult {
	if se == nil {
		return StageResultSuccess
	}
	switch se.Kind {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, bs *buildState, stages []stageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: st.Name, Err: err}
			bs.report.recordStage(st.Name, 0, StageResultCanceled, bs.recorder)
			return se
		}

		t0 := time.Now()
		err := st.Fn(ctx, bs)
		dur := time.Since(t0)
		se := classify(st.Name, err)
		res := resultFor(se)
		// A stage may record warnings without failing.
		if res == StageResultSuccess && bs.stageWarned {
			res = StageResultWarning
		}
		bs.stageWarned = false
		bs.report.recordStage(st.Name, dur, res, bs.recorder)
		slog.Debug("Stage complete",
			logfields.BuildID(bs.report.BuildID),
			logfields.Stage(string(st.Name)),
			logfields.DurationMS(float64(dur.Microseconds())/1000),
			slog.String("result", string(res)))

		switch res {
		case StageResultWarning:
			if se != nil {
				bs.warn(se.Error())
			}
		case StageResultFatal, StageResultCanceled:
			return se
		}
	}
	return nil
}
