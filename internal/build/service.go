package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/specblocks/internal/index"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
	"git.home.luguber.info/inful/specblocks/internal/notify"
	"git.home.luguber.info/inful/specblocks/internal/render"
	"git.home.luguber.info/inful/specblocks/internal/source"
	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

// Request holds the inputs of one build.
type Request struct {
	Source    source.Location
	OutputDir string
	// Languages selects code-sample languages; empty means curl and python.
	Languages []string
}

// Site overrides discovery-layer metadata that does not come from the document.
type Site struct {
	Title   string
	BaseURL string
}

// Service executes builds. It is safe for sequential reuse.
type Service struct {
	loader    *source.Loader
	renderer  *render.Renderer
	recorder  metrics.Recorder
	publisher notify.Publisher
	reportDir string
	site      Site
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithPublisher sets the build event publisher.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithReportDir persists every report to dir/last-build.json.
func WithReportDir(dir string) Option {
	return func(s *Service) { s.reportDir = dir }
}

// WithSite sets title and base URL overrides.
func WithSite(site Site) Option {
	return func(s *Service) { s.site = site }
}

// NewService wires a build service from its collaborators.
func NewService(loader *source.Loader, renderer *render.Renderer, opts ...Option) *Service {
	s := &Service{
		loader:    loader,
		renderer:  renderer,
		recorder:  metrics.NoopRecorder{},
		publisher: notify.NoopPublisher{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// buildState carries stage outputs through one run.
type buildState struct {
	req         Request
	report      *Report
	recorder    metrics.Recorder
	doc         *source.SpecDocument
	model       *specmodel.Model
	fragments   []render.Fragment
	index       *index.Index
	artifacts   []index.Artifact
	stageWarned bool
}

func (bs *buildState) warn(msg string) {
	bs.report.Warnings = append(bs.report.Warnings, msg)
	bs.stageWarned = true
}

// Run executes acquire, model, render, index and write. The returned report
// is never nil; err is the first fatal stage error.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	bs := &buildState{
		req:      req,
		report:   newReport(s.newID(), req.Source.String(), req.OutputDir),
		recorder: s.recorder,
	}
	slog.Info("Build started",
		logfields.BuildID(bs.report.BuildID),
		logfields.Source(req.Source.String()),
		logfields.Path(req.OutputDir))

	err := runStages(ctx, bs, []stageDef{
		{StageAcquire, s.stageAcquire},
		{StageModel, s.stageModel},
		{StageRender, s.stageRender},
		{StageIndex, s.stageIndex},
		{StageWrite, s.stageWrite},
	})
	if err == nil {
		s.notify(ctx, bs)
	}
	bs.report.finish(err)

	s.recorder.ObserveBuildDuration(bs.report.Duration())
	s.recorder.IncBuildOutcome(bs.report.Outcome.label())
	if s.reportDir != "" {
		if perr := bs.report.Persist(s.reportDir); perr != nil {
			slog.Warn("Failed to persist build report", logfields.Path(s.reportDir), logfields.Error(perr))
		}
	}

	if err != nil {
		slog.Error("Build failed",
			logfields.BuildID(bs.report.BuildID),
			logfields.Error(err),
			logfields.DurationMS(float64(bs.report.Duration().Milliseconds())))
		return bs.report, err
	}
	slog.Info("Build complete",
		logfields.BuildID(bs.report.BuildID),
		slog.String("outcome", string(bs.report.Outcome)),
		logfields.Count(bs.report.Fragments),
		logfields.DurationMS(float64(bs.report.Duration().Milliseconds())))
	return bs.report, nil
}

func (s *Service) stageAcquire(ctx context.Context, bs *buildState) error {
	doc, err := s.loader.Load(ctx, bs.req.Source)
	if err != nil {
		return err
	}
	bs.doc = doc
	bs.report.SpecSHA = doc.ShortSHA()
	bs.report.OpenAPIVersion = doc.OpenAPIVersion
	bs.report.Stale = doc.Stale
	for _, w := range doc.Warnings {
		slog.Warn(w, logfields.BuildID(bs.report.BuildID), logfields.Source(doc.Origin))
		bs.warn(w)
	}
	return nil
}

func (s *Service) stageModel(_ context.Context, bs *buildState) error {
	m, err := specmodel.Build(bs.doc)
	if err != nil {
		return err
	}
	bs.model = m
	return nil
}

func (s *Service) stageRender(ctx context.Context, bs *buildState) error {
	langs, err := s.renderer.ResolveLanguages(bs.req.Languages)
	if err != nil {
		return err
	}
	bs.report.Languages = langs
	frags, err := s.renderer.Render(ctx, bs.model, langs)
	if err != nil {
		return err
	}
	bs.fragments = frags
	return nil
}

func (s *Service) stageIndex(_ context.Context, bs *buildState) error {
	title := s.site.Title
	if title == "" {
		title = bs.model.Info.Title
	}
	ix, err := index.Generate(bs.fragments, index.Site{
		Title:          title,
		Description:    bs.model.Info.Description,
		APIVersion:     bs.model.Info.Version,
		OpenAPIVersion: bs.model.OpenAPIVersion,
		SpecSHA:        bs.model.SpecSHA,
		BaseURL:        s.site.BaseURL,
	})
	if err != nil {
		return err
	}
	if err := ix.VerifyLinks(bs.fragments); err != nil {
		return err
	}
	artifacts, err := ix.Artifacts()
	if err != nil {
		return err
	}
	bs.index = ix
	bs.artifacts = artifacts

	bs.report.Fragments = len(bs.fragments)
	bs.report.Entries = ix.Count()
	for kind, n := range ix.CountByKind() {
		bs.report.FragmentsByKind[string(kind)] = n
		s.recorder.SetFragments(string(kind), n)
	}
	return nil
}

func (s *Service) stageWrite(_ context.Context, bs *buildState) (err error) {
	st, err := beginStaging(bs.req.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			st.abort()
		}
	}()

	for _, f := range bs.fragments {
		if err = st.write(f.Path, f.Content); err != nil {
			return err
		}
	}
	for _, a := range bs.artifacts {
		if err = st.write(a.Path, a.Content); err != nil {
			return err
		}
	}
	return st.promote()
}

func (s *Service) notify(ctx context.Context, bs *buildState) {
	out, err := filepath.Abs(bs.req.OutputDir)
	if err != nil {
		out = bs.req.OutputDir
	}
	ev := notify.BuildCompleted{
		BuildID:     bs.report.BuildID,
		Source:      bs.report.Source,
		SpecSHA:     bs.report.SpecSHA,
		OutputDir:   out,
		Languages:   bs.report.Languages,
		Fragments:   bs.report.Fragments,
		Entries:     bs.report.Entries,
		Stale:       bs.report.Stale,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish build event", logfields.BuildID(ev.BuildID), logfields.Error(err))
		bs.report.Warnings = append(bs.report.Warnings, "publish build event: "+err.Error())
	}
}

func isCanceled(err error) bool {
	var se *StageError
	if errors.As(err, &se) && se.Kind == StageErrorCanceled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
