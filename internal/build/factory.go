package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
	"git.home.luguber.info/inful/specblocks/internal/notify"
	"git.home.luguber.info/inful/specblocks/internal/render"
	"git.home.luguber.info/inful/specblocks/internal/retry"
	"git.home.luguber.info/inful/specblocks/internal/source"
	"git.home.luguber.info/inful/specblocks/internal/storage"
)

// Runtime is a Service together with the resources it owns.
type Runtime struct {
	Service *Service
	Request Request

	store     storage.EntryStore
	publisher notify.Publisher
}

// Close releases the cache store and the publisher connection.
func (r *Runtime) Close() error {
	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// ReportDir is where reports are persisted for a cache directory.
func ReportDir(cacheDir string) string { return filepath.Join(cacheDir, "reports") }

// NewRuntime wires every collaborator of a Service from cfg. cfg must be
// validated. A publisher that cannot connect is replaced by a no-op and logged.
func NewRuntime(ctx context.Context, cfg *config.Config, recorder metrics.Recorder) (*Runtime, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	loc, err := source.NewLocation(cfg.Source.URL, cfg.Source.Path)
	if err != nil {
		return nil, err
	}

	reg, err := render.NewRegistry(cfg.Render.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	store, err := storage.Open(cfg.Cache.Backend, cfg.Cache.Directory)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	loader := source.NewLoader(store,
		source.WithHTTPClient(source.NewHTTPClient(cfg.Fetch.Timeout)),
		source.WithRetryPolicy(retry.FromConfig(cfg.Fetch.Retry)),
		source.WithMaxBytes(cfg.Fetch.MaxBytes),
		source.WithRecorder(recorder))

	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.Notify.NATSURL != "" {
		p, perr := notify.NewNATSPublisher(ctx, cfg.Notify)
		if perr != nil {
			slog.Warn("Build notifications disabled", logfields.Error(perr))
		} else {
			publisher = p
		}
	}

	svc := NewService(loader, render.NewRenderer(reg, render.WithWorkers(cfg.Render.Workers)),
		WithRecorder(recorder),
		WithPublisher(publisher),
		WithReportDir(ReportDir(cfg.Cache.Directory)),
		WithSite(Site{Title: cfg.Output.Title, BaseURL: cfg.Output.BaseURL}))

	return &Runtime{
		Service: svc,
		Request: Request{
			Source:    loc,
			OutputDir: cfg.Output.Directory,
			Languages: cfg.Render.Languages,
		},
		store:     store,
		publisher: publisher,
	}, nil
}
