// Package watch rebuilds the output whenever the OpenAPI document changes.
//
// Local sources are watched with fsnotify on their containing directory and
// debounced. Remote sources are polled on a gocron duration job; the
// conditional-fetch cache keeps unchanged polls cheap.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/specblocks/internal/build"
	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
)

// Builder runs one build.
type Builder interface {
	Run(ctx context.Context, req build.Request) (*build.Report, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithAfterBuild installs a hook called after every build.
func WithAfterBuild(fn func(*build.Report, error)) Option {
	return func(w *Watcher) { w.afterBuild = fn }
}

// Watcher serializes rebuilds of one request.
type Watcher struct {
	builder    Builder
	req        build.Request
	interval   time.Duration
	debounce   time.Duration
	trigger    chan struct{}
	afterBuild func(*build.Report, error)
}

// New returns a watcher for req.
func New(builder Builder, req build.Request, cfg config.WatchConfig, opts ...Option) *Watcher {
	w := &Watcher{
		builder:  builder,
		req:      req,
		interval: cfg.Interval,
		debounce: cfg.Debounce,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run builds once, then rebuilds on every change until ctx is done. Build
// failures are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	stop, err := w.startSource(ctx)
	if err != nil {
		return err
	}
	defer stop()

	w.build(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch stopped")
			return nil
		case <-w.trigger:
			w.build(ctx)
		}
	}
}

func (w *Watcher) startSource(ctx context.Context) (func(), error) {
	if w.req.Source.IsRemote() {
		return w.startPolling()
	}
	return w.startFileWatch(ctx)
}

// requestBuild queues a build unless one is already pending.
func (w *Watcher) requestBuild() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) build(ctx context.Context) {
	report, err := w.builder.Run(ctx, w.req)
	if err != nil && ctx.Err() == nil {
		slog.Error("Rebuild failed; waiting for the next change", logfields.Error(err))
	}
	if w.afterBuild != nil {
		w.afterBuild(report, err)
	}
}

func (w *Watcher) startPolling() (func(), error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.requestBuild),
		gocron.WithName("spec-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create poll job: %w", err)
	}
	s.Start()
	slog.Info("Polling remote spec", logfields.Source(w.req.Source.String()), "interval", w.interval)
	return func() {
		if err := s.Shutdown(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}, nil
}

func (w *Watcher) startFileWatch(ctx context.Context) (func(), error) {
	path, err := filepath.Abs(w.req.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve spec path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors replace files by rename, so the directory is watched.
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	slog.Info("Watching spec file", logfields.Path(path), "debounce", w.debounce)

	done := make(chan struct{})
	go w.watchLoop(ctx, fw, filepath.Base(path), done)
	return func() {
		close(done)
		if err := fw.Close(); err != nil {
			slog.Warn("Error closing file watcher", logfields.Error(err))
		}
	}, nil
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher, name string, done <-chan struct{}) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("Spec change detected", logfields.Path(event.Name), "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.requestBuild)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}
