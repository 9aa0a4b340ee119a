package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/specblocks/internal/build"
	"git.home.luguber.info/inful/specblocks/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	SourceFlags `embed:""`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := w.Resolve(root.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink := newMetricsSink(cfg.Metrics.TextFile)
	rt, err := build.NewRuntime(ctx, cfg, sink.recorder)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	watcher := watch.New(rt.Service, rt.Request, cfg.Watch,
		watch.WithAfterBuild(func(report *build.Report, _ error) {
			sink.flush()
			if report != nil {
				fmt.Println(report.Summary())
			}
		}))
	return watcher.Run(ctx)
}
