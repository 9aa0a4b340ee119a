package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/specblocks/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SourceFlags `embed:""`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := b.Resolve(root.Config)
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

	report, err := rt.Service.Run(ctx, rt.Request)
	sink.flush()
	if report != nil {
		fmt.Println(report.Summary())
	}
	return err
}
