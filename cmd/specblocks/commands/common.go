package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
)

// LogLevelEnv overrides the log level unless --verbose is given.
const LogLevelEnv = "SPECBLOCKS_LOG_LEVEL"

// Global is passed to every command's Run method.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config      string           `short:"c" help:"Configuration file path" default:"specblocks.yaml"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	ShowVersion kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     BuildCmd     `cmd:"" help:"Compile the OpenAPI document into the output directory"`
	Watch     WatchCmd     `cmd:"" help:"Build, then rebuild whenever the document changes"`
	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
	Languages LanguagesCmd `cmd:"" help:"List the code-sample languages that can be rendered"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	level := parseLogLevel(c.Verbose, os.Getenv(LogLevelEnv))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return nil
}

func parseLogLevel(verbose bool, env string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SourceFlags are the build flags shared by build and watch. Each one
// overrides its configuration counterpart when set.
type SourceFlags struct {
	SpecURL     string   `name:"spec-url" help:"URL of the OpenAPI document" xor:"source"`
	SpecPath    string   `name:"spec-path" help:"Local path of the OpenAPI document" xor:"source" type:"path"`
	Out         string   `short:"o" name:"out" help:"Output directory" type:"path"`
	Lang        []string `short:"l" name:"lang" help:"Code-sample languages (comma separated)" sep:","`
	CacheDir    string   `name:"cache-dir" help:"Conditional-fetch cache directory" type:"path"`
	MetricsFile string   `name:"metrics-file" help:"Write Prometheus metrics to this textfile after each build" type:"path"`
}

// Resolve loads the configuration, applies the flags and validates the result.
func (f *SourceFlags) Resolve(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *SourceFlags) apply(cfg *config.Config) {
	switch {
	case f.SpecURL != "":
		cfg.Source = config.SourceConfig{URL: f.SpecURL}
	case f.SpecPath != "":
		cfg.Source = config.SourceConfig{Path: f.SpecPath}
	}
	if f.Out != "" {
		cfg.Output.Directory = f.Out
	}
	if len(f.Lang) > 0 {
		cfg.Render.Languages = f.Lang
	}
	if f.CacheDir != "" {
		cfg.Cache.Directory = f.CacheDir
	}
	if f.MetricsFile != "" {
		cfg.Metrics.TextFile = f.MetricsFile
	}
}

// metricsSink collects build metrics when a textfile is configured.
type metricsSink struct {
	path     string
	registry *prom.Registry
	recorder metrics.Recorder
}

func newMetricsSink(path string) *metricsSink {
	if path == "" {
		return &metricsSink{recorder: metrics.NoopRecorder{}}
	}
	reg := prom.NewRegistry()
	return &metricsSink{path: path, registry: reg, recorder: metrics.NewPrometheusRecorder(reg)}
}

func (m *metricsSink) flush() {
	if m.registry == nil {
		return
	}
	if err := metrics.WriteTextfile(m.path, m.registry); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(m.path), logfields.Error(err))
	}
}
