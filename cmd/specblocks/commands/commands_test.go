package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specblocks/internal/config"
)

const widgetsSpec = `openapi: 3.1.0
info:
  title: Widgets API
  version: "1.0"
paths:
  /widgets:
    get:
      responses:
        "200":
          description: OK
`

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli,
		kong.Name("specblocks"),
		kong.Vars{"version": "test"},
		kong.Bind(&Global{Logger: slog.Default()}),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	return parser
}

func TestParseBuildFlags(t *testing.T) {
	var cli CLI
	ctx, err := newParser(t, &cli).Parse([]string{"build", "--spec-url", "https://api.example.com/openapi.yaml", "--lang", "curl,go", "--out", "public"})
	require.NoError(t, err)
	assert.Equal(t, "build", ctx.Command())
	assert.Equal(t, []string{"curl", "go"}, cli.Build.Lang)
	assert.Equal(t, "https://api.example.com/openapi.yaml", cli.Build.SpecURL)
}

func TestParseRejectsBothSources(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{"build", "--spec-url", "https://x.test/a.yaml", "--spec-path", "a.yaml"})
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true, "error"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(false, "WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel(false, "error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false, ""))
}

func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "specblocks.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("source:\n  url: https://api.example.com/openapi.yaml\noutput:\n  directory: from-config\n"), 0o600))

	flags := SourceFlags{SpecPath: "local.yaml", Lang: []string{"python"}, CacheDir: "cache"}
	cfg, err := flags.Resolve(cfgPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Source.URL)
	assert.Equal(t, "local.yaml", cfg.Source.Path)
	assert.Equal(t, "from-config", cfg.Output.Directory)
	assert.Equal(t, []string{"python"}, cfg.Render.Languages)
	assert.Equal(t, "cache", cfg.Cache.Directory)
}

func TestResolveWithoutSourceFails(t *testing.T) {
	flags := SourceFlags{}
	_, err := flags.Resolve(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBuildCommandWritesOutputAndMetrics(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "openapi.yaml")
	require.NoError(t, os.WriteFile(spec, []byte(widgetsSpec), 0o600))

	out := filepath.Join(dir, "site")
	metricsFile := filepath.Join(dir, "specblocks.prom")
	cmd := BuildCmd{SourceFlags: SourceFlags{
		SpecPath:    spec,
		Out:         out,
		Lang:        []string{"curl"},
		CacheDir:    filepath.Join(dir, "cache"),
		MetricsFile: metricsFile,
	}}
	require.NoError(t, cmd.Run(&Global{}, &CLI{Config: filepath.Join(dir, "none.yaml")}))

	assert.FileExists(t, filepath.Join(out, "llms.txt"))
	assert.FileExists(t, filepath.Join(out, "operations", "get-widgets.curl.html"))
	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "specblocks_build_duration_seconds")
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	cmd := InitCmd{Output: dir}
	require.NoError(t, cmd.Run(&Global{}, &CLI{}))

	cfg, err := config.Load(filepath.Join(dir, config.DefaultConfigFile))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/openapi.yaml", cfg.Source.URL)

	require.Error(t, cmd.Run(&Global{}, &CLI{}))
}

func TestListLanguages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listLanguages(&buf, ""))
	assert.Contains(t, buf.String(), "curl\n")
	assert.Contains(t, buf.String(), "python\n")
}

func TestParseVersionCommand(t *testing.T) {
	var cli CLI
	ctx, err := newParser(t, &cli).Parse([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version", ctx.Command())
}
