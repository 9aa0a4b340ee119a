package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/specblocks/internal/build"
	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/source"
)

type countingBuilder struct {
	runs atomic.Int32
	err  error
}

func (b *countingBuilder) Run(context.Context, build.Request) (*build.Report, error) {
	b.runs.Add(1)
	return &build.Report{}, b.err
}

func runWatcher(t *testing.T, w *Watcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return cancel
}

func TestWatchLocalRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "openapi.yaml")
	require.NoError(t, os.WriteFile(spec, []byte("openapi: 3.1.0\n"), 0o600))

	b := &countingBuilder{}
	var hooked atomic.Int32
	w := New(b, build.Request{Source: source.Location{Path: spec}},
		config.WatchConfig{Debounce: 20 * time.Millisecond},
		WithAfterBuild(func(*build.Report, error) { hooked.Add(1) }))
	runWatcher(t, w)

	require.Eventually(t, func() bool { return b.runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), b.runs.Load())

	// A burst of writes collapses into one rebuild.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(spec, []byte("openapi: 3.1.1\n"), 0o600))
	}
	require.Eventually(t, func() bool { return b.runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), b.runs.Load())
	assert.Equal(t, int32(2), hooked.Load())
}

func TestWatchRemotePollsAndSurvivesFailures(t *testing.T) {
	b := &countingBuilder{err: errors.New("upstream down")}
	w := New(b, build.Request{Source: source.Location{URL: "https://api.example.com/openapi.yaml"}},
		config.WatchConfig{Interval: 30 * time.Millisecond})
	runWatcher(t, w)

	require.Eventually(t, func() bool { return b.runs.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(&countingBuilder{}, build.Request{Source: source.Location{Path: filepath.Join(t.TempDir(), "nope", "spec.yaml")}},
		config.WatchConfig{Debounce: time.Millisecond})
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch directory")
}
