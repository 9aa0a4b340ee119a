package build

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/specblocks/internal/logfields"
)

// staging owns the sibling directory a build writes into before promotion.
type staging struct {
	output string
	dir    string
}

func stagingDir(output string) string { return output + "_stage" }
func backupDir(output string) string  { return output + ".prev" }

// beginStaging creates an empty <output>_stage, removing leftovers of an
// interrupted build.
func beginStaging(output string) (*staging, error) {
	output = filepath.Clean(output)
	dir := stagingDir(output)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear staging directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	slog.Debug("Initialized staging directory", "staging", dir, "final", output)
	return &staging{output: output, dir: dir}, nil
}

// write stores data at the slash-separated path rel inside the staging dir.
func (s *staging) write(rel string, data []byte) error {
	target := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	// #nosec G306 - output is a public documentation tree
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// promote replaces the output directory with the staging directory. The
// previous output is parked in <output>.prev and removed afterwards.
func (s *staging) promote() error {
	if s.dir == "" {
		return errors.New("no staging directory initialized")
	}
	prev := backupDir(s.output)
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove previous backup: %w", err)
	}
	if _, err := os.Stat(s.output); err == nil {
		if err := os.Rename(s.output, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(s.dir, s.output); err != nil {
		// Put the previous tree back so the output never disappears.
		if _, statErr := os.Stat(prev); statErr == nil {
			_ = os.Rename(prev, s.output)
		}
		return fmt.Errorf("promote staging: %w", err)
	}
	s.dir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	slog.Debug("Promoted staging directory", "output", s.output)
	return nil
}

// abort removes the staging directory after a failed build.
func (s *staging) abort() {
	if s == nil || s.dir == "" {
		return
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", "staging", dir, logfields.Error(err))
		return
	}
	slog.Debug("Removed staging directory after abort", "staging", dir)
}
