// Package notify publishes build completion events.
package notify

import (
	"context"
	"time"
)

// BuildCompleted is published after the output tree of a build was promoted.
type BuildCompleted struct {
	BuildID     string    `json:"build_id"`
	Source      string    `json:"source"`
	SpecSHA     string    `json:"spec_sha"`
	OutputDir   string    `json:"output_dir"`
	Languages   []string  `json:"languages"`
	Fragments   int       `json:"fragments"`
	Entries     int       `json:"entries"`
	Stale       bool      `json:"stale"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher delivers build events.
type Publisher interface {
	Publish(ctx context.Context, ev BuildCompleted) error
	Close() error
}

// NoopPublisher discards events (default when notifications are not configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildCompleted) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	Events []BuildCompleted
	Err    error
}

func (r *RecordingPublisher) Publish(_ context.Context, ev BuildCompleted) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, ev)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }
