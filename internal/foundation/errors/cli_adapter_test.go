package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "not found", err: NewError(CategoryNotFound, "missing").Build(), expected: 3},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "source", err: NewError(CategorySource, "unavailable").Build(), expected: 8},
		{name: "render", err: NewError(CategoryRender, "no template").Build(), expected: 11},
		{name: "wrapped index", err: fmt.Errorf("stage: %w", NewError(CategoryIndex, "dup").Build()), expected: 11},
		{name: "internal", err: InternalError("bug").Build(), expected: 10},
		{name: "unclassified", err: errors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := NewError(CategorySource, "spec file not found").
		WithContext("path", "openapi.yaml").
		WithContext("attempts", 1).
		Build()

	quiet := NewCLIErrorAdapter(false, slog.Default())
	assert.Equal(t, "Error: spec file not found attempts=1 path=openapi.yaml", quiet.FormatError(err))

	verbose := NewCLIErrorAdapter(true, slog.Default())
	assert.Equal(t, "Error: [source:error] spec file not found", verbose.FormatError(err))

	assert.Equal(t, "Error: boom", quiet.FormatError(errors.New("boom")))
	assert.Empty(t, quiet.FormatError(nil))
}
