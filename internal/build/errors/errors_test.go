package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/specblocks/internal/foundation/errors"
)

func TestConstructorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
		category ferrors.ErrorCategory
	}{
		{"not found", SourceNotFound("spec.yaml", fs.ErrNotExist), ErrSourceNotFound, "SourceNotFound", ferrors.CategoryNotFound},
		{"unreadable", SourceUnreadable("spec.yaml", fs.ErrPermission), ErrSourceUnreadable, "SourceUnreadable", ferrors.CategoryFileSystem},
		{"unavailable", SourceUnavailable("https://x/spec.yaml", 3, errors.New("timeout")), ErrSourceUnavailable, "SourceUnavailable", ferrors.CategoryNetwork},
		{"malformed", SourceMalformed("spec.yaml", errors.New("bad yaml")), ErrSourceMalformed, "SourceMalformed", ferrors.CategorySource},
		{"dangling", DanglingReference("#/components/schemas/Missing", "paths./a.get"), ErrDanglingReference, "DanglingReference", ferrors.CategoryModel},
		{"render", RenderConfig("cobol", []string{"curl"}), ErrRenderConfig, "RenderConfigError", ferrors.CategoryConfig},
		{"duplicate fragment", DuplicateFragment("schema:Widget", "seen twice"), ErrDuplicateFragment, "DuplicateFragment", ferrors.CategoryIndex},
		{"duplicate operation", DuplicateOperation("get:/widgets", "a", "b"), ErrDuplicateOperation, "DuplicateFragment", ferrors.CategoryModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.code, Code(wrapped))
			assert.Equal(t, tt.category, ferrors.GetCategory(wrapped))
			assert.Equal(t, ferrors.SeverityFatal, ferrors.GetSeverity(wrapped))
		})
	}
}

func TestCausesArePreserved(t *testing.T) {
	err := SourceNotFound("missing.yaml", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestDuplicateOperationIsDuplicateFragment(t *testing.T) {
	err := DuplicateOperation("get:/widgets", "paths./widgets.get", "paths./widgets/.get")
	require.ErrorIs(t, err, ErrDuplicateFragment)
	assert.Contains(t, err.Error(), "get:/widgets")
}

func TestCodeUnknown(t *testing.T) {
	assert.Empty(t, Code(errors.New("other")))
	assert.Empty(t, Code(nil))
}
