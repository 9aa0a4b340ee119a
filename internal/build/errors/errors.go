// Package errors defines the terminal error taxonomy of the specblocks pipeline.
//
// Every constructor returns a foundation ClassifiedError whose cause chain
// matches one sentinel via errors.Is, and whose message names the offending
// path, pointer or identifier.
package errors

import (
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/specblocks/internal/foundation/errors"
)

var (
	// ErrSourceNotFound indicates the spec path or URL does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceUnreadable indicates an I/O failure reading a local spec.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrSourceUnavailable indicates a remote spec could not be fetched and no cached copy exists.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceMalformed indicates the raw spec is not a parseable OpenAPI 3.x document.
	ErrSourceMalformed = errors.New("source malformed")
	// ErrDanglingReference indicates a schema pointer or fragment link resolves to nothing.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrRenderConfig indicates a requested code-sample language has no template.
	ErrRenderConfig = errors.New("render config error")
	// ErrDuplicateFragment indicates two entities map to the same identifier.
	ErrDuplicateFragment = errors.New("duplicate fragment")
	// ErrDuplicateOperation indicates two operations normalize to the same identifier.
	ErrDuplicateOperation = fmt.Errorf("%w: duplicate operation", ErrDuplicateFragment)
)

var codes = []struct {
	err  error
	code string
}{
	{ErrSourceNotFound, "SourceNotFound"},
	{ErrSourceUnreadable, "SourceUnreadable"},
	{ErrSourceUnavailable, "SourceUnavailable"},
	{ErrSourceMalformed, "SourceMalformed"},
	{ErrDanglingReference, "DanglingReference"},
	{ErrRenderConfig, "RenderConfigError"},
	{ErrDuplicateFragment, "DuplicateFragment"},
}

// Code returns the taxonomy name for err, or "" when err matches no sentinel.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

func chain(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// SourceNotFound reports a missing local file or a 404/410 remote response.
func SourceNotFound(location string, cause error) *ferrors.ClassifiedError {
	return ferrors.WrapError(chain(ErrSourceNotFound, cause), ferrors.CategoryNotFound,
		fmt.Sprintf("spec source not found: %s", location)).
		Fatal().
		WithContext("source", location).
		Build()
}

// SourceUnreadable reports an I/O failure on a local spec file.
func SourceUnreadable(path string, cause error) *ferrors.ClassifiedError {
	return ferrors.WrapError(chain(ErrSourceUnreadable, cause), ferrors.CategoryFileSystem,
		fmt.Sprintf("spec source unreadable: %s", path)).
		Fatal().
		WithContext("source", path).
		Build()
}

// SourceUnavailable reports a remote fetch failure with no cache fallback.
func SourceUnavailable(url string, attempts int, cause error) *ferrors.ClassifiedError {
	return ferrors.WrapError(chain(ErrSourceUnavailable, cause), ferrors.CategoryNetwork,
		fmt.Sprintf("spec source unavailable: %s", url)).
		Fatal().
		Retryable().
		WithContext("source", url).
		WithContext("attempts", attempts).
		Build()
}

// SourceMalformed reports content that is not a parseable OpenAPI 3.x document.
func SourceMalformed(origin string, cause error) *ferrors.ClassifiedError {
	return ferrors.WrapError(chain(ErrSourceMalformed, cause), ferrors.CategorySource,
		fmt.Sprintf("spec source malformed: %s", origin)).
		Fatal().
		WithContext("source", origin).
		Build()
}

// DanglingReference reports a pointer that resolves to nothing.
// origin names where the pointer was found.
func DanglingReference(pointer, origin string) *ferrors.ClassifiedError {
	return ferrors.WrapError(ErrDanglingReference, ferrors.CategoryModel,
		fmt.Sprintf("unresolved reference %q at %s", pointer, origin)).
		Fatal().
		WithContext("pointer", pointer).
		WithContext("origin", origin).
		Build()
}

// RenderConfig reports a requested language without a sample template.
func RenderConfig(language string, available []string) *ferrors.ClassifiedError {
	return ferrors.WrapError(ErrRenderConfig, ferrors.CategoryConfig,
		fmt.Sprintf("no code-sample template for language %q", language)).
		Fatal().
		UserAction().
		WithContext("language", language).
		WithContext("available", available).
		Build()
}

// DuplicateFragment reports two fragments sharing an identifier or output path.
func DuplicateFragment(id, detail string) *ferrors.ClassifiedError {
	return ferrors.WrapError(ErrDuplicateFragment, ferrors.CategoryIndex,
		fmt.Sprintf("duplicate fragment %q: %s", id, detail)).
		Fatal().
		WithContext("fragment_id", id).
		Build()
}

// DuplicateOperation reports two source operations normalizing to one identifier.
func DuplicateOperation(id, first, second string) *ferrors.ClassifiedError {
	return ferrors.WrapError(ErrDuplicateOperation, ferrors.CategoryModel,
		fmt.Sprintf("duplicate operation identifier %q (%s and %s)", id, first, second)).
		Fatal().
		WithContext("operation_id", id).
		Build()
}
