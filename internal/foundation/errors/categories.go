package errors

import "maps"

// ErrorCategory groups errors by the pipeline area that raised them.
type ErrorCategory string

const (
	// User input: configuration, flags, missing files.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// Spec acquisition.
	CategoryNetwork ErrorCategory = "network"
	CategorySource  ErrorCategory = "source"

	// Build stages.
	CategoryModel      ErrorCategory = "model"
	CategoryRender     ErrorCategory = "render"
	CategoryIndex      ErrorCategory = "index"
	CategoryFileSystem ErrorCategory = "filesystem"

	CategoryInternal ErrorCategory = "internal"
)

// exitCodes maps categories to process exit codes. Unlisted categories exit 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryNotFound:   3,
	CategoryConfig:     7,
	CategoryNetwork:    8,
	CategorySource:     8,
	CategoryInternal:   10,
	CategoryModel:      11,
	CategoryRender:     11,
	CategoryIndex:      11,
	CategoryFileSystem: 11,
}

// ExitCode is the process exit code for errors of this category.
func (c ErrorCategory) ExitCode() int {
	if code, ok := exitCodes[c]; ok {
		return code
	}
	return 1
}

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the build
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Build continues degraded
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy indicates whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext carries the identifiers (path, pointer, fragment id) an error is about.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

func (c ErrorContext) with(key string, value any) ErrorContext {
	out := make(ErrorContext, len(c)+1)
	maps.Copy(out, c)
	out[key] = value
	return out
}
