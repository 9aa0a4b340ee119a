// Package source acquires OpenAPI documents from a local path or a remote URL.
//
// Remote sources go through a conditional-fetch cache: the stored ETag and
// Last-Modified validators are replayed on each request, a 304 reuses the
// cached bytes, and transient failures fall back to the cached copy with a
// warning. Every returned SpecDocument has passed syntax validation.
package source
