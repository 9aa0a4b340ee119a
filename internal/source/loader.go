package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/metrics"
	"git.home.luguber.info/inful/specblocks/internal/retry"
	"git.home.luguber.info/inful/specblocks/internal/storage"
)

// Loader produces SpecDocuments. It is safe for sequential reuse across builds.
type Loader struct {
	store    storage.EntryStore
	client   *http.Client
	policy   retry.Policy
	maxBytes int64
	recorder metrics.Recorder
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithRetryPolicy sets the backoff policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(l *Loader) { l.policy = p }
}

// WithMaxBytes caps the size of a remote body.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(l *Loader) {
		if r != nil {
			l.recorder = r
		}
	}
}

// NewLoader creates a loader backed by store. A nil store disables caching
// for remote sources.
func NewLoader(store storage.EntryStore, opts ...Option) *Loader {
	l := &Loader{
		store:    store,
		client:   NewHTTPClient(DefaultTimeout),
		policy:   retry.DefaultPolicy(),
		maxBytes: DefaultMaxBytes,
		recorder: metrics.NoopRecorder{},
	}
	if l.store == nil {
		l.store = storage.NewMemoryStore()
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load acquires and validates the document at loc.
func (l *Loader) Load(ctx context.Context, loc Location) (*SpecDocument, error) {
	if loc.IsRemote() {
		return l.loadRemote(ctx, loc.URL)
	}
	return l.loadLocal(loc.Path)
}

func (l *Loader) loadLocal(path string) (*SpecDocument, error) {
	// #nosec G304 - reading the user-selected spec file is the purpose
	data, err := os.ReadFile(path)
	if err != nil {
		l.recorder.IncFetchResult(metrics.FetchFailed)
		if errors.Is(err, os.ErrNotExist) {
			return nil, builderrors.SourceNotFound(path, err)
		}
		return nil, builderrors.SourceUnreadable(path, err)
	}
	doc, err := Parse(path, data)
	if err != nil {
		l.recorder.IncFetchResult(metrics.FetchFailed)
		return nil, err
	}
	l.recorder.IncFetchResult(metrics.FetchLocal)
	slog.Debug("Loaded local spec", logfields.Source(path), slog.String("sha", doc.ShortSHA()))
	return doc, nil
}

func (l *Loader) loadRemote(ctx context.Context, url string) (*SpecDocument, error) {
	cached, err := l.store.Get(ctx, url)
	if err != nil {
		if !storage.IsNotFound(err) {
			slog.Warn("Cache lookup failed, fetching unconditionally", logfields.Source(url), logfields.Error(err))
		}
		cached = nil
	}

	var resp *response
	attempts, err := l.policy.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			l.recorder.IncFetchRetry()
			slog.Info("Retrying spec fetch", logfields.Source(url), logfields.Attempt(attempt))
		}
		r, ferr := l.fetch(ctx, url, cached)
		if ferr != nil {
			slog.Debug("Spec fetch attempt failed", logfields.Source(url), logfields.Attempt(attempt), logfields.Error(ferr))
			return ferr
		}
		resp = r
		return nil
	}, isTransient)
	if err != nil {
		return l.fetchFailed(url, cached, attempts, err)
	}

	if resp.notModified {
		doc, perr := documentFromEntry(url, cached)
		if perr != nil {
			l.recorder.IncFetchResult(metrics.FetchFailed)
			return nil, perr
		}
		l.recorder.IncFetchResult(metrics.FetchNotModified)
		slog.Info("Spec not modified, using cached copy", logfields.Source(url), slog.String("sha", doc.ShortSHA()))
		return doc, nil
	}

	doc, err := Parse(url, resp.body)
	if err != nil {
		// Malformed content never replaces a cache entry.
		l.recorder.IncFetchResult(metrics.FetchFailed)
		return nil, err
	}
	doc.ETag = resp.etag
	doc.LastModified = resp.lastModified

	entry := &storage.Entry{
		URL:          url,
		ETag:         resp.etag,
		LastModified: resp.lastModified,
		SHA256:       doc.SHA256,
		Data:         resp.body,
	}
	if err := l.store.Put(ctx, entry); err != nil {
		slog.Warn("Failed to update spec cache", logfields.Source(url), logfields.Error(err))
	}
	l.recorder.IncFetchResult(metrics.FetchFetched)
	slog.Info("Fetched spec", logfields.Source(url), slog.String("sha", doc.ShortSHA()), logfields.Attempt(attempts))
	return doc, nil
}

// fetch performs one attempt. A 304 to a request that carried no validators is
// answered with a single unconditional refetch.
func (l *Loader) fetch(ctx context.Context, url string, cached *storage.Entry) (*response, error) {
	var cond *conditional
	if cached.HasValidator() {
		cond = &conditional{etag: cached.ETag, lastModified: cached.LastModified}
	}
	resp, err := l.roundTrip(ctx, url, cond, false)
	if err != nil {
		return nil, err
	}
	if !resp.notModified || cached != nil {
		return resp, nil
	}
	slog.Warn("Not Modified without a cache entry, refetching", logfields.Source(url))
	resp, err = l.roundTrip(ctx, url, nil, true)
	if err != nil {
		return nil, err
	}
	if resp.notModified {
		return nil, &statusError{URL: url, Code: http.StatusNotModified}
	}
	return resp, nil
}

func (l *Loader) fetchFailed(url string, cached *storage.Entry, attempts int, err error) (*SpecDocument, error) {
	var se *statusError
	if errors.As(err, &se) && se.notFound() {
		l.recorder.IncFetchResult(metrics.FetchFailed)
		return nil, builderrors.SourceNotFound(url, err)
	}
	if errors.Is(err, context.Canceled) {
		l.recorder.IncFetchResult(metrics.FetchFailed)
		return nil, err
	}
	if cached != nil && isTransient(err) {
		doc, perr := documentFromEntry(url, cached)
		if perr == nil {
			warning := fmt.Sprintf("using cached copy of %s after %d failed attempt(s): %v", url, attempts, err)
			doc.Stale = true
			doc.Warnings = append(doc.Warnings, warning)
			l.recorder.IncFetchResult(metrics.FetchStale)
			slog.Warn("Spec source unavailable, falling back to cache", logfields.Source(url), logfields.Attempt(attempts), logfields.Error(err))
			return doc, nil
		}
		slog.Warn("Cached spec unusable", logfields.Source(url), logfields.Error(perr))
	}
	l.recorder.IncFetchResult(metrics.FetchFailed)
	return nil, builderrors.SourceUnavailable(url, attempts, err)
}

func documentFromEntry(url string, e *storage.Entry) (*SpecDocument, error) {
	doc, err := Parse(url, e.Data)
	if err != nil {
		return nil, err
	}
	doc.ETag = e.ETag
	doc.LastModified = e.LastModified
	return doc, nil
}
