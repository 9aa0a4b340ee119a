package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"git.home.luguber.info/inful/specblocks/internal/version"
)

const (
	// DefaultMaxBytes caps a remote spec body.
	DefaultMaxBytes int64 = 64 << 20
	// DefaultTimeout bounds a single remote request.
	DefaultTimeout = 30 * time.Second
	maxRedirects   = 5
)

var errTooLarge = errors.New("response too large")

// NewHTTPClient creates an HTTP client with safe defaults for spec retrieval.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) == 0 {
				return nil
			}
			if via[0].URL.Scheme == "https" && req.URL.Scheme != "https" {
				return errors.New("redirect from https to insecure scheme blocked")
			}
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// statusError is a non-2xx, non-304 response.
type statusError struct {
	URL  string
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Code)
}

func (e *statusError) notFound() bool {
	return e.Code == http.StatusNotFound || e.Code == http.StatusGone
}

func (e *statusError) transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// response is the outcome of one successful round trip.
type response struct {
	notModified  bool
	body         []byte
	etag         string
	lastModified string
}

// conditional carries the validators replayed from a cache entry.
type conditional struct {
	etag         string
	lastModified string
}

func (l *Loader) roundTrip(ctx context.Context, target string, cond *conditional, fresh bool) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/yaml, application/json;q=0.9, */*;q=0.1")
	if cond != nil {
		if cond.etag != "" {
			req.Header.Set("If-None-Match", cond.etag)
		}
		if cond.lastModified != "" {
			req.Header.Set("If-Modified-Since", cond.lastModified)
		}
	}
	if fresh {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &response{notModified: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{URL: target, Code: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, l.maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", target, errTooLarge, l.maxBytes)
	}
	return &response{
		body:         data,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// isTransient decides whether a fetch error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errTooLarge) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	return true
}
