package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Location selects a spec source. Exactly one of Path or URL is set.
type Location struct {
	Path string
	URL  string
}

// NewLocation builds a Location from mutually exclusive URL and path inputs.
func NewLocation(rawURL, path string) (Location, error) {
	rawURL, path = strings.TrimSpace(rawURL), strings.TrimSpace(path)
	switch {
	case rawURL != "" && path != "":
		return Location{}, errors.New("spec url and spec path are mutually exclusive")
	case rawURL != "":
		loc, err := ParseLocation(rawURL)
		if err != nil {
			return Location{}, err
		}
		if !loc.IsRemote() && !strings.HasPrefix(rawURL, "file://") {
			return Location{}, fmt.Errorf("spec url must be http(s): %s", rawURL)
		}
		return loc, nil
	case path != "":
		return Location{Path: path}, nil
	default:
		return Location{}, errors.New("one of spec url or spec path is required")
	}
}

// ParseLocation maps http(s) URLs to a remote location and file:// URLs or bare
// paths to a local one.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("empty spec location")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return Location{Path: raw}, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return Location{}, fmt.Errorf("spec url has no host: %s", raw)
		}
		return Location{URL: u.String()}, nil
	case "file":
		return Location{Path: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("unsupported spec location scheme %q", u.Scheme)
	}
}

// IsRemote reports whether the location is fetched over HTTP.
func (l Location) IsRemote() bool { return l.URL != "" }

// String returns the URL or path.
func (l Location) String() string {
	if l.IsRemote() {
		return l.URL
	}
	return l.Path
}
