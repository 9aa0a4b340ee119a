package index

import (
	"fmt"
	"sort"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/render"
)

// FormatVersion is the schema version of manifest.json and blocks/index.json.
const FormatVersion = 1

// Site is the constant information shared by all artifacts.
type Site struct {
	Title          string
	Description    string
	APIVersion     string
	OpenAPIVersion string
	SpecSHA        string
	// BaseURL prefixes sitemap locations when set.
	BaseURL string
}

// Entry describes one fragment in the discovery layer.
type Entry struct {
	ID          string      `json:"id"`
	Kind        render.Kind `json:"kind"`
	EntityID    string      `json:"entity"`
	Language    string      `json:"language,omitempty"`
	Title       string      `json:"title"`
	Path        string      `json:"path"`
	Hash        string      `json:"hash"`
	Summary     string      `json:"summary,omitempty"`
	Method      string      `json:"method,omitempty"`
	APIPath     string      `json:"api_path,omitempty"`
	Tag         string      `json:"tag,omitempty"`
	OperationID string      `json:"operation_id,omitempty"`
	Deprecated  bool        `json:"deprecated,omitempty"`
	Links       []string    `json:"links,omitempty"`
}

// Index is the sorted entry list of one build.
type Index struct {
	Site    Site
	Entries []Entry

	byID map[string]int
}

var kindRank = map[render.Kind]int{
	render.KindOperation:   0,
	render.KindParameter:   1,
	render.KindRequestBody: 2,
	render.KindResponse:    3,
	render.KindSchema:      4,
}

// Generate builds the index. Two fragments sharing an identifier or an output
// path fail with a DuplicateFragment error.
func Generate(fragments []render.Fragment, site Site) (*Index, error) {
	ix := &Index{Site: site, Entries: make([]Entry, 0, len(fragments)), byID: make(map[string]int, len(fragments))}
	paths := make(map[string]string, len(fragments))

	for _, f := range fragments {
		if _, dup := ix.byID[f.ID]; dup {
			return nil, builderrors.DuplicateFragment(f.ID, "identifier appears more than once")
		}
		if other, dup := paths[f.Path]; dup {
			return nil, builderrors.DuplicateFragment(f.ID, fmt.Sprintf("output path %s already used by %s", f.Path, other))
		}
		if _, ok := kindRank[f.Kind]; !ok {
			return nil, fmt.Errorf("fragment %s has unknown kind %q", f.ID, f.Kind)
		}
		ix.byID[f.ID] = -1
		paths[f.Path] = f.ID
		ix.Entries = append(ix.Entries, entryFor(f))
	}

	sort.Slice(ix.Entries, func(i, j int) bool {
		a, b := ix.Entries[i], ix.Entries[j]
		if ra, rb := kindRank[a.Kind], kindRank[b.Kind]; ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	for i, e := range ix.Entries {
		ix.byID[e.ID] = i
	}
	return ix, nil
}

func entryFor(f render.Fragment) Entry {
	return Entry{
		ID:          f.ID,
		Kind:        f.Kind,
		EntityID:    f.EntityID,
		Language:    f.Language,
		Title:       f.Title,
		Path:        f.Path,
		Hash:        f.Hash,
		Summary:     f.Meta.Summary,
		Method:      f.Meta.Method,
		APIPath:     f.Meta.APIPath,
		Tag:         f.Meta.Tag,
		OperationID: f.Meta.OperationID,
		Deprecated:  f.Meta.Deprecated,
		Links:       f.Links,
	}
}

// Lookup returns the entry for a fragment identifier.
func (ix *Index) Lookup(id string) (Entry, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return Entry{}, false
	}
	return ix.Entries[i], true
}

// Count is the number of entries.
func (ix *Index) Count() int { return len(ix.Entries) }

// CountByKind returns the number of entries of each kind.
func (ix *Index) CountByKind() map[render.Kind]int {
	out := map[render.Kind]int{}
	for _, e := range ix.Entries {
		out[e.Kind]++
	}
	return out
}
