package source

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/storage"
)

// ShortSHALength is the digest prefix used in artifacts.
const ShortSHALength = 12

// SpecDocument is a syntactically valid OpenAPI 3.x document and its provenance.
// It is immutable once returned by the Loader.
type SpecDocument struct {
	Origin         string
	Raw            []byte
	Root           *yaml.Node // top-level mapping node
	SHA256         string
	ETag           string
	LastModified   string
	OpenAPIVersion string
	// Stale is set when the document came from the cache after a failed fetch.
	Stale    bool
	Warnings []string
}

// ShortSHA returns the abbreviated content fingerprint.
func (d *SpecDocument) ShortSHA() string {
	if len(d.SHA256) < ShortSHALength {
		return d.SHA256
	}
	return d.SHA256[:ShortSHALength]
}

// Parse validates raw as a YAML or JSON OpenAPI 3.x document.
// Only the syntax and the version marker are checked.
func Parse(origin string, raw []byte) (*SpecDocument, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, builderrors.SourceMalformed(origin, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, builderrors.SourceMalformed(origin, errors.New("empty document"))
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, builderrors.SourceMalformed(origin, fmt.Errorf("line %d: document root must be a mapping", root.Line))
	}

	version := ""
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "openapi" {
			v := root.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, builderrors.SourceMalformed(origin, fmt.Errorf("line %d: openapi field must be a string", v.Line))
			}
			version = strings.TrimSpace(v.Value)
			break
		}
	}
	if version == "" {
		return nil, builderrors.SourceMalformed(origin, errors.New("missing openapi version field"))
	}
	if !strings.HasPrefix(version, "3.") {
		return nil, builderrors.SourceMalformed(origin, fmt.Errorf("unsupported OpenAPI version %q (3.x required)", version))
	}

	return &SpecDocument{
		Origin:         origin,
		Raw:            raw,
		Root:           root,
		SHA256:         storage.Digest(raw),
		OpenAPIVersion: version,
	}, nil
}
