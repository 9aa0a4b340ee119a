package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

// Kind is the entity kind of a fragment.
type Kind string

const (
	KindOperation   Kind = "operation"
	KindSchema      Kind = Kind(specmodel.KindSchema)
	KindParameter   Kind = Kind(specmodel.KindParameter)
	KindResponse    Kind = Kind(specmodel.KindResponse)
	KindRequestBody Kind = Kind(specmodel.KindRequestBody)
)

var componentDirs = map[Kind]string{
	KindSchema:      "schemas",
	KindParameter:   "parameters",
	KindResponse:    "responses",
	KindRequestBody: "request-bodies",
}

// Fragment is one rendered output unit. Fragments are never mutated.
type Fragment struct {
	ID       string
	Kind     Kind
	EntityID string
	Language string
	Title    string
	Path     string
	Content  []byte
	Hash     string
	// Links are the sorted fragment IDs this fragment links to.
	Links []string
	Meta  Meta
}

// Meta carries entity attributes surfaced in the discovery layer.
type Meta struct {
	Method      string
	APIPath     string
	Tag         string
	OperationID string
	Summary     string
	Deprecated  bool
}

// OperationFragmentID identifies the fragment for one operation and language.
func OperationFragmentID(opID, lang string) string {
	return string(KindOperation) + ":" + opID + ":" + lang
}

// ComponentFragmentID identifies the fragment for one component.
func ComponentFragmentID(key specmodel.ComponentKey) string {
	return key.String()
}

// PathFor derives the relative output path of a fragment from its identifier.
// Distinct identifiers always map to distinct paths: case is kept and every
// byte outside [A-Za-z0-9-] is escaped reversibly.
func PathFor(id string) (string, error) {
	kind, rest, ok := strings.Cut(id, ":")
	if !ok || rest == "" {
		return "", fmt.Errorf("malformed fragment id %q", id)
	}
	if Kind(kind) == KindOperation {
		method, tail, ok := strings.Cut(rest, ":")
		i := strings.LastIndex(tail, ":")
		if !ok || i <= 0 || i == len(tail)-1 || !specmodel.IsMethod(method) {
			return "", fmt.Errorf("malformed operation fragment id %q", id)
		}
		apiPath, lang := tail[:i], tail[i+1:]
		return path.Join("operations", method+"-"+pathSlug(apiPath)+"."+escapeSegment(lang, "")+".html"), nil
	}
	dir, ok := componentDirs[Kind(kind)]
	if !ok {
		return "", fmt.Errorf("unknown fragment kind %q in %q", kind, id)
	}
	return path.Join("components", dir, nameSlug(rest)+".html"), nil
}

// pathSlug encodes an API path with segments joined by ".":
// "/widgets/{id}" becomes "widgets._7Bid_7D" and "/" becomes "_root".
func pathSlug(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "_root"
	}
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = escapeSegment(seg, "")
	}
	return strings.Join(segs, ".")
}

// nameSlug encodes a registry name. Dots are kept except in leading position.
func nameSlug(s string) string {
	if s == "" {
		return "_"
	}
	return escapeSegment(s, ".")
}

const upperHex = "0123456789ABCDEF"

// escapeSegment keeps letters, digits, '-' and the bytes in keep (never at
// index 0). '_' becomes "__" and any other byte "_XX" in upper-case hex.
func escapeSegment(s, keep string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		case i > 0 && strings.IndexByte(keep, c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&0x0f])
		}
	}
	return b.String()
}

// relPath returns the href from the fragment at from to the fragment at to.
// Both are slash-separated paths relative to the output root.
func relPath(from, to string) string {
	fromDir := strings.Split(path.Dir(from), "/")
	if fromDir[0] == "." {
		fromDir = nil
	}
	target := strings.Split(to, "/")
	i := 0
	for i < len(fromDir) && i < len(target)-1 && fromDir[i] == target[i] {
		i++
	}
	parts := make([]string, 0, len(fromDir)-i+len(target)-i)
	for range fromDir[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, target[i:]...)
	return strings.Join(parts, "/")
}

func contentHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
