package specmodel

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var errPointerNotFound = errors.New("pointer does not resolve")

// splitPointer decodes a local JSON pointer ("#/a/b~1c") into tokens.
func splitPointer(ref string) ([]string, bool) {
	if !strings.HasPrefix(ref, "#") {
		return nil, false
	}
	frag := strings.TrimPrefix(ref, "#")
	if unescaped, err := url.PathUnescape(frag); err == nil {
		frag = unescaped
	}
	if frag == "" {
		return []string{}, true
	}
	if !strings.HasPrefix(frag, "/") {
		return nil, false
	}
	parts := strings.Split(frag[1:], "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return parts, true
}

func escapePointerToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// registryKey recognizes pointers of the form #/components/<registry>/<name>.
func registryKey(ref string) (ComponentKey, bool) {
	parts, ok := splitPointer(ref)
	if !ok || len(parts) != 3 || parts[0] != "components" {
		return ComponentKey{}, false
	}
	kind, ok := kindForRegistry(parts[1])
	if !ok || parts[2] == "" {
		return ComponentKey{}, false
	}
	return ComponentKey{Kind: kind, Name: parts[2]}, true
}

// walkPointer resolves a local pointer against root.
func walkPointer(root *yaml.Node, ref string) (*yaml.Node, error) {
	parts, ok := splitPointer(ref)
	if !ok {
		return nil, errPointerNotFound
	}
	cur := deref(root)
	for _, tok := range parts {
		if cur == nil {
			return nil, errPointerNotFound
		}
		switch cur.Kind {
		case yaml.MappingNode:
			next := field(cur, tok)
			if next == nil {
				return nil, errPointerNotFound
			}
			cur = next
		case yaml.SequenceNode:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.Content) {
				return nil, errPointerNotFound
			}
			cur = deref(cur.Content[i])
		default:
			return nil, errPointerNotFound
		}
	}
	if cur == nil {
		return nil, errPointerNotFound
	}
	return cur, nil
}
