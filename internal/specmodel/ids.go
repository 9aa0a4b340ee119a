package specmodel

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Methods lists the accepted HTTP methods in canonical order.
var Methods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// NormalizeMethod lower-cases and trims an HTTP method.
func NormalizeMethod(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}

// IsMethod reports whether m names an accepted HTTP method.
func IsMethod(m string) bool {
	m = NormalizeMethod(m)
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// NormalizePath trims whitespace, ensures a leading slash, collapses repeated
// slashes and drops a trailing slash except for the root.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	var b strings.Builder
	b.Grow(len(p) + 1)
	b.WriteByte('/')
	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// OperationID derives the stable identifier of an operation.
func OperationID(method, path string) string {
	return NormalizeMethod(method) + ":" + NormalizePath(path)
}

// ComponentKind is the registry a component lives in.
type ComponentKind string

const (
	KindSchema      ComponentKind = "schema"
	KindParameter   ComponentKind = "parameter"
	KindResponse    ComponentKind = "response"
	KindRequestBody ComponentKind = "requestBody"
)

// ComponentKinds lists kinds in registry traversal order.
var ComponentKinds = []ComponentKind{KindSchema, KindParameter, KindResponse, KindRequestBody}

var registryNames = map[ComponentKind]string{
	KindSchema:      "schemas",
	KindParameter:   "parameters",
	KindResponse:    "responses",
	KindRequestBody: "requestBodies",
}

// Registry returns the `components` key holding this kind.
func (k ComponentKind) Registry() string { return registryNames[k] }

func kindForRegistry(registry string) (ComponentKind, bool) {
	for kind, name := range registryNames {
		if name == registry {
			return kind, true
		}
	}
	return "", false
}

func kindRank(k ComponentKind) int {
	for i, kind := range ComponentKinds {
		if kind == k {
			return i
		}
	}
	return len(ComponentKinds)
}

// ComponentKey identifies a registry component.
type ComponentKey struct {
	Kind ComponentKind
	Name string
}

func (k ComponentKey) String() string {
	return string(k.Kind) + ":" + k.Name
}

// Pointer returns the local JSON pointer of the component.
func (k ComponentKey) Pointer() string {
	return "#/components/" + k.Kind.Registry() + "/" + escapePointerToken(k.Name)
}

// Less orders keys by registry then name.
func (k ComponentKey) Less(o ComponentKey) bool {
	if k.Kind != o.Kind {
		return kindRank(k.Kind) < kindRank(o.Kind)
	}
	return k.Name < o.Name
}

func sortKeys(keys []ComponentKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// keySet accumulates unique component keys.
type keySet map[ComponentKey]struct{}

func (s keySet) add(keys ...ComponentKey) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

func (s keySet) sorted() []ComponentKey {
	out := make([]ComponentKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// statusRank orders response statuses: numeric ascending, other labels next, default last.
func statusRank(status string) (int, string) {
	if status == "default" {
		return 999, status
	}
	code, err := strconv.Atoi(status)
	if err != nil {
		return 998, status
	}
	return code, status
}

func statusLess(a, b string) bool {
	ra, sa := statusRank(a)
	rb, sb := statusRank(b)
	if ra != rb {
		return ra < rb
	}
	return sa < sb
}

func location(origin string, line int) string {
	if line <= 0 {
		return origin
	}
	return fmt.Sprintf("%s:%d", origin, line)
}
