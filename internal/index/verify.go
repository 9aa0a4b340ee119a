package index

import (
	"bytes"
	"fmt"
	"path"

	"golang.org/x/net/html"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/render"
)

// fragmentLink is an anchor carrying a data-fragment target.
type fragmentLink struct {
	Href   string
	Target string
}

// VerifyLinks parses every fragment and checks that each data-fragment
// target has an entry and that its href resolves to that entry's path.
func (ix *Index) VerifyLinks(fragments []render.Fragment) error {
	for _, f := range fragments {
		links, err := extractFragmentLinks(f.Content)
		if err != nil {
			return fmt.Errorf("parse fragment %s: %w", f.ID, err)
		}
		for _, l := range links {
			target, ok := ix.Lookup(l.Target)
			if !ok {
				return builderrors.DanglingReference(l.Target, f.ID)
			}
			if resolved := path.Join(path.Dir(f.Path), l.Href); resolved != target.Path {
				return builderrors.DanglingReference(l.Href, fmt.Sprintf("%s (resolves to %s, want %s)", f.ID, resolved, target.Path))
			}
		}
		for _, id := range f.Links {
			if _, ok := ix.Lookup(id); !ok {
				return builderrors.DanglingReference(id, f.ID)
			}
		}
	}
	return nil
}

func extractFragmentLinks(content []byte) ([]fragmentLink, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var links []fragmentLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if target := getAttr(n, "data-fragment"); target != "" {
				links = append(links, fragmentLink{Href: getAttr(n, "href"), Target: target})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
