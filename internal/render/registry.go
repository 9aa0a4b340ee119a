package render

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	texttemplate "text/template"

	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

//go:embed templates
var builtinTemplates embed.FS

const (
	pagesDir     = "pages"
	samplesDir   = "samples"
	pageSuffix   = ".html.tmpl"
	sampleSuffix = ".tmpl"
)

// Entity is the model value a RenderFunc renders. Exactly one field is set.
type Entity struct {
	Operation *specmodel.Operation
	Component *specmodel.Component
}

// RenderFunc turns one entity into one fragment. It must be pure.
type RenderFunc func(m *specmodel.Model, e Entity, lang string) (Fragment, error)

type registryKey struct {
	kind Kind
	lang string
}

// Registry maps (entity kind, language) to a RenderFunc. Component kinds are
// registered with an empty language.
type Registry struct {
	pages   *template.Template
	samples map[string]*texttemplate.Template
	funcs   map[registryKey]RenderFunc
}

// NewRegistry builds the dispatch table from the embedded templates. When
// overrideDir is set, pages/*.html.tmpl and samples/*.tmpl found there replace
// or add templates by name.
func NewRegistry(overrideDir string) (*Registry, error) {
	builtin, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("open builtin templates: %w", err)
	}
	pageSrc := map[string]string{}
	sampleSrc := map[string]string{}
	if err := collect(builtin, pageSrc, sampleSrc); err != nil {
		return nil, err
	}
	if overrideDir != "" {
		if _, statErr := os.Stat(overrideDir); statErr != nil {
			return nil, fmt.Errorf("template directory %s: %w", overrideDir, statErr)
		}
		if err := collect(os.DirFS(overrideDir), pageSrc, sampleSrc); err != nil {
			return nil, err
		}
	}

	r := &Registry{samples: map[string]*texttemplate.Template{}, funcs: map[registryKey]RenderFunc{}}
	r.pages = template.New("pages").Option("missingkey=error")
	for _, name := range sortedNames(pageSrc) {
		if _, err := r.pages.New(name).Parse(pageSrc[name]); err != nil {
			return nil, fmt.Errorf("parse page template %s: %w", name, err)
		}
	}
	for _, kind := range []Kind{KindOperation, KindSchema, KindParameter, KindResponse, KindRequestBody} {
		if r.pages.Lookup(pageName(kind)) == nil {
			return nil, fmt.Errorf("missing page template %s", pageName(kind))
		}
	}
	for _, lang := range sortedNames(sampleSrc) {
		tpl, err := texttemplate.New(lang).Funcs(sampleFuncs).Option("missingkey=error").Parse(sampleSrc[lang])
		if err != nil {
			return nil, fmt.Errorf("parse sample template %s: %w", lang, err)
		}
		r.samples[lang] = tpl
	}

	for kind := range componentDirs {
		r.Register(kind, "", r.renderComponent)
	}
	for lang := range r.samples {
		r.Register(KindOperation, lang, r.renderOperation)
	}
	return r, nil
}

func collect(fsys fs.FS, pages, samples map[string]string) error {
	read := func(dir, suffix string, into map[string]string, key func(string) string) error {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("read %s templates: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
				continue
			}
			data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
			if err != nil {
				return fmt.Errorf("read template %s: %w", e.Name(), err)
			}
			into[key(e.Name())] = string(data)
		}
		return nil
	}
	if err := read(pagesDir, pageSuffix, pages, func(n string) string { return n }); err != nil {
		return err
	}
	return read(samplesDir, sampleSuffix, samples, func(n string) string {
		return specmodel.NormalizeLanguage(strings.TrimSuffix(n, sampleSuffix))
	})
}

func sortedNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func pageName(kind Kind) string { return string(kind) + pageSuffix }

// Register installs fn for (kind, lang), replacing any previous entry.
func (r *Registry) Register(kind Kind, lang string, fn RenderFunc) {
	r.funcs[registryKey{kind: kind, lang: lang}] = fn
}

// Lookup returns the RenderFunc for (kind, lang).
func (r *Registry) Lookup(kind Kind, lang string) (RenderFunc, bool) {
	fn, ok := r.funcs[registryKey{kind: kind, lang: lang}]
	return fn, ok
}

// Languages lists the languages with an operation renderer, sorted.
func (r *Registry) Languages() []string {
	var out []string
	for k := range r.funcs {
		if k.kind == KindOperation {
			out = append(out, k.lang)
		}
	}
	sort.Strings(out)
	return out
}
