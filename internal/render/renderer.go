package render

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	builderrors "git.home.luguber.info/inful/specblocks/internal/build/errors"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
	"git.home.luguber.info/inful/specblocks/internal/specmodel"
)

// DefaultLanguages are rendered when no language is requested.
var DefaultLanguages = []string{"curl", "python"}

// Renderer turns a model into fragments through a Registry.
type Renderer struct {
	registry *Registry
	workers  int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWorkers bounds the number of concurrent render jobs. Values below one
// select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Renderer) { r.workers = n }
}

// NewRenderer returns a renderer dispatching through reg.
func NewRenderer(reg *Registry, opts ...Option) *Renderer {
	r := &Renderer{registry: reg}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// ResolveLanguages normalizes and de-duplicates languages, defaulting to
// DefaultLanguages, and fails with a RenderConfig error for the first
// language that has no renderer.
func (r *Renderer) ResolveLanguages(languages []string) ([]string, error) {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	seen := map[string]struct{}{}
	var out []string
	for _, lang := range languages {
		lang = specmodel.NormalizeLanguage(lang)
		if lang == "" {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		if _, ok := r.registry.Lookup(KindOperation, lang); !ok {
			return nil, builderrors.RenderConfig(lang, r.registry.Languages())
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	if len(out) == 0 {
		return r.ResolveLanguages(DefaultLanguages)
	}
	sort.Strings(out)
	return out, nil
}

type job struct {
	fn     RenderFunc
	entity Entity
	lang   string
}

// Render produces one fragment per component and one per operation and
// language, sorted by fragment ID. No fragment is rendered when the language
// set is invalid.
func (r *Renderer) Render(ctx context.Context, m *specmodel.Model, languages []string) ([]Fragment, error) {
	langs, err := r.ResolveLanguages(languages)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, op := range m.Operations {
		for _, lang := range langs {
			fn, _ := r.registry.Lookup(KindOperation, lang)
			jobs = append(jobs, job{fn: fn, entity: Entity{Operation: op}, lang: lang})
		}
	}
	for _, c := range m.Components {
		fn, ok := r.registry.Lookup(Kind(c.Key.Kind), "")
		if !ok {
			return nil, fmt.Errorf("no renderer for component kind %q", c.Key.Kind)
		}
		jobs = append(jobs, job{fn: fn, entity: Entity{Component: c}})
	}

	results := runOrdered(ctx, jobs, r.workers, func(j job) (Fragment, error) {
		return j.fn(m, j.entity, j.lang)
	})

	fragments := make([]Fragment, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			return nil, res.Err
		}
		fragments = append(fragments, res.Value)
	}
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].ID < fragments[j].ID })
	slog.Debug("Rendered fragments",
		logfields.Count(len(fragments)),
		slog.Any("languages", langs))
	return fragments, nil
}

type orderedResult[T any] struct {
	Value T
	Err   error
}

// runOrdered applies fn to items on at most concurrency goroutines and
// returns results in input order. Items not yet started when ctx is done
// report ctx.Err().
func runOrdered[T any, R any](ctx context.Context, items []T, concurrency int, fn func(T) (R, error)) []orderedResult[R] {
	if len(items) == 0 {
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	results := make([]orderedResult[R], len(items))
	next := make(chan int)
	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := ctx.Err(); err != nil {
					results[i] = orderedResult[R]{Err: err}
					continue
				}
				v, err := fn(items[i])
				results[i] = orderedResult[R]{Value: v, Err: err}
			}
		}()
	}
	for i := range items {
		next <- i
	}
	close(next)
	wg.Wait()
	return results
}
