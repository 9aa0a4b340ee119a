// Package render turns a specmodel.Model into HTML fragments.
//
// A Registry dispatches on (entity kind, language) to a RenderFunc built from
// one page template per kind and one code-sample template per language.
// Fragment identifiers and output paths are pure functions of the entity, so
// cross-fragment links never depend on build order.
package render
