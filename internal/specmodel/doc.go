// Package specmodel builds the canonical, read-only model of an OpenAPI
// document: operations keyed by method and normalized path, registry
// components, normalized schema trees and the reference graph between them.
//
// Component references are kept as keys, never embedded, so cyclic schemas
// form a finite graph. Every list in the model is sorted or kept in source
// order, which makes the model's serialization independent of traversal order.
package specmodel
