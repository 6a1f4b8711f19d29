// Package integrations describes the benchmarked debloating frameworks.
//
// Ownership boundary:
// - integration metadata, container and examples volume
//
// - per-framework discovery predicate
//
// - per-example build command
//
// - registry of built-in and configured integrations
package integrations
