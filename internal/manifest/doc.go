// Package manifest tracks every artifact a conversion process
// produces. The Manager persists its manifest after each mutation and
// expands file references into digest records so the provenance of
// every output can be checked later.
package manifest
