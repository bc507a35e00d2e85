// Package textutil provides the filename filtering rules shared by artifact
// placement, pruning, and packaging.
//
// Catalog paths are derived from contributor-supplied Game and Song names, so
// every component that turns a name into a path segment must apply the same
// filter. FilterFilename is idempotent and never emits any of the forbidden
// characters.
package textutil
