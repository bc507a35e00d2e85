// Package catalog owns the JSON song catalog: the ordered list of every
// ingested entry, its on-disk persistence, and revision numbering for
// resubmissions of the same game and song.
//
// The catalog file is a pretty-printed JSON array. Store serializes writers
// with an advisory lock next to the file and rejects a save when the bytes on
// disk changed since the catalog was loaded. A malformed file loads as an
// empty catalog with a warning; the original bytes are copied aside on the
// next save so nothing is silently overwritten.
package catalog
