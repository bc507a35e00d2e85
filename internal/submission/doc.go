// Package submission turns a pull request description and its attachment list
// into a typed Submission.
//
// The first non-blank line must be the configured sentinel. Every following
// "Key: value" line becomes a field, split on the first colon. Parsing is a
// pure transformation: nothing is fetched or written here.
package submission
