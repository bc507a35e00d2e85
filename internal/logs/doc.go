// Package logs reads the candyshop log file for the `candyshop logs` command.
//
// Last returns the trailing lines with bounded memory, optionally keeping
// only lines that mention a request id or event type, and Follow polls for
// lines appended after a known offset. A file that shrinks between polls is
// treated as rotated and read again from the start.
package logs
