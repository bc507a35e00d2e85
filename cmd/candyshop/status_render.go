package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"candyshop/internal/preflight"
)

type health int

const (
	healthInfo health = iota
	healthOK
	healthWarn
	healthFail
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

var healthStyles = map[health]struct{ tag, color string }{
	healthInfo: {"INFO", ansiBlue},
	healthOK:   {"OK", "\x1b[32m"},
	healthWarn: {"WARN", "\x1b[33m"},
	healthFail: {"ERROR", "\x1b[31m"},
}

const labelWidth = 24

// statusReport collects the sections printed by `candyshop status` and counts
// failed required checks for --strict.
type statusReport struct {
	lines  []string
	color  bool
	failed int
}

func newStatusReport(w io.Writer) *statusReport {
	return &statusReport{color: isTerminal(w)}
}

func (r *statusReport) paint(color, s string) string {
	if !r.color || color == "" {
		return s
	}
	return color + s + ansiReset
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := "== " + strings.TrimSpace(title) + " =="
	r.lines = append(r.lines, r.paint(ansiBlue, heading), r.paint(ansiBlue, strings.Repeat("-", len(heading))))
}

func (r *statusReport) add(label string, h health, detail string) {
	r.lines = append(r.lines, r.format(label, h, detail))
}

func (r *statusReport) format(label string, h health, detail string) string {
	style := healthStyles[h]
	value := "[" + style.tag + "]"
	if detail != "" {
		value += " " + detail
	}
	return r.paint(style.color, fmt.Sprintf("  %-*s %s", labelWidth, label+":", value))
}

// check records a preflight result. Remote services are optional: ingest can
// still run against the local catalog, so their failures only warn.
func (r *statusReport) check(result preflight.Result, optional bool) {
	h := healthOK
	switch {
	case result.Passed:
	case optional:
		h = healthWarn
	default:
		h = healthFail
		r.failed++
	}
	r.add(result.Name, h, result.Detail)
}

func (r *statusReport) String() string { return strings.Join(r.lines, "\n") }

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
