package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"candyshop/internal/preflight"
)

func TestStatusReportPlainLines(t *testing.T) {
	report := newStatusReport(io.Discard)
	report.section("Catalog")
	report.add("Catalog", healthFail, "malformed")
	report.section("Checks")

	lines := strings.Split(report.String(), "\n")
	want := []string{
		"== Catalog ==",
		"-------------",
		fmt.Sprintf("  %-*s %s", labelWidth, "Catalog:", "[ERROR] malformed"),
		"",
		"== Checks ==",
		"------------",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("report mismatch\n got: %q\nwant: %q", lines, want)
	}
}

func TestStatusReportColorWrapsLine(t *testing.T) {
	report := &statusReport{color: true}
	got := report.format("Catalog", healthOK, "3 entries")
	if !strings.HasPrefix(got, "\x1b[32m") || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestStatusReportCountsOnlyRequiredFailures(t *testing.T) {
	report := newStatusReport(io.Discard)
	failed := preflight.Result{Name: "GitHub API", Detail: "check failed (500)"}

	report.check(failed, true)
	if report.failed != 0 || !strings.Contains(report.String(), "[WARN] check failed (500)") {
		t.Fatalf("optional failure should warn: %d %q", report.failed, report.String())
	}
	report.check(preflight.Result{Name: "Repository root", Detail: "missing"}, false)
	if report.failed != 1 || !strings.Contains(report.String(), "[ERROR] missing") {
		t.Fatalf("required failure should count: %d %q", report.failed, report.String())
	}
	report.check(preflight.Result{Name: "State directory", Passed: true, Detail: "ok"}, false)
	if report.failed != 1 || !strings.Contains(report.String(), "[OK] ok") {
		t.Fatalf("passed check should be OK: %q", report.String())
	}
}

func TestIsTerminalRejectsBuffers(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Fatal("buffer reported as terminal")
	}
}

func TestWriteTablePadsRowsAndAddsFooter(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []column{textColumn("Category"), countColumn("Songs")},
		[][]string{{"Bgm", "3"}, {"Jingles"}}, "Total", "3")

	out := buf.String()
	for _, want := range []string{"Bgm", "Jingles", "CATEGORY", "TOTAL"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "\n") < 6 {
		t.Fatalf("expected header, rows and footer, got:\n%s", out)
	}

	buf.Reset()
	writeTable(&buf, nil, [][]string{{"x"}})
	if buf.Len() != 0 {
		t.Fatalf("no columns should print nothing, got %q", buf.String())
	}
}
