package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"candyshop/internal/config"
	"candyshop/internal/logging"
	"candyshop/internal/services"
)

func TestNewFromConfigCreatesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "warn"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("visible")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "candyshop.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", content)
	}
	if !strings.Contains(string(content), "WARN visible") {
		t.Fatalf("expected warn line, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "ingest")
	component.Info("entry recorded", logging.String("song", "Jungle Japes"), logging.PullRequest(42))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO ingest: entry recorded") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, `song="Jungle Japes"`) || !strings.Contains(line, "pr=42") {
		t.Fatalf("expected fields, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithPullRequest(context.Background(), 7)
	ctx = services.WithStage(ctx, "place")
	logging.WarnWithContext(logging.WithContext(ctx, logger), "preview skipped", "preview_missing",
		logging.Error(errors.New("no attachment")))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, data)
	}
	if record["level"] != "warn" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record["pr"] != float64(7) || record["stage"] != "place" {
		t.Fatalf("expected context fields, got %v", record)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected %s in warn record: %v", key, record)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 8) {
		t.Fatal("nop logger should not be enabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}

func TestWarnWithContextKeepsExplicitHint(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "lock release failed", "catalog_unlock_failed",
		logging.Hint("remove the lock file"), logging.Stage("place"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, data)
	}
	if record[logging.FieldErrorHint] != "remove the lock file" {
		t.Fatalf("hint overwritten: %v", record)
	}
	if record[logging.FieldEventType] != "catalog_unlock_failed" || record[logging.FieldStage] != "place" {
		t.Fatalf("unexpected fields: %v", record)
	}
}
