package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"candyshop/internal/services"
	"candyshop/internal/testsupport"
)

func TestCLIIngestAndCatalogCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.github.addPull(7, submissionBody("Donkey Kong 64", "Jungle Japes", "Composers: Grant Kirkhope"), nil,
		map[string][]byte{"song.bin": []byte("binary-v1")})

	out, _, err := runCLI(t, []string{"ingest", "7", "--json", "--comment"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var result ingestOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode ingest output: %v\n%s", err, out)
	}
	if result.PullRequest != 7 || result.Index != 0 || result.Revision != 0 {
		t.Fatalf("unexpected ingest result: %+v", result)
	}
	if result.Entry.Binary != "binaries/Donkey Kong 64/Jungle Japes.bin" {
		t.Fatalf("binary = %q", result.Entry.Binary)
	}
	if result.RequestID == "" {
		t.Fatal("expected request id")
	}
	data, err := os.ReadFile(filepath.Join(env.cfg.Paths.RepoRoot, "binaries", "Donkey Kong 64", "Jungle Japes.bin"))
	if err != nil || string(data) != "binary-v1" {
		t.Fatalf("placed binary = %q, %v", data, err)
	}
	if comments := env.github.commentsFor(7); len(comments) != 1 || !strings.Contains(comments[0], "Jungle Japes") {
		t.Fatalf("unexpected comments: %v", comments)
	}
	if env.github.webhookCount() != 1 {
		t.Fatalf("expected one webhook delivery, got %d", env.github.webhookCount())
	}

	_, _, err = runCLI(t, []string{"ingest", "7"}, env.configPath)
	if !errors.Is(err, services.ErrAlreadyIngested) {
		t.Fatalf("expected ErrAlreadyIngested on repeat, got %v", err)
	}

	out, _, err = runCLI(t, []string{"ingest", "#7", "--force"}, env.configPath)
	if err != nil {
		t.Fatalf("forced ingest: %v", err)
	}
	requireContains(t, out, "Added #1: Donkey Kong 64 - Jungle Japes")
	requireContains(t, out, "Revision: 1")

	out, _, err = runCLI(t, []string{"catalog", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	var rows []catalogRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode catalog list: %v\n%s", err, out)
	}
	if len(rows) != 2 || rows[1].Entry.Binary != "binaries/Donkey Kong 64/Jungle Japes (REV 1).bin" {
		t.Fatalf("unexpected catalog rows: %+v", rows)
	}

	out, _, err = runCLI(t, []string{"catalog", "list", "--game", "Banjo-Kazooie"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list --game: %v", err)
	}
	requireContains(t, out, "No catalog entries")

	out, _, err = runCLI(t, []string{"catalog", "show", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog show: %v", err)
	}
	requireContains(t, out, "Grant Kirkhope")
	requireContains(t, out, "binaries/Donkey Kong 64/Jungle Japes.bin")

	if _, _, err := runCLI(t, []string{"catalog", "show", "5"}, env.configPath); err == nil {
		t.Fatal("expected out of range error")
	}

	out, _, err = runCLI(t, []string{"ledger", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	var ledgerRows []ledgerRow
	if err := json.Unmarshal([]byte(out), &ledgerRows); err != nil {
		t.Fatalf("decode ledger: %v\n%s", err, out)
	}
	if len(ledgerRows) != 2 || ledgerRows[0].Revision != 1 || ledgerRows[0].EntryIndex == nil || *ledgerRows[0].EntryIndex != 1 {
		t.Fatalf("unexpected ledger rows: %+v", ledgerRows)
	}
}

func TestCLIIngestRejectionPostsComment(t *testing.T) {
	env := setupCLITestEnv(t)
	env.github.addPull(8, submissionBody("Banjo-Kazooie", "Mumbo's Mountain"), nil,
		map[string][]byte{"preview.mp3": []byte("mp3")})

	_, _, err := runCLI(t, []string{"ingest", "8", "--comment"}, env.configPath)
	if !errors.Is(err, services.ErrMissingRequiredArtifact) {
		t.Fatalf("expected ErrMissingRequiredArtifact, got %v", err)
	}
	comments := env.github.commentsFor(8)
	if len(comments) != 1 || !strings.Contains(comments[0], "missing a required file: a .bin file") {
		t.Fatalf("unexpected comments: %v", comments)
	}

	cat := testsupport.LoadCatalog(t, env.cfg)
	if cat.Len() != 0 {
		t.Fatalf("rejected submission must not add entries, got %d", cat.Len())
	}

	out, _, err := runCLI(t, []string{"ledger", "--pr", "8"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	requireContains(t, out, "rejected")
}

func TestCLIIngestSkipsCommentForNonSubmission(t *testing.T) {
	env := setupCLITestEnv(t)
	env.github.addPull(9, "Fix typo in README", nil, nil)

	_, _, err := runCLI(t, []string{"ingest", "9", "--comment"}, env.configPath)
	if !errors.Is(err, services.ErrNotASubmission) {
		t.Fatalf("expected ErrNotASubmission, got %v", err)
	}
	if comments := env.github.commentsFor(9); len(comments) != 0 {
		t.Fatalf("expected no comments, got %v", comments)
	}
}

func TestCLIIngestRejectsBadNumber(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"ingest", "abc"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric pull request")
	}
}

func TestCLIPruneAndPack(t *testing.T) {
	env := setupCLITestEnv(t)
	env.github.addPull(7, submissionBody("Donkey Kong 64", "Jungle Japes"), nil,
		map[string][]byte{"song.bin": []byte("binary")})
	if _, _, err := runCLI(t, []string{"ingest", "7"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	orphan := filepath.Join(env.cfg.Paths.RepoRoot, "previews", "Old Game", "Gone.mp3")
	testsupport.WriteFile(t, orphan, 16)

	out, _, err := runCLI(t, []string{"prune", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("prune dry run: %v", err)
	}
	var report struct {
		DryRun          bool     `json:"dry_run"`
		CandidatesFound int      `json:"candidates_found"`
		Deleted         int      `json:"deleted"`
		Candidates      []string `json:"candidates"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode prune report: %v\n%s", err, out)
	}
	if !report.DryRun || report.CandidatesFound != 1 || report.Deleted != 0 {
		t.Fatalf("unexpected dry run report: %+v", report)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Fatalf("dry run must keep files: %v", err)
	}

	if _, _, err := runCLI(t, []string{"prune", "--apply", "--dry-run"}, env.configPath); err == nil {
		t.Fatal("expected conflicting flags to fail")
	}

	out, _, err = runCLI(t, []string{"prune", "--apply"}, env.configPath)
	if err != nil {
		t.Fatalf("prune apply: %v", err)
	}
	requireContains(t, out, "Deleted:")
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("expected orphan preview removed, stat err=%v", err)
	}

	archive := filepath.Join(env.baseDir, "out", "pack.zip")
	out, _, err = runCLI(t, []string{"pack", "--output", archive}, env.configPath)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	requireContains(t, out, "Packed 1 songs")
	requireContains(t, out, "Bgm")
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("expected archive: %v", err)
	}
}

func TestCLITestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if env.github.webhookCount() != 1 {
		t.Fatalf("expected webhook delivery, got %d", env.github.webhookCount())
	}
}

func TestCLITestNotifyRequiresWebhook(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Notifications.WebhookURL = ""
	writeTestConfig(t, env.configPath, env.cfg)

	if _, _, err := runCLI(t, []string{"test-notify"}, env.configPath); err == nil {
		t.Fatal("expected error without webhook")
	}
}

func TestCLIStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"status", "--strict"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "== Catalog ==")
	requireContains(t, out, "empty or not created yet")
	requireContains(t, out, "No ingestions recorded")
	requireContains(t, out, "[OK] Reachable (anonymous, low rate limit)")
	requireContains(t, out, "Notification webhook")
}

func TestCLILogsFiltersByRequest(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "INFO ingest started correlation_id=aaa\nINFO ingest started correlation_id=bbb\nINFO ingest completed correlation_id=aaa\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--request", "aaa"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "bbb") {
		t.Fatalf("unexpected line for other request:\n%s", out)
	}
	requireContains(t, out, "ingest completed correlation_id=aaa")
}
