package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"candyshop/internal/config"
	"candyshop/internal/testsupport"
)

type fakePull struct {
	body   string
	labels []string
	files  map[string][]byte
}

// fakeGitHub serves the subset of the REST API the source client uses, raw
// attachment downloads, and a chat webhook.
type fakeGitHub struct {
	mu       sync.Mutex
	pulls    map[int]fakePull
	comments map[int][]string
	webhooks int
	server   *httptest.Server
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	gh := &fakeGitHub{
		pulls:    make(map[int]fakePull),
		comments: make(map[int][]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/owner/shop/pulls/{n}", gh.handlePull)
	mux.HandleFunc("GET /repos/owner/shop/pulls/{n}/files", gh.handleFiles)
	mux.HandleFunc("POST /repos/owner/shop/issues/{n}/comments", gh.handleComment)
	mux.HandleFunc("GET /raw/{n}/{name}", gh.handleRaw)
	mux.HandleFunc("GET /rate_limit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"resources":{}}`)
	})
	mux.HandleFunc("GET /webhook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"1"}`)
	})
	mux.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		gh.mu.Lock()
		gh.webhooks++
		gh.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	gh.server = httptest.NewServer(mux)
	t.Cleanup(gh.server.Close)
	return gh
}

func (gh *fakeGitHub) addPull(n int, body string, labels []string, files map[string][]byte) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.pulls[n] = fakePull{body: body, labels: labels, files: files}
}

func (gh *fakeGitHub) pull(r *http.Request) (int, fakePull, bool) {
	var n int
	if _, err := fmt.Sscanf(r.PathValue("n"), "%d", &n); err != nil {
		return 0, fakePull{}, false
	}
	gh.mu.Lock()
	defer gh.mu.Unlock()
	pr, ok := gh.pulls[n]
	return n, pr, ok
}

func (gh *fakeGitHub) handlePull(w http.ResponseWriter, r *http.Request) {
	n, pr, ok := gh.pull(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	labels := make([]map[string]string, 0, len(pr.labels))
	for _, label := range pr.labels {
		labels = append(labels, map[string]string{"name": label})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"number":   n,
		"title":    fmt.Sprintf("Submission %d", n),
		"body":     pr.body,
		"html_url": fmt.Sprintf("https://github.com/owner/shop/pull/%d", n),
		"user":     map[string]string{"login": "contributor"},
		"labels":   labels,
	})
}

func (gh *fakeGitHub) handleFiles(w http.ResponseWriter, r *http.Request) {
	n, pr, ok := gh.pull(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	files := make([]map[string]string, 0, len(pr.files))
	for name := range pr.files {
		files = append(files, map[string]string{
			"filename": "submissions/" + name,
			"status":   "added",
			"raw_url":  fmt.Sprintf("%s/raw/%d/%s", gh.server.URL, n, name),
		})
	}
	_ = json.NewEncoder(w).Encode(files)
}

func (gh *fakeGitHub) handleRaw(w http.ResponseWriter, r *http.Request) {
	_, pr, ok := gh.pull(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, ok := pr.files[r.PathValue("name")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func (gh *fakeGitHub) handleComment(w http.ResponseWriter, r *http.Request) {
	var n int
	if _, err := fmt.Sscanf(r.PathValue("n"), "%d", &n); err != nil {
		http.Error(w, "bad number", http.StatusBadRequest)
		return
	}
	var payload struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	gh.mu.Lock()
	gh.comments[n] = append(gh.comments[n], payload.Body)
	gh.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (gh *fakeGitHub) commentsFor(n int) []string {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return append([]string(nil), gh.comments[n]...)
}

func (gh *fakeGitHub) webhookCount() int {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.webhooks
}

type cliTestEnv struct {
	cfg        *config.Config
	github     *fakeGitHub
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	gh := newFakeGitHub(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIBase(gh.server.URL),
		testsupport.WithWebhook(gh.server.URL+"/webhook"),
	)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		github:     gh,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func submissionBody(game, song string, extra ...string) string {
	lines := []string{
		"IS SONG - DO NOT DELETE THIS LINE",
		"Game: " + game,
		"Song: " + song,
		"Category: bgm",
	}
	return strings.Join(append(lines, extra...), "\n")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
