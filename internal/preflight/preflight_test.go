package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"candyshop/internal/config"
	"candyshop/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestFreeMiBWalksToExistingAncestor(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "binaries", "Game")
	free, err := FreeMiB(missing)
	if err != nil {
		t.Fatalf("FreeMiB: %v", err)
	}
	if free == 0 {
		t.Fatal("expected some free space on the temp filesystem")
	}
}

func TestEnsureFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureFreeSpace(dir, 0); err != nil {
		t.Fatalf("zero minimum should disable the check: %v", err)
	}
	err := EnsureFreeSpace(dir, 1<<40)
	if !errors.Is(err, services.ErrArtifactWrite) {
		t.Fatalf("expected ErrArtifactWrite for an impossible minimum, got %v", err)
	}
}

func TestCheckGitHub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rate_limit" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "" && auth != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckGitHub(context.Background(), srv.URL, "good"); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckGitHub(context.Background(), srv.URL, ""); !result.Passed {
		t.Fatalf("expected anonymous pass, got %s", result.Detail)
	}
	if result := CheckGitHub(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if result := CheckGitHub(context.Background(), "", "good"); result.Passed {
		t.Fatal("expected failure for missing base url")
	}
}

func TestCheckWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/webhooks/1/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if result := CheckWebhook(context.Background(), srv.URL+"/api/webhooks/1/ok"); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckWebhook(context.Background(), srv.URL+"/api/webhooks/1/gone"); result.Passed {
		t.Fatal("expected failure for deleted webhook")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_LocalConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.RepoRoot = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Ingest.MinFreeMiB = 1
	cfg.Repository.APIBaseURL = srv.URL
	cfg.Notifications.WebhookURL = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
