package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"candyshop/internal/config"
)

// WriteFile creates path, and any missing parents, holding size filler bytes.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	writeBytes(t, path, bytes.Repeat([]byte{0x42}, int(size)))
}

// WriteArtifact stores data at the repository-relative slash path rel under
// cfg's content tree and returns the absolute path.
func WriteArtifact(t testing.TB, cfg *config.Config, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(cfg.Paths.RepoRoot, filepath.FromSlash(rel))
	writeBytes(t, path, data)
	return path
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
