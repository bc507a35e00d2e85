package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"candyshop/internal/services"
)

const remoteCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports whether the filesystem holding path has at least
// minMiB mebibytes available.
func CheckFreeSpace(name, path string, minMiB uint64) Result {
	free, err := FreeMiB(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if free < minMiB {
		return Result{Name: name, Detail: fmt.Sprintf("%d MiB free, need %d MiB", free, minMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MiB free", free)}
}

// FreeMiB returns the space available to unprivileged users on the filesystem
// holding path. Missing path components are skipped so the check works before
// artifact directories exist.
func FreeMiB(path string) (uint64, error) {
	probe := filepath.Clean(path)
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			return 0, fmt.Errorf("no existing ancestor for %s", path)
		}
		probe = parent
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(probe, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", probe, err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize) / (1 << 20), nil
}

// EnsureFreeSpace fails with ErrArtifactWrite when fewer than minMiB are free
// under path. A zero minimum disables the check.
func EnsureFreeSpace(path string, minMiB uint64) error {
	if minMiB == 0 {
		return nil
	}
	free, err := FreeMiB(path)
	if err != nil {
		return services.Wrap(services.ErrArtifactWrite, "preflight", "free space", "could not measure free disk space", err)
	}
	if free < minMiB {
		return services.Wrap(services.ErrArtifactWrite, "preflight", "free space",
			fmt.Sprintf("only %d MiB free, need %d MiB", free, minMiB), nil)
	}
	return nil
}

// CheckGitHub verifies that the REST API answers and, when a token is set,
// that it is accepted.
func CheckGitHub(ctx context.Context, apiBase, token string) Result {
	const name = "GitHub API"

	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing api base url"}
	}

	status, err := probe(ctx, base+"/rate_limit", func(req *http.Request) {
		req.Header.Set("Accept", "application/vnd.github+json")
		if token = strings.TrimSpace(token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	switch status {
	case http.StatusOK:
		if token == "" {
			return Result{Name: name, Passed: true, Detail: "Reachable (anonymous, low rate limit)"}
		}
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", status)}
	}
}

// CheckWebhook verifies that the chat webhook exists. Discord answers GET on
// a webhook URL with its metadata.
func CheckWebhook(ctx context.Context, webhookURL string) Result {
	const name = "Notification webhook"

	status, err := probe(ctx, webhookURL, nil)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	switch status {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusNotFound:
		return Result{Name: name, Detail: "webhook rejected (deleted or wrong token)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", status)}
	}
}

func probe(ctx context.Context, url string, decorate func(*http.Request)) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if decorate != nil {
		decorate(req)
	}
	client := &http.Client{Timeout: remoteCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	return err.Error()
}
