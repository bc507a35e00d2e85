package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"candyshop/internal/fileutil"
	"candyshop/internal/logging"
	"candyshop/internal/services"
)

const lockRetryDelay = 100 * time.Millisecond

// Catalog is the in-memory, insertion-ordered view of the catalog file.
type Catalog struct {
	entries []Entry
	version string
	corrupt bool
}

// New returns an empty catalog that has never been persisted.
func New(entries ...Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...)}
}

// Entries returns a copy of the catalog entries in submission order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, entry := range c.entries {
		out[i] = entry.Clone()
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// At returns a copy of the entry at index i.
func (c *Catalog) At(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i].Clone(), true
}

// Append adds an entry at the end of the catalog and returns its index.
func (c *Catalog) Append(entry Entry) int {
	c.entries = append(c.entries, entry.Clone())
	return len(c.entries) - 1
}

// MarkPruned sets the pruned flag on the entry at index i. It reports whether
// the flag changed.
func (c *Catalog) MarkPruned(i int) bool {
	if i < 0 || i >= len(c.entries) || c.entries[i].Pruned {
		return false
	}
	c.entries[i].Pruned = true
	return true
}

// FindBySong returns the indexes of entries matching game and song exactly.
func (c *Catalog) FindBySong(game, song string) []int {
	var out []int
	for i, entry := range c.entries {
		if entry.Game == game && entry.Song == song {
			out = append(out, i)
		}
	}
	return out
}

// ReferencesBinary reports whether any entry records rel as its binary path.
func (c *Catalog) ReferencesBinary(rel string) bool {
	for _, entry := range c.entries {
		if entry.Binary == rel {
			return true
		}
	}
	return false
}

// Version identifies the file contents this catalog was loaded from. It is
// empty when the file did not exist.
func (c *Catalog) Version() string { return c.version }

// Store persists a Catalog to a single JSON file.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	held bool
}

// NewStore creates a store for the catalog file at path. The advisory lock
// lives next to it at path + ".lock".
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "catalog"),
		now:    time.Now,
	}
}

// Path returns the catalog file location.
func (s *Store) Path() string { return s.path }

// WithLock runs fn while holding the catalog's advisory lock. Loads and saves
// made inside fn observe a single writer. Waiting for the lock honours ctx.
func (s *Store) WithLock(ctx context.Context, fn func() error) error {
	acquired, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	if acquired {
		defer s.release()
	}
	return fn()
}

// acquire takes the file lock unless this store already holds it. It reports
// whether the caller now owns the lock and must release it.
func (s *Store) acquire(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		return false, nil
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return false, services.Wrap(services.ErrConcurrentModification, "catalog", "lock", "Catalog is locked by another run", err)
	}
	if !ok {
		return false, services.Wrap(services.ErrConcurrentModification, "catalog", "lock", "Catalog is locked by another run", nil)
	}
	s.held = true
	return true, nil
}

func (s *Store) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		return
	}
	s.held = false
	if err := s.lock.Unlock(); err != nil {
		logging.WarnWithContext(s.logger, "catalog lock release failed", "catalog_unlock_failed",
			logging.Error(err),
			logging.Hint("remove the stale .lock file if no other run is active"),
			logging.Impact("later runs may wait for the lock"))
	}
}

// Load reads the catalog file. A missing file yields an empty catalog. A
// malformed file also yields an empty catalog together with a catalog_corrupt
// warning; only I/O failures are returned as errors.
func (s *Store) Load() (*Catalog, []services.Warning, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Catalog{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}

	cat := &Catalog{version: versionOf(data)}
	if len(bytes.TrimSpace(data)) == 0 {
		return cat, nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		cat.corrupt = true
		warning := services.NewWarning("catalog", "catalog_corrupt",
			"catalog file is malformed; continuing with an empty catalog", err)
		logging.WarnWithContext(s.logger, "catalog malformed, loaded as empty", "catalog_corrupt",
			logging.String("path", s.path),
			logging.Error(err),
			logging.Hint("inspect the .corrupt backup written on the next save"),
			logging.Impact("existing entries are not visible to this run"))
		return cat, []services.Warning{warning}, nil
	}
	cat.entries = entries
	return cat, nil, nil
}

// Save writes the whole catalog atomically. It fails with
// ErrConcurrentModification when the file changed since cat was loaded.
func (s *Store) Save(ctx context.Context, cat *Catalog) error {
	if cat == nil {
		return errors.New("save catalog: nil catalog")
	}
	acquired, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	if acquired {
		defer s.release()
	}

	current, err := os.ReadFile(s.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		current = nil
	default:
		return fmt.Errorf("read catalog: %w", err)
	}
	onDisk := ""
	if current != nil {
		onDisk = versionOf(current)
	}
	if onDisk != cat.version {
		return services.Wrap(services.ErrConcurrentModification, "catalog", "save",
			"Catalog changed on disk since it was loaded", nil)
	}

	if cat.corrupt && current != nil {
		backup, err := s.backupCorrupt()
		if err != nil {
			return fmt.Errorf("back up corrupt catalog: %w", err)
		}
		s.logger.Info("corrupt catalog preserved",
			logging.String("backup", backup),
			logging.String(logging.FieldEventType, "catalog_corrupt_backup"))
		cat.corrupt = false
	}

	data, err := Encode(cat.entries)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	cat.version = versionOf(data)
	s.logger.Debug("catalog saved",
		logging.Int("entries", len(cat.entries)),
		logging.String(logging.FieldEventType, "catalog_saved"))
	return nil
}

// Encode renders entries as the catalog file format: a JSON array indented
// with two spaces and a trailing newline.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

func versionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// backupCorrupt copies the malformed catalog beside itself. The version check
// in Save guarantees the file on disk is the one that failed to parse.
func (s *Store) backupCorrupt() (string, error) {
	base := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405Z"))
	backup := base
	for n := 1; ; n++ {
		err := fileutil.PreserveCopy(s.path, backup)
		if err == nil {
			return backup, nil
		}
		if !errors.Is(err, fs.ErrExist) || n > 100 {
			return "", err
		}
		backup = fmt.Sprintf("%s-%d", base, n)
	}
}
