// Package artifacts computes where submitted files live in the content tree
// and writes them there.
package artifacts

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"candyshop/internal/fileutil"
	"candyshop/internal/logging"
	"candyshop/internal/services"
	"candyshop/internal/textutil"
)

// Kind identifies an artifact class.
type Kind string

const (
	KindBinary  Kind = "binary"
	KindPreview Kind = "preview"
	KindMIDI    Kind = "midi"
)

// BinaryExt is the extension every stored binary uses.
const BinaryExt = "bin"

// Layout describes the content tree. BinariesDir and PreviewsDir are
// slash-separated and relative to Root.
type Layout struct {
	Root        string
	BinariesDir string
	PreviewsDir string
}

// RelPath returns the repository-relative path for an artifact:
// "{dir}/{filtered game}/{filtered song}{suffix}.{ext}". MIDI files are never
// stored and yield an empty path.
func (l Layout) RelPath(kind Kind, game, song, suffix, ext string) string {
	var dir string
	switch kind {
	case KindBinary:
		dir = l.BinariesDir
	case KindPreview:
		dir = l.PreviewsDir
	default:
		return ""
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return path.Join(dir, textutil.FilterFilename(game), textutil.FilterFilename(song)+suffix+"."+ext)
}

// Abs converts a repository-relative slash path into a filesystem path.
func (l Layout) Abs(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

// Placer writes artifacts for a single ingestion and remembers what it wrote
// so a failed run can remove its own files.
type Placer struct {
	layout  Layout
	logger  *slog.Logger
	written []string
}

// NewPlacer returns a placer rooted at layout.
func NewPlacer(layout Layout, logger *slog.Logger) *Placer {
	return &Placer{layout: layout, logger: logging.NewComponentLogger(logger, "artifacts")}
}

// Layout returns the placer's content tree layout.
func (p *Placer) Layout() Layout { return p.layout }

// Place stores data for kind and returns its repository-relative path. MIDI
// data and nil data are not stored and return an empty path. Write failures
// are reported as ErrArtifactWrite.
func (p *Placer) Place(kind Kind, data []byte, game, song, suffix, ext string) (string, error) {
	if data == nil || kind == KindMIDI {
		return "", nil
	}
	rel := p.layout.RelPath(kind, game, song, suffix, ext)
	if rel == "" {
		return "", services.Wrap(services.ErrArtifactWrite, "place", string(kind), "unknown artifact kind", nil)
	}
	dest := p.layout.Abs(rel)
	if err := fileutil.WriteFileAtomic(dest, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrArtifactWrite, "place", string(kind),
			fmt.Sprintf("could not store the %s file", kind), err)
	}
	p.written = append(p.written, dest)
	p.logger.Info("artifact stored",
		logging.String("kind", string(kind)),
		logging.String("path", rel),
		logging.Int("bytes", len(data)),
		logging.String(logging.FieldEventType, "artifact_stored"))
	return rel, nil
}

// Rollback removes every file this placer wrote. Removal errors are logged.
func (p *Placer) Rollback() {
	for _, dest := range p.written {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			logging.WarnWithContext(p.logger, "artifact rollback failed", "artifact_rollback_failed",
				logging.String("path", dest),
				logging.Error(err),
				logging.Hint("delete the file by hand or let prune reclaim it"),
				logging.Impact("an unreferenced artifact remains on disk"))
		}
	}
	p.written = nil
}

// PublicURL joins rawBase and a repository-relative path, percent-encoding
// each path segment. rawBase must end with a slash.
func PublicURL(rawBase, rel string) string {
	segments := strings.Split(rel, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return rawBase + strings.Join(segments, "/")
}

// RelFromURL reverses PublicURL. Values that do not start with rawBase are
// treated as already-relative paths. The boolean reports whether the value
// looked like a usable path.
func RelFromURL(rawBase, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if strings.HasPrefix(value, rawBase) {
		value = strings.TrimPrefix(value, rawBase)
	} else if strings.Contains(value, "://") {
		return "", false
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", false
	}
	decoded = strings.TrimPrefix(path.Clean("/"+decoded), "/")
	if decoded == "" {
		return "", false
	}
	return decoded, true
}
