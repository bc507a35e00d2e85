// Package pack exports the catalog as a distributable archive of .candy files.
//
// The archive holds one member per song, "{Category}/{Song}.candy". Each
// member is itself a zip with the song binary ("song.bin") and its menu
// metadata ("data.json"). Newer entries win: the catalog is walked newest
// first and a song title already packed is skipped.
package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"candyshop/internal/catalog"
	"candyshop/internal/config"
	"candyshop/internal/fileutil"
	"candyshop/internal/logging"
	"candyshop/internal/services"
	"candyshop/internal/textutil"
)

// GameImage is one images.json record.
type GameImage struct {
	ShortName string `json:"short_name"`
	Icon      string `json:"icon"`
}

// SongData is the data.json document inside a .candy member.
type SongData struct {
	Song      string   `json:"song"`
	SongShort string   `json:"song_short"`
	Game      string   `json:"game"`
	GameShort string   `json:"game_short"`
	Group     string   `json:"group"`
	Length    float64  `json:"length"`
	Logo      string   `json:"logo"`
	Composer  string   `json:"composer"`
	Converter string   `json:"converter"`
	Audio     string   `json:"audio"`
	Tags      []string `json:"tags"`
}

// Report summarizes an export.
type Report struct {
	Output            string             `json:"output"`
	Packed            int                `json:"packed"`
	SkippedDuplicates int                `json:"skipped_duplicates"`
	SkippedPruned     int                `json:"skipped_pruned"`
	MissingBinaries   []string           `json:"missing_binaries,omitempty"`
	Categories        map[string]int     `json:"categories"`
	Warnings          []services.Warning `json:"warnings,omitempty"`
}

// Options adjusts an export.
type Options struct {
	// Output overrides the configured archive path.
	Output string
}

// Builder produces archives from the configured catalog.
type Builder struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder returns a builder for cfg.
func NewBuilder(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pack"),
		now:    time.Now,
	}
}

// Build writes the archive atomically and returns what went into it.
func (b *Builder) Build(ctx context.Context, opts Options) (*Report, error) {
	output := opts.Output
	if output == "" {
		output = b.cfg.PackOutputPath()
	}
	report := &Report{Output: output, Categories: make(map[string]int)}

	images, warning, err := LoadImages(b.cfg.ImagesPath())
	if err != nil {
		return nil, err
	}
	if warning != nil {
		report.Warnings = append(report.Warnings, *warning)
	}

	var entries []catalog.Entry
	err = b.store.WithLock(ctx, func() error {
		cat, warnings, err := b.store.Load()
		if err != nil {
			return err
		}
		if len(warnings) > 0 {
			return services.Wrap(services.ErrCatalogCorrupt, "pack", "load", "catalog file is malformed; refusing to export", nil)
		}
		entries = cat.Entries()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	added := make(map[string]struct{})
	for i := len(entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := entries[i]
		if entry.Pruned {
			report.SkippedPruned++
			continue
		}
		if _, ok := added[entry.Song]; ok {
			report.SkippedDuplicates++
			b.logger.Debug("skipping duplicate song",
				logging.String("song", entry.Song),
				logging.Int("index", i))
			continue
		}
		binary, err := b.readBinary(entry)
		if err != nil {
			report.MissingBinaries = append(report.MissingBinaries, fmt.Sprintf("%s: %s (%d)", entry.Game, entry.Song, i))
			logging.WarnWithContext(b.logger, "song skipped, binary unavailable", "pack_binary_missing",
				logging.String("game", entry.Game),
				logging.String("song", entry.Song),
				logging.Int("index", i),
				logging.Error(err),
				logging.Hint("run candyshop prune to list entries with missing binaries"),
				logging.Impact("the song is absent from the pack"))
			continue
		}

		member, err := candy(binary, songData(entry, images), b.now())
		if err != nil {
			return nil, err
		}
		name := entry.Category + "/" + textutil.ArchiveName(entry.Song) + ".candy"
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: b.now()})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(member); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		added[entry.Song] = struct{}{}
		report.Packed++
		report.Categories[entry.Category]++
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	if err := fileutil.WriteFileAtomic(output, archive.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	b.logger.Info("pack written",
		logging.String("output", output),
		logging.Int("packed", report.Packed),
		logging.Int("duplicates", report.SkippedDuplicates),
		logging.Int("missing_binaries", len(report.MissingBinaries)),
		logging.String(logging.FieldEventType, "pack_written"))
	return report, nil
}

func (b *Builder) readBinary(entry catalog.Entry) ([]byte, error) {
	if entry.Binary == "" {
		return nil, errors.New("no binary recorded")
	}
	path := entry.Binary
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.cfg.Paths.RepoRoot, filepath.FromSlash(path))
	}
	return os.ReadFile(path)
}

func songData(entry catalog.Entry, images map[string]GameImage) SongData {
	data := SongData{
		Song:      entry.Song,
		SongShort: entry.Song,
		Game:      entry.Game,
		GameShort: entry.Game,
		Group:     entry.Category,
		Composer:  entry.Composers,
		Converter: entry.Converters,
		Audio:     entry.Audio,
		Tags:      entry.Tags,
	}
	if data.Tags == nil {
		data.Tags = []string{}
	}
	if entry.Duration != nil {
		data.Length = *entry.Duration
	}
	if img, ok := images[entry.Game]; ok {
		if img.ShortName != "" {
			data.GameShort = img.ShortName
		}
		data.Logo = img.Icon
	}
	return data
}

// candy builds one inner archive.
func candy(binary []byte, data SongData, modified time.Time) ([]byte, error) {
	meta, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data.json: %w", err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range []struct {
		name string
		data []byte
	}{
		{"song.bin", binary},
		{"data.json", meta},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: file.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", file.name, err)
		}
		if _, err := w.Write(file.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", file.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish candy: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadImages reads the game image map. A missing file is not an error; it
// yields an empty map and a warning.
func LoadImages(path string) (map[string]GameImage, *services.Warning, error) {
	images := make(map[string]GameImage)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w := services.NewWarning("pack", "images_missing", fmt.Sprintf("%s not found; games use their full names and no logo", path), nil)
			return images, &w, nil
		}
		return nil, nil, fmt.Errorf("read images: %w", err)
	}
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "pack", "images", "images file is not a JSON object of games", err)
	}
	return images, nil, nil
}

// CategoryLabel renders a category for display, such as "majoritems" →
// "Majoritems" or "bgm" → "Bgm". An empty category is shown as "Uncategorized".
func CategoryLabel(category string) string {
	if category == "" {
		return "Uncategorized"
	}
	return cases.Title(language.English).String(category)
}

// SortedCategories returns the report's category keys in display order.
func (r *Report) SortedCategories() []string {
	keys := make([]string, 0, len(r.Categories))
	for key := range r.Categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
