// Package prune flags superseded audio references and sweeps preview files no
// current catalog entry points at.
package prune

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"candyshop/internal/artifacts"
	"candyshop/internal/catalog"
	"candyshop/internal/config"
	"candyshop/internal/fileutil"
	"candyshop/internal/logging"
	"candyshop/internal/notifications"
	"candyshop/internal/services"
)

// EntryRef points at one catalog entry.
type EntryRef struct {
	Game   string `json:"game"`
	Song   string `json:"song"`
	Index  int    `json:"index"`
	Reason string `json:"reason,omitempty"`
}

// Report summarizes one pruning pass. Counts and lists describe what was
// found; Deleted is zero on a dry run.
type Report struct {
	DryRun           bool       `json:"dry_run"`
	CandidatesFound  int        `json:"candidates_found"`
	Deleted          int        `json:"deleted"`
	Retained         int        `json:"retained"`
	MarkedPruned     int        `json:"marked_pruned"`
	Candidates       []string   `json:"candidates,omitempty"`
	MissingPreviews  []EntryRef `json:"missing_previews,omitempty"`
	MissingBinaries  []EntryRef `json:"missing_binaries,omitempty"`
	OrphanedBinaries []string   `json:"orphaned_binaries,omitempty"`
	RemovedDirs      []string   `json:"removed_dirs,omitempty"`
}

// Options adjusts a single run.
type Options struct {
	DryRun bool
}

// Service runs pruning passes over the configured content tree.
type Service struct {
	cfg      *config.Config
	store    *catalog.Store
	notifier notifications.Service
	logger   *slog.Logger
}

// New builds a pruning service. notifier may be nil.
func New(cfg *config.Config, store *catalog.Store, notifier notifications.Service, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "prune"),
	}
}

type pairKey struct{ game, song string }

// Run executes a pass while holding the catalog lock, so it never interleaves
// with an ingestion.
//
// A malformed catalog aborts the pass with ErrCatalogCorrupt: an empty view
// would make every preview look unreferenced.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun}
	err := s.store.WithLock(ctx, func() error {
		cat, warnings, err := s.store.Load()
		if err != nil {
			return err
		}
		if len(warnings) > 0 {
			return services.Wrap(services.ErrCatalogCorrupt, "prune", "load",
				"catalog file is malformed; refusing to sweep previews", nil)
		}

		entries := cat.Entries()
		reduced := reduce(entries)

		for i, entry := range entries {
			current := reduced[pairKey{entry.Game, entry.Song}]
			if entry.Pruned || entry.Audio == "" || entry.Audio == current {
				continue
			}
			if !strings.Contains(entry.Audio, s.cfg.Repository.HostLink) {
				continue
			}
			report.MarkedPruned++
			cat.MarkPruned(i)
		}
		if report.MarkedPruned > 0 {
			if err := s.store.Save(ctx, cat); err != nil {
				return err
			}
		}

		referenced := s.referencedPreviews(reduced)
		report.MissingPreviews = s.missingPreviews(entries)
		report.MissingBinaries = s.missingBinaries(entries)

		if err := s.sweepPreviews(report, referenced, opts.DryRun); err != nil {
			return err
		}
		orphans, err := s.orphanedBinaries(cat)
		if err != nil {
			return err
		}
		report.OrphanedBinaries = orphans
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("prune completed",
		logging.Bool("dry_run", report.DryRun),
		logging.Int("candidates", report.CandidatesFound),
		logging.Int("deleted", report.Deleted),
		logging.Int("retained", report.Retained),
		logging.Int("marked_pruned", report.MarkedPruned),
		logging.Int("missing_previews", len(report.MissingPreviews)),
		logging.Int("orphaned_binaries", len(report.OrphanedBinaries)),
		logging.String(logging.FieldEventType, "prune_completed"))

	if err := s.notifier.Publish(ctx, notifications.EventPruneCompleted, notifications.Payload{
		"candidates": report.CandidatesFound,
		"deleted":    report.Deleted,
		"retained":   report.Retained,
		"marked":     report.MarkedPruned,
		"dry_run":    report.DryRun,
	}); err != nil {
		logging.WarnWithContext(s.logger, "prune notification failed", "notification_failed",
			logging.Error(err),
			logging.Hint("run candyshop test-notify to check the webhook"),
			logging.Impact("the prune summary was not posted"))
	}
	return report, nil
}

// reduce keeps the last Audio value seen for each (Game, Song) pair. Entries
// without Audio do not replace an earlier value.
func reduce(entries []catalog.Entry) map[pairKey]string {
	reduced := make(map[pairKey]string, len(entries))
	for _, entry := range entries {
		if entry.Audio == "" {
			continue
		}
		reduced[pairKey{entry.Game, entry.Song}] = entry.Audio
	}
	return reduced
}

func (s *Service) referencedPreviews(reduced map[pairKey]string) map[string]struct{} {
	refs := make(map[string]struct{}, len(reduced))
	for _, audio := range reduced {
		if rel, ok := artifacts.RelFromURL(s.cfg.Repository.RawBaseURL, audio); ok {
			refs[rel] = struct{}{}
		}
	}
	return refs
}

// missingPreviews lists entries whose locally hosted preview is absent. A
// later entry for the same pair whose preview exists clears earlier reports.
func (s *Service) missingPreviews(entries []catalog.Entry) []EntryRef {
	var vacant []EntryRef
	for i, entry := range entries {
		if entry.Audio == "" {
			continue
		}
		rel, ok := artifacts.RelFromURL(s.cfg.Repository.RawBaseURL, entry.Audio)
		if !ok {
			continue
		}
		if !fileutil.Exists(s.abs(rel)) {
			vacant = append(vacant, EntryRef{Game: entry.Game, Song: entry.Song, Index: i})
			continue
		}
		kept := vacant[:0]
		for _, v := range vacant {
			if v.Game != entry.Game || v.Song != entry.Song {
				kept = append(kept, v)
			}
		}
		vacant = kept
	}
	return vacant
}

func (s *Service) missingBinaries(entries []catalog.Entry) []EntryRef {
	var missing []EntryRef
	for i, entry := range entries {
		switch {
		case entry.Pruned:
		case entry.Binary == "":
			missing = append(missing, EntryRef{Game: entry.Game, Song: entry.Song, Index: i, Reason: "no binary recorded"})
		case !fileutil.Exists(s.abs(entry.Binary)):
			missing = append(missing, EntryRef{Game: entry.Game, Song: entry.Song, Index: i, Reason: "binary not found"})
		}
	}
	return missing
}

func (s *Service) sweepPreviews(report *Report, referenced map[string]struct{}, dryRun bool) error {
	files, err := s.listFiles(s.cfg.Paths.PreviewsDir)
	if err != nil {
		return err
	}
	for _, rel := range files {
		if _, ok := referenced[rel]; ok {
			report.Retained++
			continue
		}
		report.CandidatesFound++
		report.Candidates = append(report.Candidates, rel)
		if dryRun {
			s.logger.Info("preview would be deleted",
				logging.String("path", rel),
				logging.String(logging.FieldEventType, "prune_candidate"))
			continue
		}
		if err := os.Remove(s.abs(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrArtifactWrite, "prune", "delete", fmt.Sprintf("could not delete %s", rel), err)
		}
		report.Deleted++
		s.logger.Info("preview deleted",
			logging.String("path", rel),
			logging.String(logging.FieldEventType, "prune_deleted"))
	}
	if dryRun {
		return nil
	}
	removed, err := removeEmptyDirs(s.abs(s.cfg.Paths.PreviewsDir))
	if err != nil {
		return err
	}
	for _, dir := range removed {
		if rel, relErr := filepath.Rel(s.cfg.Paths.RepoRoot, dir); relErr == nil {
			report.RemovedDirs = append(report.RemovedDirs, filepath.ToSlash(rel))
		}
	}
	return nil
}

// orphanedBinaries lists stored binaries no entry references. They are
// reported and never deleted.
func (s *Service) orphanedBinaries(cat *catalog.Catalog) ([]string, error) {
	files, err := s.listFiles(s.cfg.Paths.BinariesDir)
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, rel := range files {
		if !cat.ReferencesBinary(rel) {
			orphans = append(orphans, rel)
		}
	}
	return orphans, nil
}

// listFiles returns repository-relative slash paths of regular files under
// dir, sorted. A missing directory yields no files.
func (s *Service) listFiles(dir string) ([]string, error) {
	root := s.abs(dir)
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.cfg.Paths.RepoRoot, p)
		if err != nil {
			return err
		}
		out = append(out, path.Clean(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) abs(rel string) string {
	return filepath.Join(s.cfg.Paths.RepoRoot, filepath.FromSlash(rel))
}

// removeEmptyDirs deletes empty directories below root, deepest first, and
// keeps root itself.
func removeEmptyDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() && p != root {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	var removed []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("read %s: %w", dir, err)
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", dir, err)
		}
		removed = append(removed, dir)
	}
	sort.Strings(removed)
	return removed, nil
}
