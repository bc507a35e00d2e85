package prune_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"candyshop/internal/catalog"
	"candyshop/internal/config"
	"candyshop/internal/logging"
	"candyshop/internal/prune"
	"candyshop/internal/services"
	"candyshop/internal/testsupport"
)

const raw = testsupport.RawBaseURL

func write(t *testing.T, cfg *config.Config, rel string) {
	t.Helper()
	testsupport.WriteArtifact(t, cfg, rel, []byte("data"))
}

func exists(cfg *config.Config, rel string) bool {
	_, err := os.Stat(filepath.Join(cfg.Paths.RepoRoot, filepath.FromSlash(rel)))
	return err == nil
}

// seed builds a content tree with a superseded remote link, a current local
// preview, an unreferenced preview, and an orphaned binary.
func seed(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteCatalog(t, cfg,
		catalog.Entry{Game: "G", Song: "S", Binary: "binaries/G/S.bin", Audio: "https://github.com/owner/shop/raw/main/previews/G/S.mp3"},
		catalog.Entry{Game: "G", Song: "S", Binary: "binaries/G/S (REV 1).bin", Audio: raw + "previews/G/S%20%28REV%201%29.mp3"},
		catalog.Entry{Game: "Other", Song: "Tune", Binary: "binaries/Other/Tune.bin", Audio: "https://youtu.be/abc"},
		catalog.Entry{Game: "NoBin", Song: "X"},
	)
	write(t, cfg, "binaries/G/S.bin")
	write(t, cfg, "binaries/G/S (REV 1).bin")
	write(t, cfg, "binaries/Other/Tune.bin")
	write(t, cfg, "binaries/Stray/Lost.bin")
	write(t, cfg, "previews/G/S.mp3")
	write(t, cfg, "previews/G/S (REV 1).mp3")
	write(t, cfg, "previews/Old/Gone.wav")
	return cfg
}

func newService(cfg *config.Config) *prune.Service {
	return prune.New(cfg, testsupport.CatalogStore(cfg), nil, logging.NewNop())
}

func TestDryRunMarksButKeepsFiles(t *testing.T) {
	cfg := seed(t)

	report, err := newService(cfg).Run(context.Background(), prune.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.CandidatesFound != 2 || report.Deleted != 0 || report.Retained != 1 || report.MarkedPruned != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if strings.Join(report.Candidates, ",") != "previews/G/S.mp3,previews/Old/Gone.wav" {
		t.Fatalf("unexpected candidates %v", report.Candidates)
	}
	if !exists(cfg, "previews/G/S.mp3") || !exists(cfg, "previews/Old/Gone.wav") {
		t.Fatal("dry run must not delete")
	}
	cat := testsupport.LoadCatalog(t, cfg)
	first, _ := cat.At(0)
	second, _ := cat.At(1)
	if !first.Pruned || second.Pruned {
		t.Fatalf("dry run must still persist pruned flags: %+v %+v", first, second)
	}
}

func TestApplyDeletesAndMarks(t *testing.T) {
	cfg := seed(t)
	svc := newService(cfg)

	report, err := svc.Run(context.Background(), prune.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Deleted != 2 || report.CandidatesFound != 2 || report.Retained != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if exists(cfg, "previews/G/S.mp3") || exists(cfg, "previews/Old/Gone.wav") {
		t.Fatal("unreferenced previews should be deleted")
	}
	if !exists(cfg, "previews/G/S (REV 1).mp3") {
		t.Fatal("current preview must be retained")
	}
	if exists(cfg, "previews/Old") {
		t.Fatal("empty preview directory should be removed")
	}
	if !exists(cfg, "previews") {
		t.Fatal("preview root must be kept")
	}

	cat := testsupport.LoadCatalog(t, cfg)
	first, _ := cat.At(0)
	second, _ := cat.At(1)
	third, _ := cat.At(2)
	if !first.Pruned {
		t.Fatal("superseded hosted link should be marked pruned")
	}
	if second.Pruned || third.Pruned {
		t.Fatal("current and single entries must not be marked")
	}

	if strings.Join(report.OrphanedBinaries, ",") != "binaries/Stray/Lost.bin" {
		t.Fatalf("unexpected orphans %v", report.OrphanedBinaries)
	}
	if !exists(cfg, "binaries/Stray/Lost.bin") {
		t.Fatal("orphaned binaries are never deleted")
	}
	if len(report.MissingBinaries) != 1 || report.MissingBinaries[0].Game != "NoBin" || report.MissingBinaries[0].Index != 3 {
		t.Fatalf("unexpected missing binaries %+v", report.MissingBinaries)
	}
}

func TestSecondRunIsIdempotent(t *testing.T) {
	cfg := seed(t)
	svc := newService(cfg)
	ctx := context.Background()

	if _, err := svc.Run(ctx, prune.Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, _ := os.ReadFile(cfg.CatalogPath())
	report, err := svc.Run(ctx, prune.Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Deleted != 0 || report.MarkedPruned != 0 || report.CandidatesFound != 0 {
		t.Fatalf("second run changed state: %+v", report)
	}
	after, _ := os.ReadFile(cfg.CatalogPath())
	if string(before) != string(after) {
		t.Fatal("second run rewrote the catalog")
	}
}

func TestMissingPreviewClearedByLaterEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteCatalog(t, cfg,
		catalog.Entry{Game: "A", Song: "One", Binary: "binaries/A/One.bin", Audio: raw + "previews/A/One.mp3"},
		catalog.Entry{Game: "B", Song: "Two", Binary: "binaries/B/Two.bin", Audio: raw + "previews/B/Two.mp3"},
		catalog.Entry{Game: "A", Song: "One", Binary: "binaries/A/One (REV 1).bin", Audio: raw + "previews/A/One%20%28REV%201%29.mp3"},
	)
	write(t, cfg, "previews/A/One (REV 1).mp3")

	report, err := newService(cfg).Run(context.Background(), prune.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.MissingPreviews) != 1 {
		t.Fatalf("expected one missing preview, got %+v", report.MissingPreviews)
	}
	if got := report.MissingPreviews[0]; got.Game != "B" || got.Song != "Two" || got.Index != 1 {
		t.Fatalf("unexpected missing preview %+v", got)
	}
}

func TestCorruptCatalogAbortsSweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.WriteFile(cfg.CatalogPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	write(t, cfg, "previews/G/S.mp3")

	_, err := newService(cfg).Run(context.Background(), prune.Options{})
	if !errors.Is(err, services.ErrCatalogCorrupt) {
		t.Fatalf("expected ErrCatalogCorrupt, got %v", err)
	}
	if !exists(cfg, "previews/G/S.mp3") {
		t.Fatal("no preview may be deleted when the catalog is unreadable")
	}
}

func TestMissingDirectoriesAreEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	report, err := newService(cfg).Run(context.Background(), prune.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.CandidatesFound != 0 || report.Retained != 0 || len(report.OrphanedBinaries) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}
