package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"candyshop/internal/catalog"
	"candyshop/internal/logging"
	"candyshop/internal/services"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func sampleEntries() []catalog.Entry {
	return []catalog.Entry{
		{
			Game:       "Donkey Kong 64",
			Song:       "Jungle Japes",
			Category:   "bgm",
			Composers:  "Grant Kirkhope",
			Converters: "Ballaam",
			Binary:     "binaries/Donkey Kong 64/Jungle Japes.bin",
			Audio:      "https://github.com/theballaam96/candys-shop/raw/main/previews/Donkey%20Kong%2064/Jungle%20Japes.mp3",
			Duration:   floatPtr(93.5),
			Tracks:     intPtr(8),
			Tags:       []string{"jungle", "upbeat"},
			Verified:   true,
			Date:       "2026-01-02T03:04:05Z",
		},
		{
			Game:            "Banjo-Kazooie",
			Song:            "Mumbo's Mountain",
			Category:        "bgm",
			Verified:        true,
			Date:            "2026-01-03T00:00:00Z",
			UpdateNotes:     "Fixed loop point",
			AdditionalNotes: "Uses <echo> & reverb",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	store := catalog.NewStore(path, logging.NewNop())

	cat, warnings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 || cat.Len() != 0 {
		t.Fatalf("expected empty catalog without warnings, got %d entries %v", cat.Len(), warnings)
	}
	for _, entry := range sampleEntries() {
		cat.Append(entry)
	}
	before := cat.Entries()
	if err := store.Save(context.Background(), cat); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, warnings, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !reflect.DeepEqual(before, reloaded.Entries()) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter  %+v", before, reloaded.Entries())
	}
	if reloaded.Version() != cat.Version() {
		t.Fatal("expected versions to match after save and reload")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "[\n  {\n    \"Game\": \"Donkey Kong 64\",") {
		t.Fatalf("unexpected layout: %q", text[:60])
	}
	if !strings.Contains(text, `"Update Notes": "Fixed loop point"`) {
		t.Fatalf("expected spaced note key, got %s", text)
	}
	if !strings.Contains(text, "<echo> & reverb") {
		t.Fatalf("expected unescaped html characters, got %s", text)
	}
}

func TestLoadPreservesUnknownAndMistypedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	raw := `[
  {"Game": "G", "Song": "S", "Tracks": "3-4", "Verified": false, "Video": {"id": "abc"}}
]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := catalog.NewStore(path, nil)
	cat, _, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entry, ok := cat.At(0)
	if !ok {
		t.Fatal("expected one entry")
	}
	if entry.Tracks != nil {
		t.Fatalf("expected mistyped tracks to stay raw, got %v", *entry.Tracks)
	}
	if string(entry.Extra["Tracks"]) != `"3-4"` || string(entry.Extra["Video"]) != `{"id":"abc"}` {
		t.Fatalf("unexpected extras: %v", entry.Extra)
	}

	if err := store.Save(context.Background(), cat); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(path)
	for _, want := range []string{`"Tracks": "3-4"`, `"Verified": false`, `"id": "abc"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in saved catalog:\n%s", want, data)
		}
	}
}

func TestLoadMalformedCatalogYieldsEmptyWithWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.json")
	if err := os.WriteFile(path, []byte(`[{"Game": "G",`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := catalog.NewStore(path, nil)
	cat, warnings, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cat.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d", cat.Len())
	}
	if len(warnings) != 1 || warnings[0].Code != "catalog_corrupt" {
		t.Fatalf("expected catalog_corrupt warning, got %v", warnings)
	}

	cat.Append(catalog.Entry{Game: "New", Song: "Entry"})
	if err := store.Save(context.Background(), cat); err != nil {
		t.Fatalf("Save: %v", err)
	}
	backups, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(backups) != 1 {
		t.Fatalf("expected one corrupt backup, got %v (%v)", backups, err)
	}
	preserved, _ := os.ReadFile(backups[0])
	if string(preserved) != `[{"Game": "G",` {
		t.Fatalf("backup content mismatch: %q", preserved)
	}
}

func TestRepeatedCorruptionKeepsEveryBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	store := catalog.NewStore(path, nil)

	for _, broken := range []string{"[{first", "[{second"} {
		if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		cat, _, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if err := store.Save(context.Background(), cat); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	backups, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(backups) != 2 {
		t.Fatalf("expected two backups, got %v (%v)", backups, err)
	}
	seen := map[string]bool{}
	for _, backup := range backups {
		data, _ := os.ReadFile(backup)
		seen[string(data)] = true
	}
	if !seen["[{first"] || !seen["[{second"] {
		t.Fatalf("backups lost content: %v", seen)
	}
}

func TestSaveDetectsConcurrentModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	first := catalog.NewStore(path, nil)
	second := catalog.NewStore(path, nil)

	a, _, _ := first.Load()
	b, _, _ := second.Load()

	a.Append(catalog.Entry{Game: "G", Song: "A"})
	if err := first.Save(context.Background(), a); err != nil {
		t.Fatalf("first save: %v", err)
	}

	b.Append(catalog.Entry{Game: "G", Song: "B"})
	err := second.Save(context.Background(), b)
	if !errors.Is(err, services.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}

	reloaded, _, _ := first.Load()
	if reloaded.Len() != 1 {
		t.Fatalf("expected first writer's entry to survive, got %d entries", reloaded.Len())
	}
}

func TestWithLockIsReentrantForSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	store := catalog.NewStore(path, nil)
	err := store.WithLock(context.Background(), func() error {
		cat, _, err := store.Load()
		if err != nil {
			return err
		}
		cat.Append(catalog.Entry{Game: "G", Song: "S"})
		return store.Save(context.Background(), cat)
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected catalog written: %v", err)
	}
}

func TestWithLockTimesOutWhileAnotherStoreHoldsIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	holder := catalog.NewStore(path, nil)
	waiter := catalog.NewStore(path, nil)

	err := holder.WithLock(context.Background(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()
		return waiter.WithLock(ctx, func() error { return nil })
	})
	if !errors.Is(err, services.ErrConcurrentModification) {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestMarkPruned(t *testing.T) {
	cat := catalog.New(sampleEntries()...)
	if !cat.MarkPruned(0) {
		t.Fatal("expected first mark to change the flag")
	}
	if cat.MarkPruned(0) {
		t.Fatal("expected second mark to be a no-op")
	}
	if cat.MarkPruned(5) {
		t.Fatal("expected out-of-range index to be ignored")
	}
	entry, _ := cat.At(0)
	if !entry.Pruned {
		t.Fatal("expected entry to be pruned")
	}
}
