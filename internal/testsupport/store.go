package testsupport

import (
	"context"
	"os"
	"testing"

	"candyshop/internal/catalog"
	"candyshop/internal/config"
	"candyshop/internal/ledger"
	"candyshop/internal/logging"
)

// MustOpenLedger opens the ledger for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// CatalogStore returns a store for the configured catalog file.
func CatalogStore(cfg *config.Config) *catalog.Store {
	return catalog.NewStore(cfg.CatalogPath(), logging.NewNop())
}

// WriteCatalog persists entries as the configured catalog file.
func WriteCatalog(t testing.TB, cfg *config.Config, entries ...catalog.Entry) {
	t.Helper()

	data, err := catalog.Encode(entries)
	if err != nil {
		t.Fatalf("encode catalog: %v", err)
	}
	if err := os.WriteFile(cfg.CatalogPath(), data, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

// LoadCatalog reads the configured catalog file and fails on warnings.
func LoadCatalog(t testing.TB, cfg *config.Config) *catalog.Catalog {
	t.Helper()

	cat, warnings, err := CatalogStore(cfg).Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(warnings) > 0 {
		t.Fatalf("unexpected catalog warnings: %v", warnings)
	}
	return cat
}

// MustRecord inserts a ledger record.
func MustRecord(t testing.TB, store *ledger.Store, rec ledger.Record) ledger.Record {
	t.Helper()

	out, err := store.Record(context.Background(), rec)
	if err != nil {
		t.Fatalf("ledger.Record: %v", err)
	}
	return out
}
