package testsupport

import (
	"testing"

	"filescleaner/internal/config"
	"filescleaner/internal/ledger"
)

// MustOpenLedger opens the cleanup ledger for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
