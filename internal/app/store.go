package app

import (
	"fmt"
	"path/filepath"

	"ledgervcs/internal/config"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/badgerstore"
	"ledgervcs/internal/ledger/embedded/memstore"
	"ledgervcs/internal/ledger/embedded/sqlitestore"
)

// OpenStore opens an embedded ledger store of the given driver rooted at
// dir. The caller closes it.
func OpenStore(driver, dir string) (embedded.Store, error) {
	switch driver {
	case config.LedgerBadger:
		store, err := badgerstore.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("opening badger ledger: %w", err)
		}
		return store, nil
	case config.LedgerSQLite:
		store, err := sqlitestore.Open(filepath.Join(dir, "ledger.db"))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite ledger: %w", err)
		}
		return store, nil
	case config.LedgerMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown ledger store %q", driver)
	}
}
