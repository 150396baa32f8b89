package memstore_test

import (
	"testing"

	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/memstore"
	"ledgervcs/internal/ledger/ledgertest"
)

func TestStore(t *testing.T) {
	ledgertest.RunStoreSuite(t, func(t *testing.T) embedded.Store {
		return memstore.New()
	})
}
