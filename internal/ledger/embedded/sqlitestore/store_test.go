package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/sqlitestore"
	"ledgervcs/internal/ledger/embedded/sqlitestore/migrations"
	"ledgervcs/internal/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ledgertest.RunStoreSuite(t, func(t *testing.T) embedded.Store {
		s, err := sqlitestore.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	d := embedded.NewDeployer(s, "alice", nil)
	addr, err := d.Deploy(ctx, "demo")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlitestore.Open(path)
	require.NoError(t, err)
	defer s.Close()

	l, err := embedded.NewDeployer(s, "alice", nil).Open(ctx, addr)
	require.NoError(t, err)
	name, err := l.GetRepositoryName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
}

func TestMigrationsVersion(t *testing.T) {
	db, err := sqlitestore.OpenConnection(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, migrations.MigrateUp(db))
	require.NoError(t, migrations.MigrateUp(db))

	version, dirty, err := migrations.Version(db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
