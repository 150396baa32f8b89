package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/config"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/memstore"
	"ledgervcs/internal/repository"
	"ledgervcs/internal/textmerge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Account = "alice"
	return NewWith(cfg, embedded.NewDeployer(memstore.New(), "alice", nil), blob.NewMemoryStore(), nil)
}

func TestInitAndOpenSession(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)
	dir := filepath.Join(t.TempDir(), "demo")

	sess, err := a.Init(ctx, dir, "demo")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sess.Descriptor.CurrentCommitID)

	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "f.txt"), []byte("x"), 0644))

	opened, err := a.OpenSession(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, dir, opened.Root)
	assert.Equal(t, sess.Descriptor.RepoAddress, opened.Descriptor.RepoAddress)

	id, err := a.Stager.Commit(ctx, opened, "first")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestInitRefusesNonEmptyDirectory(t *testing.T) {
	a := newTestApp(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0644))

	_, err := a.Init(context.Background(), dir, "demo")
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	data, err := os.ReadFile(filepath.Join(dir, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	src, err := a.Init(ctx, filepath.Join(t.TempDir(), "demo"), "demo")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src.Root, "a.txt"), []byte("hello"), 0644))
	head, err := a.Stager.Commit(ctx, src, "add a")
	require.NoError(t, err)

	parent := t.TempDir()
	sess, err := a.Clone(ctx, parent, src.Descriptor.RepoAddress)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "demo"), sess.Root)
	assert.Equal(t, head, sess.Descriptor.CurrentCommitID)

	data, err := os.ReadFile(filepath.Join(sess.Root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	d, err := repository.LoadDescriptor(sess.Root)
	require.NoError(t, err)
	assert.Equal(t, "demo", d.RepoName)

	_, err = a.Clone(ctx, parent, src.Descriptor.RepoAddress)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	_, err = a.Clone(ctx, parent, "no-such-address")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestOpenSessionOutsideRepository(t *testing.T) {
	_, err := newTestApp(t).OpenSession(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestConfiguredBackends(t *testing.T) {
	tests := []struct {
		name   string
		ledger string
		blob   string
	}{
		{"badger and safe", config.LedgerBadger, config.BlobSafe},
		{"sqlite and memory", config.LedgerSQLite, config.BlobMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Default(t.TempDir())
			cfg.Account = "alice"
			cfg.Ledger.Type = tt.ledger
			cfg.Blob.Type = tt.blob
			a := New(cfg, nil)

			sess, err := a.Init(ctx, filepath.Join(t.TempDir(), "repo"), "demo")
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(sess.Root, "f"), []byte("data"), 0644))
			_, err = a.Stager.Commit(ctx, sess, "c")
			require.NoError(t, err)

			require.NoError(t, sess.Close())
			// closing twice is harmless
			require.NoError(t, a.Close())
		})
	}
}

func TestNewMerger(t *testing.T) {
	assert.IsType(t, &textmerge.LineMerger{}, NewMerger(config.MergeConfig{Tool: config.MergeBuiltin}, nil))
	assert.IsType(t, &textmerge.ExecMerger{}, NewMerger(config.MergeConfig{Tool: config.MergeDiff3}, nil))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{config.LedgerBadger, config.LedgerSQLite, config.LedgerMemory} {
		t.Run(driver, func(t *testing.T) {
			store, err := OpenStore(driver, t.TempDir())
			require.NoError(t, err)
			defer store.Close()

			address, err := embedded.NewDeployer(store, "alice", nil).Deploy(ctx, "demo")
			require.NoError(t, err)
			assert.NotEmpty(t, address)
		})
	}

	_, err := OpenStore("postgres", t.TempDir())
	assert.Error(t, err)
}
