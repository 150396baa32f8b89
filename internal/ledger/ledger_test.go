package ledger_test

import (
	"context"
	"testing"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMapLists(t *testing.T) {
	paths, hashes := ledger.FileMap{"b": "2", "a/c": "1", "a": "0"}.Lists()
	assert.Equal(t, []string{"a", "a/c", "b"}, paths)
	assert.Equal(t, []string{"0", "1", "2"}, hashes)

	paths, hashes = ledger.FileMap(nil).Lists()
	assert.Empty(t, paths)
	assert.Empty(t, hashes)
}

func TestCommitParents(t *testing.T) {
	c := ledger.Commit{ParentID: 3}
	assert.Equal(t, []int64{3}, c.Parents())

	c.HasSecondParent = true
	c.SecondParentID = 5
	assert.Equal(t, []int64{3, 5}, c.Parents())
}

func TestBranchCanWrite(t *testing.T) {
	b := ledger.Branch{Owner: "alice", Editors: []string{"bob"}}
	assert.True(t, b.CanWrite("alice"))
	assert.True(t, b.CanWrite("bob"))
	assert.False(t, b.CanWrite("carol"))
}

func TestCommitFiles(t *testing.T) {
	repo := ledgertest.New(t)
	id := repo.Commit(0, ledger.FileMap{"x/y.txt": "h1", "z": "h2"})

	m, err := ledger.CommitFiles(context.Background(), repo.Ledger, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.FileMap{"x/y.txt": "h1", "z": "h2"}, m)

	sets, err := ledger.CommitFileSets(context.Background(), repo.Ledger, 0, id, id)
	require.NoError(t, err)
	assert.Len(t, sets, 2)
	assert.Empty(t, sets[0])
	assert.Equal(t, m, sets[id])
}

func TestCommitFilesRejectsCorruptEntries(t *testing.T) {
	tests := []struct {
		name  string
		files []ledger.File
	}{
		{"escaping path", []ledger.File{{Path: "../etc/passwd", ContentHash: "h"}}},
		{"duplicate after cleaning", []ledger.File{{Path: "a", ContentHash: "h"}, {Path: "./a", ContentHash: "h"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := ledgertest.New(t)
			ctx := context.Background()
			var id int64
			err := repo.Store.Update(ctx, func(tx embedded.Tx) error {
				var err error
				id, err = tx.InsertCommit(repo.Address, &ledger.Commit{BranchID: 0, Author: "alice"})
				if err != nil {
					return err
				}
				for _, f := range tt.files {
					f.CommitID = id
					if _, err := tx.InsertFile(repo.Address, &f); err != nil {
						return err
					}
				}
				return nil
			})
			require.NoError(t, err)

			_, err = ledger.CommitFiles(ctx, repo.Ledger, id)
			assert.ErrorIs(t, err, errors.ErrInvalidState)
		})
	}
}

func TestCommitFilesPropagatesFailure(t *testing.T) {
	repo := ledgertest.New(t)
	id := repo.Commit(0, ledger.FileMap{"a": "h"})
	faulty := ledgertest.NewFaulty(repo.Ledger)
	faulty.FailOn("GetFile", errors.Connection("ledger down", nil))

	_, err := ledger.CommitFiles(context.Background(), faulty, id)
	assert.ErrorIs(t, err, errors.ErrConnection)
}

func TestCachedClient(t *testing.T) {
	repo := ledgertest.New(t)
	id := repo.Commit(0, ledger.FileMap{"a": "h"})
	faulty := ledgertest.NewFaulty(repo.Ledger)

	cached, err := ledger.NewCachedClient(faulty, 16)
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		c, err := cached.GetCommit(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID)
	}
	assert.Equal(t, 1, faulty.Calls("GetCommit"))

	m, err := ledger.CommitFiles(ctx, cached, id)
	require.NoError(t, err)
	_, err = ledger.CommitFiles(ctx, cached, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.FileMap{"a": "h"}, m)
	assert.Equal(t, 1, faulty.Calls("GetFile"))
	assert.Equal(t, 2, faulty.Calls("GetFilesFromCommit"))

	_, err = cached.GetCommit(ctx, 99)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = ledger.NewCachedClient(faulty, 0)
	assert.Error(t, err)
}
