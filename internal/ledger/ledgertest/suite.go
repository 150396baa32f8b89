package ledgertest

import (
	"context"
	"errors"
	"testing"

	vcserrors "ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite checks the embedded.Store contract against the store that
// open returns. open is called once per subtest.
func RunStoreSuite(t *testing.T, open func(t *testing.T) embedded.Store) {
	ctx := context.Background()

	seed := func(t *testing.T, s embedded.Store, address string) {
		t.Helper()
		err := s.Update(ctx, func(tx embedded.Tx) error {
			return tx.InsertRepository(&ledger.Repository{Address: address, Name: "demo", Owner: Owner, CreatedAt: Epoch.Unix()})
		})
		require.NoError(t, err)
	}

	t.Run("contiguous ids per kind", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")

		err := s.Update(ctx, func(tx embedded.Tx) error {
			for want := int64(0); want < 3; want++ {
				id, err := tx.InsertBranch("r1", &ledger.Branch{Name: "b", Owner: Owner, Editors: []string{}})
				require.NoError(t, err)
				assert.Equal(t, want, id)
			}
			for want := int64(0); want < 2; want++ {
				id, err := tx.InsertCommit("r1", &ledger.Commit{BranchID: 1, Author: Owner, Timestamp: Epoch.Unix()})
				require.NoError(t, err)
				assert.Equal(t, want, id)
			}
			id, err := tx.InsertFile("r1", &ledger.File{CommitID: 1, Path: "a", ContentHash: "h"})
			require.NoError(t, err)
			assert.Equal(t, int64(0), id)
			return nil
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx embedded.Tx) error {
			n, err := tx.CountBranches("r1")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			n, err = tx.CountCommits("r1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("records round trip", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")

		err := s.Update(ctx, func(tx embedded.Tx) error {
			_, err := tx.InsertBranch("r1", &ledger.Branch{Name: "master", Owner: Owner, Editors: []string{"bob", "carol"}})
			require.NoError(t, err)
			_, err = tx.InsertCommit("r1", &ledger.Commit{
				BranchID: 0, Comment: "merge", Timestamp: 42, Author: "bob",
				ParentID: 0, HasSecondParent: true, SecondParentID: 0,
			})
			require.NoError(t, err)
			_, err = tx.InsertFile("r1", &ledger.File{CommitID: 0, Path: "dir/a.txt", ContentHash: "h1"})
			return err
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx embedded.Tx) error {
			repo, err := tx.GetRepository("r1")
			require.NoError(t, err)
			assert.Equal(t, "demo", repo.Name)
			assert.Equal(t, Owner, repo.Owner)

			b, err := tx.GetBranch("r1", 0)
			require.NoError(t, err)
			assert.Equal(t, "master", b.Name)
			assert.Equal(t, []string{"bob", "carol"}, b.Editors)

			c, err := tx.GetCommit("r1", 0)
			require.NoError(t, err)
			assert.Equal(t, "merge", c.Comment)
			assert.Equal(t, int64(42), c.Timestamp)
			assert.True(t, c.HasSecondParent)

			f, err := tx.GetFile("r1", 0)
			require.NoError(t, err)
			assert.Equal(t, ledger.File{ID: 0, CommitID: 0, Path: "dir/a.txt", ContentHash: "h1"}, *f)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("missing records are not found", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")

		err := s.View(ctx, func(tx embedded.Tx) error {
			_, err := tx.GetRepository("nope")
			assert.True(t, errors.Is(err, vcserrors.ErrNotFound))
			_, err = tx.GetBranch("r1", 9)
			assert.True(t, errors.Is(err, vcserrors.ErrNotFound))
			_, err = tx.GetCommit("r1", 9)
			assert.True(t, errors.Is(err, vcserrors.ErrNotFound))
			_, err = tx.GetFile("r1", 9)
			assert.True(t, errors.Is(err, vcserrors.ErrNotFound))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("indexes keep order and repositories apart", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")
		seed(t, s, "r2")

		err := s.Update(ctx, func(tx embedded.Tx) error {
			for _, repo := range []string{"r1", "r2"} {
				_, err := tx.InsertBranch(repo, &ledger.Branch{Name: "master", Owner: Owner})
				require.NoError(t, err)
				_, err = tx.InsertBranch(repo, &ledger.Branch{Name: "dev", Owner: Owner})
				require.NoError(t, err)
			}
			for _, branch := range []int64{0, 1, 0, 0, 1} {
				_, err := tx.InsertCommit("r1", &ledger.Commit{BranchID: branch, Author: Owner})
				require.NoError(t, err)
			}
			for _, path := range []string{"z", "a", "m"} {
				_, err := tx.InsertFile("r1", &ledger.File{CommitID: 3, Path: path, ContentHash: "h"})
				require.NoError(t, err)
			}
			return nil
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx embedded.Tx) error {
			ids, err := tx.CommitsOnBranch("r1", 0)
			require.NoError(t, err)
			assert.Equal(t, []int64{0, 2, 3}, ids)

			ids, err = tx.CommitsOnBranch("r1", 1)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 4}, ids)

			ids, err = tx.CommitsOnBranch("r2", 0)
			require.NoError(t, err)
			assert.Empty(t, ids)

			ids, err = tx.FilesOfCommit("r1", 3)
			require.NoError(t, err)
			assert.Equal(t, []int64{0, 1, 2}, ids)

			n, err := tx.CountCommits("r2")
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed update leaves no trace", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")
		boom := errors.New("boom")

		err := s.Update(ctx, func(tx embedded.Tx) error {
			_, err := tx.InsertBranch("r1", &ledger.Branch{Name: "master", Owner: Owner})
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		err = s.View(ctx, func(tx embedded.Tx) error {
			n, err := tx.CountBranches("r1")
			require.NoError(t, err)
			assert.Equal(t, int64(0), n)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("update branch editors", func(t *testing.T) {
		s := open(t)
		seed(t, s, "r1")

		err := s.Update(ctx, func(tx embedded.Tx) error {
			_, err := tx.InsertBranch("r1", &ledger.Branch{Name: "master", Owner: Owner, Editors: []string{"bob"}})
			return err
		})
		require.NoError(t, err)

		err = s.Update(ctx, func(tx embedded.Tx) error {
			b, err := tx.GetBranch("r1", 0)
			require.NoError(t, err)
			b.Editors = []string{"carol", "dave"}
			return tx.UpdateBranch("r1", b)
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx embedded.Tx) error {
			b, err := tx.GetBranch("r1", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"carol", "dave"}, b.Editors)
			return nil
		})
		require.NoError(t, err)
	})
}
