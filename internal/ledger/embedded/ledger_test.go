package embedded_test

import (
	"context"
	"testing"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/memstore"
	"ledgervcs/internal/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	l := repo.Ledger

	name, err := l.GetRepositoryName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)

	master, err := l.GetBranch(ctx, ledger.MasterBranchID)
	require.NoError(t, err)
	assert.Equal(t, "master", master.Name)
	assert.Equal(t, ledgertest.Owner, master.Owner)
	assert.Empty(t, master.Editors)

	root, err := l.GetCommit(ctx, ledger.RootCommitID)
	require.NoError(t, err)
	assert.Equal(t, "Initial Commit", root.Comment)
	assert.Equal(t, ledgertest.Epoch.Unix(), root.Timestamp)

	n, err := l.GetFilesCount(ctx, ledger.RootCommitID)
	require.NoError(t, err)
	assert.Zero(t, n)

	head, err := l.MostRecentCommit(ctx, ledger.MasterBranchID)
	require.NoError(t, err)
	assert.Equal(t, ledger.RootCommitID, head)
}

func TestDeployValidation(t *testing.T) {
	ctx := context.Background()

	_, err := embedded.NewDeployer(memstore.New(), "alice", nil).Deploy(ctx, "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = embedded.NewDeployer(memstore.New(), "", nil).Deploy(ctx, "demo")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestConnectUnknownAddress(t *testing.T) {
	d := embedded.NewDeployer(memstore.New(), "alice", nil)
	_, err := d.Connect(context.Background(), "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMakeCommit(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	l := repo.Ledger

	err := l.MakeCommit(ctx, 0, 0, "add files", []string{"b.txt", "dir/a.txt"}, []string{"hb", "ha"})
	require.NoError(t, err)

	c, err := l.GetCommit(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.BranchID)
	assert.Equal(t, int64(0), c.ParentID)
	assert.False(t, c.HasSecondParent)
	assert.Equal(t, ledgertest.Owner, c.Author)
	assert.Equal(t, "add files", c.Comment)

	assert.Equal(t, ledger.FileMap{"b.txt": "hb", "dir/a.txt": "ha"}, repo.Files(1))
	assert.Equal(t, int64(1), repo.Head(0))

	all, err := l.GetCommitCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all)
}

func TestMakeCommitRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		account string
		branch  int64
		parent  int64
		paths   []string
		hashes  []string
		want    error
	}{
		{"stranger", "mallory", 0, 0, []string{"a"}, []string{"h"}, errors.ErrUnauthorized},
		{"missing branch", ledgertest.Owner, 7, 0, []string{"a"}, []string{"h"}, errors.ErrNotFound},
		{"missing parent", ledgertest.Owner, 0, 9, []string{"a"}, []string{"h"}, errors.ErrNotFound},
		{"length mismatch", ledgertest.Owner, 0, 0, []string{"a", "b"}, []string{"h"}, errors.ErrValidation},
		{"reserved path", ledgertest.Owner, 0, 0, []string{".repodata.json"}, []string{"h"}, errors.ErrValidation},
		{"escaping path", ledgertest.Owner, 0, 0, []string{"../x"}, []string{"h"}, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := ledgertest.New(t)
			err := repo.As(tt.account).MakeCommit(ctx, tt.branch, tt.parent, "c", tt.paths, tt.hashes)
			assert.ErrorIs(t, err, tt.want)

			n, err := repo.Ledger.GetCommitCount(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestMakeCommitMultiParent(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	dev := repo.Fork("dev", 0)
	c1 := repo.Commit(dev, ledger.FileMap{"a": "h1"})

	err := repo.Ledger.MakeCommitMultiParent(ctx, 0, 0, c1, "merge", []string{"a"}, []string{"h1"})
	require.NoError(t, err)

	c, err := repo.Ledger.GetCommit(ctx, c1+1)
	require.NoError(t, err)
	assert.True(t, c.HasSecondParent)
	assert.Equal(t, []int64{0, c1}, c.Parents())

	err = repo.Ledger.MakeCommitMultiParent(ctx, 0, 0, 99, "merge", nil, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestForkNewBranch(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	repo.Commit(0, ledger.FileMap{"a": "h1"})

	bob := repo.As("bob")
	require.NoError(t, bob.ForkNewBranch(ctx, "feature", 0))

	b, err := repo.Ledger.GetBranch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "feature", b.Name)
	assert.Equal(t, "bob", b.Owner)
	assert.Equal(t, int64(0), b.ParentBranchID)
	assert.Equal(t, int64(1), b.ForkCommitID)

	// an empty branch reports its fork point
	assert.Equal(t, int64(1), repo.Head(1))

	n, err := repo.Ledger.GetCommitCount(ctx, &b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, repo.Ledger.ForkNewBranch(ctx, "x", 5), errors.ErrNotFound)
	assert.ErrorIs(t, repo.Ledger.ForkNewBranch(ctx, "", 0), errors.ErrValidation)
}

func TestEditors(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	bob := repo.As("bob")

	assert.ErrorIs(t, bob.MakeCommit(ctx, 0, 0, "c", nil, nil), errors.ErrUnauthorized)
	assert.ErrorIs(t, bob.AddEditorToBranch(ctx, 0, "bob"), errors.ErrUnauthorized)

	require.NoError(t, repo.Ledger.AddEditorToBranch(ctx, 0, "bob"))
	require.NoError(t, repo.Ledger.AddEditorToBranch(ctx, 0, "bob"))

	editors, err := repo.Ledger.GetBranchEditors(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, editors)

	require.NoError(t, bob.MakeCommit(ctx, 0, 0, "by bob", nil, nil))
	// editors may commit but not manage editors
	assert.ErrorIs(t, bob.AddEditorToBranch(ctx, 0, "carol"), errors.ErrUnauthorized)

	require.NoError(t, repo.Ledger.RemoveEditorFromBranch(ctx, 0, "bob"))
	editors, err = repo.Ledger.GetBranchEditors(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, editors)
	assert.ErrorIs(t, bob.MakeCommit(ctx, 0, 0, "c", nil, nil), errors.ErrUnauthorized)
}

func TestSquashMerge(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	repo.Commit(0, ledger.FileMap{"a": "h1"})
	dev := repo.Fork("dev", 0)
	repo.Commit(dev, ledger.FileMap{"a": "h2"})
	head := repo.Commit(dev, ledger.FileMap{"a": "h2", "b": "h3"})

	require.NoError(t, repo.Ledger.SquashMerge(ctx, 0, dev, "squash"))

	squashed := repo.Head(0)
	assert.Greater(t, squashed, head)
	c, err := repo.Ledger.GetCommit(ctx, squashed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ParentID)
	assert.False(t, c.HasSecondParent)
	assert.Equal(t, repo.Files(head), repo.Files(squashed))
}

func TestSquashMergeRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to squash", func(t *testing.T) {
		repo := ledgertest.New(t)
		dev := repo.Fork("dev", 0)
		assert.ErrorIs(t, repo.Ledger.SquashMerge(ctx, 0, dev, "s"), errors.ErrInvalidState)
	})

	t.Run("parent moved on", func(t *testing.T) {
		repo := ledgertest.New(t)
		dev := repo.Fork("dev", 0)
		repo.Commit(dev, ledger.FileMap{"a": "h1"})
		repo.Commit(0, ledger.FileMap{"b": "h2"})
		assert.ErrorIs(t, repo.Ledger.SquashMerge(ctx, 0, dev, "s"), errors.ErrInvalidState)
	})

	t.Run("same branch", func(t *testing.T) {
		repo := ledgertest.New(t)
		assert.ErrorIs(t, repo.Ledger.SquashMerge(ctx, 0, 0, "s"), errors.ErrValidation)
	})

	t.Run("not a writer", func(t *testing.T) {
		repo := ledgertest.New(t)
		dev := repo.Fork("dev", 0)
		repo.Commit(dev, ledger.FileMap{"a": "h1"})
		assert.ErrorIs(t, repo.As("bob").SquashMerge(ctx, 0, dev, "s"), errors.ErrUnauthorized)
	})

	t.Run("parent reachable through a merge", func(t *testing.T) {
		repo := ledgertest.New(t)
		dev := repo.Fork("dev", 0)
		c1 := repo.Commit(dev, ledger.FileMap{"a": "h1"})
		p := repo.Commit(0, ledger.FileMap{"b": "h2"})
		repo.Commit(dev, ledger.FileMap{"a": "h1", "b": "h2"}, c1, p)
		assert.NoError(t, repo.Ledger.SquashMerge(ctx, 0, dev, "s"))
	})
}

func TestCommitsFromBranch(t *testing.T) {
	ctx := context.Background()
	repo := ledgertest.New(t)
	dev := repo.Fork("dev", 0)
	repo.Commit(dev, nil)
	repo.Commit(0, nil)
	repo.Commit(dev, nil)

	ids, err := repo.Ledger.GetCommitsFromBranch(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	n, err := repo.Ledger.GetBranchCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Ledger.GetCommitsFromBranch(ctx, 42)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = repo.Ledger.GetFilesFromCommit(ctx, 42)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
