// Package ledgertest provides ledger fixtures for tests.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/memstore"

	"github.com/stretchr/testify/require"
)

const Owner = "alice"

// Epoch is the fixed clock of ledgers built by New.
var Epoch = time.Unix(1700000000, 0)

// Repo is a freshly deployed repository on an in-memory store.
type Repo struct {
	Store    *memstore.Store
	Deployer *embedded.Deployer
	Ledger   *embedded.Ledger
	Address  string

	t testing.TB
}

func New(t testing.TB) *Repo {
	t.Helper()
	store := memstore.New()
	return NewOn(t, store)
}

// NewOn deploys a repository named "demo" on store as Owner.
func NewOn(t testing.TB, store *memstore.Store) *Repo {
	t.Helper()
	ctx := context.Background()

	d := embedded.NewDeployer(store, Owner, nil)
	d.Now = func() time.Time { return Epoch }

	addr, err := d.Deploy(ctx, "demo")
	require.NoError(t, err)
	l, err := d.Open(ctx, addr)
	require.NoError(t, err)

	return &Repo{Store: store, Deployer: d, Ledger: l, Address: addr, t: t}
}

// As returns a ledger for the same repository acting as account.
func (r *Repo) As(account string) *embedded.Ledger {
	r.t.Helper()
	d := embedded.NewDeployer(r.Store, account, nil)
	d.Now = func() time.Time { return Epoch }
	l, err := d.Open(context.Background(), r.Address)
	require.NoError(r.t, err)
	return l
}

// Fork creates a branch off parent and returns its ID.
func (r *Repo) Fork(name string, parent int64) int64 {
	r.t.Helper()
	ctx := context.Background()
	require.NoError(r.t, r.Ledger.ForkNewBranch(ctx, name, parent))
	n, err := r.Ledger.GetBranchCount(ctx)
	require.NoError(r.t, err)
	return n - 1
}

// Commit writes a commit straight into the store, bypassing access rules, so
// tests can shape arbitrary histories. With no parents the commit goes on top
// of the branch head; a second parent makes it a merge commit.
func (r *Repo) Commit(branchID int64, files ledger.FileMap, parents ...int64) int64 {
	r.t.Helper()
	ctx := context.Background()

	if len(parents) == 0 {
		head, err := r.Ledger.MostRecentCommit(ctx, branchID)
		require.NoError(r.t, err)
		parents = []int64{head}
	}

	c := &ledger.Commit{
		BranchID:  branchID,
		Comment:   "test commit",
		Timestamp: Epoch.Unix(),
		Author:    Owner,
		ParentID:  parents[0],
	}
	if len(parents) > 1 {
		c.HasSecondParent = true
		c.SecondParentID = parents[1]
	}

	var id int64
	err := r.Store.Update(ctx, func(tx embedded.Tx) error {
		var err error
		id, err = tx.InsertCommit(r.Address, c)
		if err != nil {
			return err
		}
		paths, hashes := files.Lists()
		for i, p := range paths {
			if _, err := tx.InsertFile(r.Address, &ledger.File{CommitID: id, Path: p, ContentHash: hashes[i]}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(r.t, err)
	return id
}

// Files reads a commit's file map.
func (r *Repo) Files(commitID int64) ledger.FileMap {
	r.t.Helper()
	m, err := ledger.CommitFiles(context.Background(), r.Ledger, commitID)
	require.NoError(r.t, err)
	return m
}

// Head returns the most recent commit of branchID.
func (r *Repo) Head(branchID int64) int64 {
	r.t.Helper()
	head, err := r.Ledger.MostRecentCommit(context.Background(), branchID)
	require.NoError(r.t, err)
	return head
}
