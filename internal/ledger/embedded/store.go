package embedded

import (
	"context"

	"ledgervcs/internal/ledger"
)

// Store persists ledger records. Implementations run fn inside a single
// transaction and discard every write of an Update whose fn fails.
type Store interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the record-level view of a store inside one transaction. Lookups of
// missing records return a NOT_FOUND error. Insert methods assign the next
// contiguous ID of their kind within the repository, starting at 0.
type Tx interface {
	GetRepository(address string) (*ledger.Repository, error)
	InsertRepository(r *ledger.Repository) error

	GetBranch(address string, id int64) (*ledger.Branch, error)
	InsertBranch(address string, b *ledger.Branch) (int64, error)
	UpdateBranch(address string, b *ledger.Branch) error
	CountBranches(address string) (int64, error)

	GetCommit(address string, id int64) (*ledger.Commit, error)
	InsertCommit(address string, c *ledger.Commit) (int64, error)
	CountCommits(address string) (int64, error)
	// CommitsOnBranch lists commit IDs in ascending order.
	CommitsOnBranch(address string, branchID int64) ([]int64, error)

	GetFile(address string, id int64) (*ledger.File, error)
	InsertFile(address string, f *ledger.File) (int64, error)
	// FilesOfCommit lists file IDs in insertion order.
	FilesOfCommit(address string, commitID int64) ([]int64, error)
}
