package embedded

import (
	"context"
	"fmt"
	"slices"
	"time"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/validation"

	"go.uber.org/zap"
)

const (
	masterBranchName = "master"
	rootCommitText   = "Initial Commit"
)

// Ledger enforces the repository rules over a Store on behalf of one account:
//   - IDs are contiguous per repository and kind, starting at 0.
//   - the owner and editors of a branch may commit to it or squash into it.
//   - anyone may fork a branch; only its owner manages editors.
//   - a squash requires the parent head to be in the child head's history.
type Ledger struct {
	store   Store
	address string
	account string
	now     func() time.Time
	logger  *zap.Logger
}

func (l *Ledger) Address() string { return l.address }
func (l *Ledger) Account() string { return l.account }

func (l *Ledger) GetBranch(ctx context.Context, id int64) (*ledger.Branch, error) {
	var b *ledger.Branch
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		b, err = tx.GetBranch(l.address, id)
		return err
	})
	return b, err
}

func (l *Ledger) GetCommit(ctx context.Context, id int64) (*ledger.Commit, error) {
	var c *ledger.Commit
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		c, err = tx.GetCommit(l.address, id)
		return err
	})
	return c, err
}

func (l *Ledger) GetFile(ctx context.Context, id int64) (*ledger.File, error) {
	var f *ledger.File
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		f, err = tx.GetFile(l.address, id)
		return err
	})
	return f, err
}

func (l *Ledger) GetBranchCount(ctx context.Context) (int64, error) {
	var n int64
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		n, err = tx.CountBranches(l.address)
		return err
	})
	return n, err
}

func (l *Ledger) GetCommitCount(ctx context.Context, branchID *int64) (int64, error) {
	var n int64
	err := l.store.View(ctx, func(tx Tx) error {
		if branchID == nil {
			var err error
			n, err = tx.CountCommits(l.address)
			return err
		}
		if _, err := tx.GetBranch(l.address, *branchID); err != nil {
			return err
		}
		ids, err := tx.CommitsOnBranch(l.address, *branchID)
		n = int64(len(ids))
		return err
	})
	return n, err
}

func (l *Ledger) GetFilesCount(ctx context.Context, commitID int64) (int64, error) {
	ids, err := l.GetFilesFromCommit(ctx, commitID)
	return int64(len(ids)), err
}

func (l *Ledger) GetFilesFromCommit(ctx context.Context, commitID int64) ([]int64, error) {
	var ids []int64
	err := l.store.View(ctx, func(tx Tx) error {
		if _, err := tx.GetCommit(l.address, commitID); err != nil {
			return err
		}
		var err error
		ids, err = tx.FilesOfCommit(l.address, commitID)
		return err
	})
	return ids, err
}

func (l *Ledger) GetCommitsFromBranch(ctx context.Context, branchID int64) ([]int64, error) {
	var ids []int64
	err := l.store.View(ctx, func(tx Tx) error {
		if _, err := tx.GetBranch(l.address, branchID); err != nil {
			return err
		}
		var err error
		ids, err = tx.CommitsOnBranch(l.address, branchID)
		return err
	})
	return ids, err
}

func (l *Ledger) MostRecentCommit(ctx context.Context, branchID int64) (int64, error) {
	var head int64
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		head, err = mostRecent(tx, l.address, branchID)
		return err
	})
	return head, err
}

func (l *Ledger) GetRepositoryName(ctx context.Context) (string, error) {
	var name string
	err := l.store.View(ctx, func(tx Tx) error {
		r, err := tx.GetRepository(l.address)
		if err != nil {
			return err
		}
		name = r.Name
		return nil
	})
	return name, err
}

func (l *Ledger) GetBranchEditors(ctx context.Context, branchID int64) ([]string, error) {
	b, err := l.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if b.Editors == nil {
		return []string{}, nil
	}
	return b.Editors, nil
}

func (l *Ledger) MakeCommit(ctx context.Context, branchID, parentID int64, comment string, paths, hashes []string) error {
	return l.commit(ctx, branchID, parentID, nil, comment, paths, hashes)
}

func (l *Ledger) MakeCommitMultiParent(ctx context.Context, branchID, parent1, parent2 int64, comment string, paths, hashes []string) error {
	return l.commit(ctx, branchID, parent1, &parent2, comment, paths, hashes)
}

func (l *Ledger) commit(ctx context.Context, branchID, parentID int64, secondParent *int64, comment string, paths, hashes []string) error {
	normalized, err := validation.CommitFiles(paths, hashes)
	if err != nil {
		return err
	}

	var id int64
	err = l.store.Update(ctx, func(tx Tx) error {
		b, err := tx.GetBranch(l.address, branchID)
		if err != nil {
			return err
		}
		if !b.CanWrite(l.account) {
			return errors.Unauthorized(fmt.Sprintf("%s may not commit to branch %d", l.account, branchID))
		}
		if _, err := tx.GetCommit(l.address, parentID); err != nil {
			return err
		}

		c := &ledger.Commit{
			BranchID:  branchID,
			Comment:   comment,
			Timestamp: l.now().Unix(),
			Author:    l.account,
			ParentID:  parentID,
		}
		if secondParent != nil {
			if _, err := tx.GetCommit(l.address, *secondParent); err != nil {
				return err
			}
			c.HasSecondParent = true
			c.SecondParentID = *secondParent
		}

		id, err = tx.InsertCommit(l.address, c)
		if err != nil {
			return fmt.Errorf("inserting commit: %w", err)
		}
		for i, p := range normalized {
			f := &ledger.File{CommitID: id, Path: p, ContentHash: hashes[i]}
			if _, err := tx.InsertFile(l.address, f); err != nil {
				return fmt.Errorf("inserting file %s: %w", p, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Debug("commit recorded",
		zap.Int64("commit_id", id),
		zap.Int64("branch_id", branchID),
		zap.Int("count", len(normalized)),
	)
	return nil
}

func (l *Ledger) ForkNewBranch(ctx context.Context, name string, parentBranchID int64) error {
	if err := validation.Name("branch", name); err != nil {
		return err
	}

	var id int64
	err := l.store.Update(ctx, func(tx Tx) error {
		head, err := mostRecent(tx, l.address, parentBranchID)
		if err != nil {
			return err
		}
		id, err = tx.InsertBranch(l.address, &ledger.Branch{
			Name:           name,
			Owner:          l.account,
			Editors:        []string{},
			ParentBranchID: parentBranchID,
			ForkCommitID:   head,
		})
		return err
	})
	if err != nil {
		return err
	}

	l.logger.Debug("branch forked", zap.Int64("branch_id", id), zap.Int64("parent_branch_id", parentBranchID))
	return nil
}

func (l *Ledger) SquashMerge(ctx context.Context, parentBranchID, childBranchID int64, comment string) error {
	if parentBranchID == childBranchID {
		return errors.ValidationError("cannot squash a branch into itself", parentBranchID)
	}

	return l.store.Update(ctx, func(tx Tx) error {
		parent, err := tx.GetBranch(l.address, parentBranchID)
		if err != nil {
			return err
		}
		if !parent.CanWrite(l.account) {
			return errors.Unauthorized(fmt.Sprintf("%s may not merge into branch %d", l.account, parentBranchID))
		}

		parentHead, err := mostRecent(tx, l.address, parentBranchID)
		if err != nil {
			return err
		}
		childHead, err := mostRecent(tx, l.address, childBranchID)
		if err != nil {
			return err
		}
		if parentHead == childHead {
			return errors.InvalidState(fmt.Sprintf("branch %d has nothing to squash into branch %d", childBranchID, parentBranchID))
		}

		ok, err := isAncestor(tx, l.address, parentHead, childHead)
		if err != nil {
			return err
		}
		if !ok {
			return errors.InvalidState(fmt.Sprintf(
				"branch %d (head %d) is not contained in branch %d (head %d); use a three-way merge",
				parentBranchID, parentHead, childBranchID, childHead))
		}

		fileIDs, err := tx.FilesOfCommit(l.address, childHead)
		if err != nil {
			return err
		}

		id, err := tx.InsertCommit(l.address, &ledger.Commit{
			BranchID:  parentBranchID,
			Comment:   comment,
			Timestamp: l.now().Unix(),
			Author:    l.account,
			ParentID:  parentHead,
		})
		if err != nil {
			return fmt.Errorf("inserting squash commit: %w", err)
		}
		for _, fid := range fileIDs {
			f, err := tx.GetFile(l.address, fid)
			if err != nil {
				return err
			}
			if _, err := tx.InsertFile(l.address, &ledger.File{CommitID: id, Path: f.Path, ContentHash: f.ContentHash}); err != nil {
				return fmt.Errorf("copying file %s: %w", f.Path, err)
			}
		}
		return nil
	})
}

func (l *Ledger) AddEditorToBranch(ctx context.Context, branchID int64, account string) error {
	if err := validation.Account(account); err != nil {
		return err
	}
	return l.updateEditors(ctx, branchID, func(b *ledger.Branch) {
		if !b.HasEditor(account) {
			b.Editors = append(b.Editors, account)
		}
	})
}

func (l *Ledger) RemoveEditorFromBranch(ctx context.Context, branchID int64, account string) error {
	if err := validation.Account(account); err != nil {
		return err
	}
	return l.updateEditors(ctx, branchID, func(b *ledger.Branch) {
		b.Editors = slices.DeleteFunc(b.Editors, func(e string) bool { return e == account })
	})
}

func (l *Ledger) updateEditors(ctx context.Context, branchID int64, mutate func(b *ledger.Branch)) error {
	return l.store.Update(ctx, func(tx Tx) error {
		b, err := tx.GetBranch(l.address, branchID)
		if err != nil {
			return err
		}
		if b.Owner != l.account {
			return errors.Unauthorized(fmt.Sprintf("only %s may change the editors of branch %d", b.Owner, branchID))
		}
		mutate(b)
		if b.Editors == nil {
			b.Editors = []string{}
		}
		return tx.UpdateBranch(l.address, b)
	})
}

// mostRecent is the newest commit on the branch, or the commit it was forked
// from when nothing has been committed to it yet.
func mostRecent(tx Tx, address string, branchID int64) (int64, error) {
	b, err := tx.GetBranch(address, branchID)
	if err != nil {
		return 0, err
	}
	ids, err := tx.CommitsOnBranch(address, branchID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return b.ForkCommitID, nil
	}
	return slices.Max(ids), nil
}

// isAncestor reports whether ancestor is reachable from head through first
// or second parents. A commit is its own ancestor.
func isAncestor(tx Tx, address string, ancestor, head int64) (bool, error) {
	seen := map[int64]bool{}
	queue := []int64{head}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == ancestor {
			return true, nil
		}
		if seen[id] || id == ledger.RootCommitID {
			continue
		}
		seen[id] = true

		c, err := tx.GetCommit(address, id)
		if err != nil {
			return false, err
		}
		queue = append(queue, c.Parents()...)
	}
	return false, nil
}

var _ ledger.Client = (*Ledger)(nil)
