package workspace

import (
	"context"
	"fmt"
	"sort"

	"ledgervcs/internal/ledger"
	"ledgervcs/internal/repository"
	"ledgervcs/shared/types"

	"github.com/samber/lo"
)

// Status compares the working tree with the current commit of sess.
func Status(ctx context.Context, sess *repository.Session) (*shared.Status, error) {
	d := sess.Descriptor
	recorded, err := ledger.CommitFiles(ctx, sess.Ledger, d.CurrentCommitID)
	if err != nil {
		return nil, fmt.Errorf("reading commit %d: %w", d.CurrentCommitID, err)
	}

	entries, err := Scan(sess.Root)
	if err != nil {
		return nil, err
	}
	current, err := HashTree(sess.Root)
	if err != nil {
		return nil, err
	}
	sizes := lo.SliceToMap(entries, func(e Entry) (string, int64) { return e.Path, e.Size })

	return &shared.Status{
		BranchID: d.CurrentBranchID,
		CommitID: d.CurrentCommitID,
		Changes:  Compare(recorded, current, sizes),
	}, nil
}

// Compare lists the paths whose hash differs between old and new, sorted by
// path.
func Compare(old, new ledger.FileMap, sizes map[string]int64) []shared.Change {
	paths := lo.Uniq(append(lo.Keys(old), lo.Keys(new)...))
	changes := []shared.Change{}
	for _, p := range paths {
		oldHash, inOld := old[p]
		newHash, inNew := new[p]
		c := shared.Change{Path: p, OldHash: oldHash, NewHash: newHash, Size: sizes[p]}
		switch {
		case !inOld:
			c.Type = shared.ChangeAdded
		case !inNew:
			c.Type = shared.ChangeDeleted
		case oldHash != newHash:
			c.Type = shared.ChangeModified
		default:
			continue
		}
		changes = append(changes, c)
	}
	sortChanges(changes)
	return changes
}

func sortChanges(changes []shared.Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
}
