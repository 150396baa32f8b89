// Package history walks the commit graph recorded in the ledger.
package history

import (
	"context"
	"fmt"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/logging"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver answers ancestry questions. It keeps no state between calls, so
// every answer reflects the ledger at the time of the call.
type Resolver struct {
	commits ledger.CommitReader
	logger  *zap.Logger
}

func NewResolver(commits ledger.CommitReader, logger *zap.Logger) *Resolver {
	return &Resolver{commits: commits, logger: logging.OrNop(logger)}
}

// History returns commitID and every commit reachable from it through first
// and second parents, in breadth-first order. The root commit 0 ends every
// walk and is never fetched.
func (r *Resolver) History(ctx context.Context, commitID int64) ([]int64, error) {
	seen := map[int64]bool{commitID: true}
	order := []int64{commitID}

	for i := 0; i < len(order); i++ {
		id := order[i]
		if id == ledger.RootCommitID {
			continue
		}
		c, err := r.commits.GetCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("walking history of commit %d: %w", commitID, err)
		}
		for _, p := range c.Parents() {
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
			}
		}
	}
	return order, nil
}

// CommonAncestor returns the highest commit ID present in both histories.
// For a single fork this is the fork point. With repeated cross merges it can
// pick a commit that is not the lowest common ancestor.
func (r *Resolver) CommonAncestor(ctx context.Context, a, b int64) (int64, error) {
	if a == b {
		return a, nil
	}

	var histA, histB []int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		histA, err = r.History(gctx, a)
		return err
	})
	g.Go(func() error {
		var err error
		histB, err = r.History(gctx, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	shared := lo.Intersect(histA, histB)
	if len(shared) == 0 {
		return 0, errors.NotFound(fmt.Sprintf("commits %d and %d share no history", a, b))
	}

	ancestor := lo.Max(shared)
	r.logger.Debug("common ancestor resolved",
		zap.Int64("commit_a", a),
		zap.Int64("commit_b", b),
		zap.Int64("commit_id", ancestor),
	)
	return ancestor, nil
}
