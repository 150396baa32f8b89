// Package stage turns a working tree into a new ledger commit.
package stage

import (
	"context"
	"fmt"
	"os"
	"time"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/repository"
	"ledgervcs/internal/workspace"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 8

type Stager struct {
	logger *zap.Logger
}

func NewStager(logger *zap.Logger) *Stager {
	return &Stager{logger: logging.OrNop(logger)}
}

// StageAndCommit uploads every file of the working tree and records them as
// a new commit on branchID with parentID as its parent. Unchanged files are
// uploaded again; the blob store deduplicates them. On success the
// descriptor points at the new commit, which is returned.
func (s *Stager) StageAndCommit(ctx context.Context, sess *repository.Session, branchID, parentID int64, comment string) (int64, error) {
	start := time.Now()

	entries, err := workspace.Scan(sess.Root)
	if err != nil {
		return 0, err
	}

	paths := make([]string, len(entries))
	hashes := make([]string, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, e := range entries {
		paths[i] = e.Path
		g.Go(func() error {
			data, err := os.ReadFile(e.Abs)
			if err != nil {
				return fmt.Errorf("reading %s: %w", e.Path, err)
			}
			hash, err := sess.Blobs.Put(gctx, data)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", e.Path, err)
			}
			hashes[i] = hash
			s.logger.Debug("file staged", zap.String("path", e.Path), zap.String("hash", hash))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := sess.Ledger.MakeCommit(ctx, branchID, parentID, comment, paths, hashes); err != nil {
		return 0, fmt.Errorf("recording commit on branch %d: %w", branchID, err)
	}

	head, err := sess.Ledger.MostRecentCommit(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("resolving new commit on branch %d: %w", branchID, err)
	}
	if head == parentID {
		return 0, errors.InvalidState(fmt.Sprintf("branch %d head did not move after commit", branchID))
	}
	if err := sess.MoveTo(branchID, head); err != nil {
		return 0, err
	}

	s.logger.Info("commit recorded",
		zap.Int64("commit_id", head),
		zap.Int64("branch_id", branchID),
		zap.Int("count", len(paths)),
		zap.Duration("duration", time.Since(start)),
	)
	return head, nil
}

// Commit stages on the current branch on top of the current commit.
func (s *Stager) Commit(ctx context.Context, sess *repository.Session, comment string) (int64, error) {
	d := sess.Descriptor
	return s.StageAndCommit(ctx, sess, d.CurrentBranchID, d.CurrentCommitID, comment)
}
