package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/repository"
	"ledgervcs/internal/validation"
	"ledgervcs/shared/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const blobFetchConcurrency = 8

// Synchronizer materializes commits into working trees.
type Synchronizer struct {
	logger *zap.Logger
}

func NewSynchronizer(logger *zap.Logger) *Synchronizer {
	return &Synchronizer{logger: logging.OrNop(logger)}
}

// Fetch replaces the working tree of sess with the file set of commitID. The
// descriptor is left alone.
//
// The file list is read before anything is deleted, so a ledger failure
// leaves the tree untouched. A blob failure after the delete pass leaves the
// tree partially replaced; fetching again repairs it.
func (s *Synchronizer) Fetch(ctx context.Context, sess *repository.Session, commitID int64) error {
	start := time.Now()

	files, err := ledger.CommitFiles(ctx, sess.Ledger, commitID)
	if err != nil {
		return err
	}
	if err := checkLayout(commitID, files); err != nil {
		return err
	}

	if err := clearTree(sess.Root); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(blobFetchConcurrency)
	for _, p := range utils.SortedKeys(files) {
		hash := files[p]
		g.Go(func() error {
			return s.writeFile(gctx, sess.Root, sess.Blobs, p, hash)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("commit fetched",
		zap.Int64("commit_id", commitID),
		zap.Int("count", len(files)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Checkout fetches the head of branchID and moves the descriptor to it.
func (s *Synchronizer) Checkout(ctx context.Context, sess *repository.Session, branchID int64) (int64, error) {
	head, err := sess.Ledger.MostRecentCommit(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("resolving head of branch %d: %w", branchID, err)
	}
	if err := s.Fetch(ctx, sess, head); err != nil {
		return 0, err
	}
	if err := sess.MoveTo(branchID, head); err != nil {
		return 0, err
	}
	return head, nil
}

// Switch fetches commitID and records it as the current commit, keeping the
// current branch.
func (s *Synchronizer) Switch(ctx context.Context, sess *repository.Session, commitID int64) error {
	if err := s.Fetch(ctx, sess, commitID); err != nil {
		return err
	}
	return sess.MoveTo(sess.Descriptor.CurrentBranchID, commitID)
}

func (s *Synchronizer) writeFile(ctx context.Context, root string, blobs blob.Store, p, hash string) error {
	data, err := blobs.Get(ctx, hash)
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeInternal {
			err = errors.BlobUnavailable(hash, err)
		}
		return fmt.Errorf("fetching %s: %w", p, err)
	}

	abs := filepath.Join(root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", p, err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}

	s.logger.Debug("file written", zap.String("path", p), zap.String("hash", hash))
	return nil
}

// clearTree deletes everything under root except the descriptor.
func clearTree(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading working tree: %w", err)
	}
	for _, e := range entries {
		if e.Name() == validation.ReservedPath {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("clearing working tree: %w", err)
		}
	}
	return nil
}

// checkLayout rejects file sets that cannot exist on disk, such as "a" and
// "a/b" in the same commit.
func checkLayout(commitID int64, files ledger.FileMap) error {
	for p := range files {
		for dir := p; ; {
			i := strings.LastIndexByte(dir, '/')
			if i < 0 {
				break
			}
			dir = dir[:i]
			if _, clash := files[dir]; clash {
				return errors.InvalidState(fmt.Sprintf("commit %d records %q both as a file and as a directory", commitID, dir))
			}
		}
	}
	return nil
}

