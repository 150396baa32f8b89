package merging

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/history"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/repository"
	"ledgervcs/internal/textmerge"
	"ledgervcs/internal/workspace"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const contentMergeConcurrency = 4

type Status string

const (
	StatusMerged     Status = "merged"
	StatusConflicted Status = "conflicted"
)

// Result describes a finished merge. A conflicted merge writes nothing and
// lists the offending paths in Conflicts.
type Result struct {
	Status     Status
	CommitID   int64
	ParentHead int64
	ChildHead  int64
	Ancestor   int64
	Files      ledger.FileMap
	Conflicts  []string
}

// Plan is the outcome of comparing two heads, before anything is committed.
type Plan struct {
	ParentHead int64
	ChildHead  int64
	Ancestor   int64
	Files      ledger.FileMap
	Conflicts  []string
}

type Engine struct {
	merger textmerge.Merger
	sync   *workspace.Synchronizer
	logger *zap.Logger
}

func NewEngine(merger textmerge.Merger, sync *workspace.Synchronizer, logger *zap.Logger) *Engine {
	if merger == nil {
		merger = textmerge.NewLineMerger()
	}
	logger = logging.OrNop(logger)
	if sync == nil {
		sync = workspace.NewSynchronizer(logger)
	}
	return &Engine{merger: merger, sync: sync, logger: logger}
}

func DefaultMergeMessage(parentBranchID, childBranchID int64) string {
	return fmt.Sprintf("Merge Branch ID %d into Branch ID %d", childBranchID, parentBranchID)
}

func DefaultSquashMessage(childBranchID int64) string {
	return fmt.Sprintf("Squash Merge From Branch ID %d", childBranchID)
}

// ThreeWay merges the head of childBranchID into parentBranchID. Everything
// up to the single ledger write is computed locally, so any failure before
// it leaves the ledger and the working tree as they were. After the write,
// the working tree is moved to the new head.
func (e *Engine) ThreeWay(ctx context.Context, sess *repository.Session, parentBranchID, childBranchID int64, message string) (*Result, error) {
	start := time.Now()
	if message == "" {
		message = DefaultMergeMessage(parentBranchID, childBranchID)
	}

	parentHead, err := sess.Ledger.MostRecentCommit(ctx, parentBranchID)
	if err != nil {
		return nil, fmt.Errorf("resolving head of branch %d: %w", parentBranchID, err)
	}
	childHead, err := sess.Ledger.MostRecentCommit(ctx, childBranchID)
	if err != nil {
		return nil, fmt.Errorf("resolving head of branch %d: %w", childBranchID, err)
	}

	plan, err := e.Plan(ctx, sess.Ledger, sess.Blobs, parentHead, childHead)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ParentHead: plan.ParentHead,
		ChildHead:  plan.ChildHead,
		Ancestor:   plan.Ancestor,
		Files:      plan.Files,
		Conflicts:  plan.Conflicts,
	}
	if len(plan.Conflicts) > 0 {
		result.Status = StatusConflicted
		e.logger.Info("merge stopped on conflicts",
			zap.Int64("branch_id", parentBranchID),
			zap.Int64("child_branch_id", childBranchID),
			zap.Strings("paths", plan.Conflicts),
		)
		return result, nil
	}

	paths, hashes := plan.Files.Lists()
	if err := sess.Ledger.MakeCommitMultiParent(ctx, parentBranchID, parentHead, childHead, message, paths, hashes); err != nil {
		return nil, fmt.Errorf("recording merge commit on branch %d: %w", parentBranchID, err)
	}

	newHead, err := e.land(ctx, sess, parentBranchID)
	if err != nil {
		return nil, err
	}
	result.Status = StatusMerged
	result.CommitID = newHead

	e.logger.Info("merge completed",
		zap.Int64("commit_id", newHead),
		zap.Int64("branch_id", parentBranchID),
		zap.Int64("child_branch_id", childBranchID),
		zap.Int64("ancestor", plan.Ancestor),
		zap.Int("count", len(paths)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Squash asks the ledger to collapse childBranchID onto parentBranchID and
// moves the working tree to the result.
func (e *Engine) Squash(ctx context.Context, sess *repository.Session, parentBranchID, childBranchID int64, message string) (*Result, error) {
	if message == "" {
		message = DefaultSquashMessage(childBranchID)
	}
	if err := sess.Ledger.SquashMerge(ctx, parentBranchID, childBranchID, message); err != nil {
		return nil, fmt.Errorf("squashing branch %d into %d: %w", childBranchID, parentBranchID, err)
	}

	newHead, err := e.land(ctx, sess, parentBranchID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("squash merge completed",
		zap.Int64("commit_id", newHead),
		zap.Int64("branch_id", parentBranchID),
		zap.Int64("child_branch_id", childBranchID),
	)
	return &Result{Status: StatusMerged, CommitID: newHead}, nil
}

// land fetches the new head of branchID and points the descriptor at it.
func (e *Engine) land(ctx context.Context, sess *repository.Session, branchID int64) (int64, error) {
	head, err := e.sync.Checkout(ctx, sess, branchID)
	if err != nil {
		return 0, fmt.Errorf("updating working tree after merge: %w", err)
	}
	return head, nil
}

// Plan computes the merged file map of two heads. Content merges upload
// their results to blobs; nothing is written to the ledger.
func (e *Engine) Plan(ctx context.Context, l ledger.Client, blobs blob.Store, parentHead, childHead int64) (*Plan, error) {
	ancestor, err := history.NewResolver(l, e.logger).CommonAncestor(ctx, parentHead, childHead)
	if err != nil {
		return nil, err
	}

	sets, err := ledger.CommitFileSets(ctx, l, parentHead, childHead, ancestor)
	if err != nil {
		return nil, err
	}
	P, C, A := sets[parentHead], sets[childHead], sets[ancestor]

	plan := &Plan{
		ParentHead: parentHead,
		ChildHead:  childHead,
		Ancestor:   ancestor,
		Files:      ledger.FileMap{},
	}

	var toMerge []string
	for _, path := range lo.Uniq(append(lo.Keys(P), lo.Keys(C)...)) {
		p, c, a := versionOf(P, path), versionOf(C, path), versionOf(A, path)
		var chosen Version
		switch Classify(p, c, a) {
		case Keep:
			chosen = p
		case TakeChild:
			chosen = c
		case TakeParent:
			chosen = p
		case NeedsMerge:
			if !p.Present || !c.Present {
				plan.Conflicts = append(plan.Conflicts, path)
				continue
			}
			toMerge = append(toMerge, path)
			continue
		}
		if chosen.Present {
			plan.Files[path] = chosen.Hash
		}
	}

	merged, conflicts, err := e.mergeContents(ctx, blobs, toMerge, P, C, A)
	if err != nil {
		return nil, err
	}
	for path, hash := range merged {
		plan.Files[path] = hash
	}
	plan.Conflicts = append(plan.Conflicts, conflicts...)
	sort.Strings(plan.Conflicts)
	return plan, nil
}

// mergeContents runs the text merger over paths changed on both sides. The
// first failure cancels the merges still running.
func (e *Engine) mergeContents(ctx context.Context, blobs blob.Store, paths []string, P, C, A ledger.FileMap) (map[string]string, []string, error) {
	var (
		mu        sync.Mutex
		merged    = map[string]string{}
		conflicts []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contentMergeConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			hash, conflict, err := e.mergePath(gctx, blobs, path, P[path], C[path], versionOf(A, path))
			if err != nil {
				return fmt.Errorf("merging %s: %w", path, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if conflict {
				conflicts = append(conflicts, path)
			} else {
				merged[path] = hash
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return merged, conflicts, nil
}

func (e *Engine) mergePath(ctx context.Context, blobs blob.Store, path, parentHash, childHash string, ancestor Version) (string, bool, error) {
	ours, err := blobs.Get(ctx, parentHash)
	if err != nil {
		return "", false, err
	}
	theirs, err := blobs.Get(ctx, childHash)
	if err != nil {
		return "", false, err
	}
	var base []byte
	if ancestor.Present {
		if base, err = blobs.Get(ctx, ancestor.Hash); err != nil {
			return "", false, err
		}
	}

	out, conflict, err := e.merger.Merge(ctx, base, ours, theirs)
	if err != nil || conflict {
		return "", conflict, err
	}

	hash, err := blobs.Put(ctx, out)
	if err != nil {
		return "", false, err
	}
	e.logger.Debug("content merged", zap.String("path", path), zap.String("hash", hash))
	return hash, false, nil
}

// ConflictError converts a conflicted result into a CONFLICT error.
func (r *Result) ConflictError() error {
	if r.Status != StatusConflicted {
		return nil
	}
	return errors.Conflict(r.Conflicts)
}
