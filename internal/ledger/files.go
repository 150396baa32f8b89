package ledger

import (
	"context"
	"fmt"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/validation"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const fileReadConcurrency = 8

// CommitFiles reads the file set of a commit into a FileMap keyed by
// normalized path. Entries are fetched concurrently.
func CommitFiles(ctx context.Context, r FileReader, commitID int64) (FileMap, error) {
	ids, err := r.GetFilesFromCommit(ctx, commitID)
	if err != nil {
		return nil, fmt.Errorf("listing files of commit %d: %w", commitID, err)
	}

	files := make([]*File, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fileReadConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			f, err := r.GetFile(gctx, id)
			if err != nil {
				return fmt.Errorf("reading file %d of commit %d: %w", id, commitID, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := make(FileMap, len(files))
	for _, f := range files {
		p, err := validation.NormalizePath(f.Path)
		if err != nil {
			return nil, errors.InvalidState(fmt.Sprintf("commit %d records unusable path %q: %v", commitID, f.Path, err))
		}
		if _, dup := m[p]; dup {
			return nil, errors.InvalidState(fmt.Sprintf("commit %d records path %q twice", commitID, p))
		}
		m[p] = f.ContentHash
	}
	return m, nil
}

// CommitFileSets reads several commits' file sets concurrently. The result is
// keyed by commit ID.
func CommitFileSets(ctx context.Context, r FileReader, commitIDs ...int64) (map[int64]FileMap, error) {
	ids := lo.Uniq(commitIDs)
	results := make([]FileMap, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			m, err := CommitFiles(gctx, r, id)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sets := make(map[int64]FileMap, len(ids))
	for i, id := range ids {
		sets[id] = results[i]
	}
	return sets, nil
}
