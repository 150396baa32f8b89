package ledger

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedClient serves GetCommit and GetFile from an LRU cache. Commits and
// file entries never change once written, so no invalidation is needed.
type CachedClient struct {
	Client

	commits *lru.Cache[int64, Commit]
	files   *lru.Cache[int64, File]
}

func NewCachedClient(c Client, size int) (*CachedClient, error) {
	commits, err := lru.New[int64, Commit](size)
	if err != nil {
		return nil, fmt.Errorf("creating commit cache: %w", err)
	}
	files, err := lru.New[int64, File](size)
	if err != nil {
		return nil, fmt.Errorf("creating file cache: %w", err)
	}
	return &CachedClient{Client: c, commits: commits, files: files}, nil
}

func (c *CachedClient) GetCommit(ctx context.Context, id int64) (*Commit, error) {
	if commit, ok := c.commits.Get(id); ok {
		return &commit, nil
	}
	commit, err := c.Client.GetCommit(ctx, id)
	if err != nil {
		return nil, err
	}
	c.commits.Add(id, *commit)
	return commit, nil
}

func (c *CachedClient) GetFile(ctx context.Context, id int64) (*File, error) {
	if f, ok := c.files.Get(id); ok {
		return &f, nil
	}
	f, err := c.Client.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	c.files.Add(id, *f)
	return f, nil
}

var _ Client = (*CachedClient)(nil)
