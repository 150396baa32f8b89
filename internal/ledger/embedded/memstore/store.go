package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
)

type repoData struct {
	repo          ledger.Repository
	branches      []ledger.Branch
	commits       []ledger.Commit
	files         []ledger.File
	branchCommits map[int64][]int64
	commitFiles   map[int64][]int64
}

func (r *repoData) clone() *repoData {
	c := &repoData{
		repo:          r.repo,
		branches:      make([]ledger.Branch, len(r.branches)),
		commits:       slices.Clone(r.commits),
		files:         slices.Clone(r.files),
		branchCommits: make(map[int64][]int64, len(r.branchCommits)),
		commitFiles:   make(map[int64][]int64, len(r.commitFiles)),
	}
	for i, b := range r.branches {
		b.Editors = slices.Clone(b.Editors)
		c.branches[i] = b
	}
	for k, v := range r.branchCommits {
		c.branchCommits[k] = slices.Clone(v)
	}
	for k, v := range r.commitFiles {
		c.commitFiles[k] = slices.Clone(v)
	}
	return c
}

// Store keeps ledger records in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	repos map[string]*repoData
}

func New() *Store {
	return &Store{repos: make(map[string]*repoData)}
}

func (s *Store) View(ctx context.Context, fn func(embedded.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{repos: s.repos})
}

// Update runs fn against a copy of the touched repositories and publishes
// the copy only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(embedded.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{repos: maps.Clone(s.repos), writable: true, copied: map[string]bool{}}
	if err := fn(t); err != nil {
		return err
	}
	s.repos = t.repos
	return nil
}

func (s *Store) Close() error { return nil }

type tx struct {
	repos    map[string]*repoData
	writable bool
	copied   map[string]bool
}

func (t *tx) read(address string) (*repoData, error) {
	r, ok := t.repos[address]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("repository %s not found", address))
	}
	return r, nil
}

func (t *tx) write(address string) (*repoData, error) {
	if !t.writable {
		return nil, errors.Internal("write in read-only transaction", nil)
	}
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	if !t.copied[address] {
		r = r.clone()
		t.repos[address] = r
		t.copied[address] = true
	}
	return r, nil
}

func (t *tx) GetRepository(address string) (*ledger.Repository, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	repo := r.repo
	return &repo, nil
}

func (t *tx) InsertRepository(repo *ledger.Repository) error {
	if !t.writable {
		return errors.Internal("write in read-only transaction", nil)
	}
	if _, exists := t.repos[repo.Address]; exists {
		return errors.ValidationError(fmt.Sprintf("repository %s already exists", repo.Address), nil)
	}
	t.repos[repo.Address] = &repoData{
		repo:          *repo,
		branchCommits: map[int64][]int64{},
		commitFiles:   map[int64][]int64{},
	}
	t.copied[repo.Address] = true
	return nil
}

func (t *tx) GetBranch(address string, id int64) (*ledger.Branch, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= int64(len(r.branches)) {
		return nil, errors.NotFound(fmt.Sprintf("branch %d not found", id))
	}
	b := r.branches[id]
	b.Editors = slices.Clone(b.Editors)
	return &b, nil
}

func (t *tx) InsertBranch(address string, b *ledger.Branch) (int64, error) {
	r, err := t.write(address)
	if err != nil {
		return 0, err
	}
	stored := *b
	stored.ID = int64(len(r.branches))
	stored.Editors = slices.Clone(b.Editors)
	r.branches = append(r.branches, stored)
	b.ID = stored.ID
	return stored.ID, nil
}

func (t *tx) UpdateBranch(address string, b *ledger.Branch) error {
	r, err := t.write(address)
	if err != nil {
		return err
	}
	if b.ID < 0 || b.ID >= int64(len(r.branches)) {
		return errors.NotFound(fmt.Sprintf("branch %d not found", b.ID))
	}
	stored := *b
	stored.Editors = slices.Clone(b.Editors)
	r.branches[b.ID] = stored
	return nil
}

func (t *tx) CountBranches(address string) (int64, error) {
	r, err := t.read(address)
	if err != nil {
		return 0, err
	}
	return int64(len(r.branches)), nil
}

func (t *tx) GetCommit(address string, id int64) (*ledger.Commit, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= int64(len(r.commits)) {
		return nil, errors.NotFound(fmt.Sprintf("commit %d not found", id))
	}
	c := r.commits[id]
	return &c, nil
}

func (t *tx) InsertCommit(address string, c *ledger.Commit) (int64, error) {
	r, err := t.write(address)
	if err != nil {
		return 0, err
	}
	stored := *c
	stored.ID = int64(len(r.commits))
	r.commits = append(r.commits, stored)
	r.branchCommits[stored.BranchID] = append(r.branchCommits[stored.BranchID], stored.ID)
	c.ID = stored.ID
	return stored.ID, nil
}

func (t *tx) CountCommits(address string) (int64, error) {
	r, err := t.read(address)
	if err != nil {
		return 0, err
	}
	return int64(len(r.commits)), nil
}

func (t *tx) CommitsOnBranch(address string, branchID int64) ([]int64, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	ids := slices.Clone(r.branchCommits[branchID])
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

func (t *tx) GetFile(address string, id int64) (*ledger.File, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= int64(len(r.files)) {
		return nil, errors.NotFound(fmt.Sprintf("file %d not found", id))
	}
	f := r.files[id]
	return &f, nil
}

func (t *tx) InsertFile(address string, f *ledger.File) (int64, error) {
	r, err := t.write(address)
	if err != nil {
		return 0, err
	}
	stored := *f
	stored.ID = int64(len(r.files))
	r.files = append(r.files, stored)
	r.commitFiles[stored.CommitID] = append(r.commitFiles[stored.CommitID], stored.ID)
	f.ID = stored.ID
	return stored.ID, nil
}

func (t *tx) FilesOfCommit(address string, commitID int64) ([]int64, error) {
	r, err := t.read(address)
	if err != nil {
		return nil, err
	}
	ids := slices.Clone(r.commitFiles[commitID])
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

var _ embedded.Store = (*Store)(nil)
