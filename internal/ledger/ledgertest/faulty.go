package ledgertest

import (
	"context"
	"sync"

	"ledgervcs/internal/ledger"
)

// Faulty wraps a client and fails chosen methods. It also counts writes.
type Faulty struct {
	ledger.Client

	mu       sync.Mutex
	failures map[string]error
	calls    map[string]int
}

func NewFaulty(c ledger.Client) *Faulty {
	return &Faulty{
		Client:   c,
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

// FailOn makes every later call of method return err.
func (f *Faulty) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = err
}

func (f *Faulty) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Writes counts the write operations that reached the wrapped client.
func (f *Faulty) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls["MakeCommit"] + f.calls["MakeCommitMultiParent"] + f.calls["SquashMerge"] +
		f.calls["ForkNewBranch"] + f.calls["AddEditorToBranch"] + f.calls["RemoveEditorFromBranch"]
}

func (f *Faulty) check(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[method]; err != nil {
		return err
	}
	f.calls[method]++
	return nil
}

func (f *Faulty) GetCommit(ctx context.Context, id int64) (*ledger.Commit, error) {
	if err := f.check("GetCommit"); err != nil {
		return nil, err
	}
	return f.Client.GetCommit(ctx, id)
}

func (f *Faulty) GetFile(ctx context.Context, id int64) (*ledger.File, error) {
	if err := f.check("GetFile"); err != nil {
		return nil, err
	}
	return f.Client.GetFile(ctx, id)
}

func (f *Faulty) GetFilesFromCommit(ctx context.Context, commitID int64) ([]int64, error) {
	if err := f.check("GetFilesFromCommit"); err != nil {
		return nil, err
	}
	return f.Client.GetFilesFromCommit(ctx, commitID)
}

func (f *Faulty) MostRecentCommit(ctx context.Context, branchID int64) (int64, error) {
	if err := f.check("MostRecentCommit"); err != nil {
		return 0, err
	}
	return f.Client.MostRecentCommit(ctx, branchID)
}

func (f *Faulty) MakeCommit(ctx context.Context, branchID, parentID int64, comment string, paths, hashes []string) error {
	if err := f.check("MakeCommit"); err != nil {
		return err
	}
	return f.Client.MakeCommit(ctx, branchID, parentID, comment, paths, hashes)
}

func (f *Faulty) MakeCommitMultiParent(ctx context.Context, branchID, parent1, parent2 int64, comment string, paths, hashes []string) error {
	if err := f.check("MakeCommitMultiParent"); err != nil {
		return err
	}
	return f.Client.MakeCommitMultiParent(ctx, branchID, parent1, parent2, comment, paths, hashes)
}

func (f *Faulty) SquashMerge(ctx context.Context, parentBranchID, childBranchID int64, comment string) error {
	if err := f.check("SquashMerge"); err != nil {
		return err
	}
	return f.Client.SquashMerge(ctx, parentBranchID, childBranchID, comment)
}

func (f *Faulty) ForkNewBranch(ctx context.Context, name string, parentBranchID int64) error {
	if err := f.check("ForkNewBranch"); err != nil {
		return err
	}
	return f.Client.ForkNewBranch(ctx, name, parentBranchID)
}

func (f *Faulty) AddEditorToBranch(ctx context.Context, branchID int64, account string) error {
	if err := f.check("AddEditorToBranch"); err != nil {
		return err
	}
	return f.Client.AddEditorToBranch(ctx, branchID, account)
}

func (f *Faulty) RemoveEditorFromBranch(ctx context.Context, branchID int64, account string) error {
	if err := f.check("RemoveEditorFromBranch"); err != nil {
		return err
	}
	return f.Client.RemoveEditorFromBranch(ctx, branchID, account)
}

var _ ledger.Client = (*Faulty)(nil)
