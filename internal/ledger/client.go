package ledger

import "context"

// CommitReader is the slice of Client needed to walk history.
type CommitReader interface {
	GetCommit(ctx context.Context, id int64) (*Commit, error)
}

// FileReader is the slice of Client needed to read a commit's file set.
type FileReader interface {
	GetFile(ctx context.Context, id int64) (*File, error)
	GetFilesFromCommit(ctx context.Context, commitID int64) ([]int64, error)
}

// Client is bound to one repository. Write operations return once the ledger
// has durably accepted the write.
type Client interface {
	CommitReader
	FileReader

	GetBranch(ctx context.Context, id int64) (*Branch, error)
	GetBranchCount(ctx context.Context) (int64, error)
	// GetCommitCount counts the commits of branchID, or of the whole
	// repository when branchID is nil.
	GetCommitCount(ctx context.Context, branchID *int64) (int64, error)
	GetFilesCount(ctx context.Context, commitID int64) (int64, error)
	GetCommitsFromBranch(ctx context.Context, branchID int64) ([]int64, error)
	MostRecentCommit(ctx context.Context, branchID int64) (int64, error)
	GetRepositoryName(ctx context.Context) (string, error)
	GetBranchEditors(ctx context.Context, branchID int64) ([]string, error)

	MakeCommit(ctx context.Context, branchID, parentID int64, comment string, paths, hashes []string) error
	MakeCommitMultiParent(ctx context.Context, branchID, parent1, parent2 int64, comment string, paths, hashes []string) error
	ForkNewBranch(ctx context.Context, name string, parentBranchID int64) error
	SquashMerge(ctx context.Context, parentBranchID, childBranchID int64, comment string) error
	AddEditorToBranch(ctx context.Context, branchID int64, account string) error
	RemoveEditorFromBranch(ctx context.Context, branchID int64, account string) error
}

// Deployer creates repositories and binds clients to existing ones.
type Deployer interface {
	Deploy(ctx context.Context, name string) (address string, err error)
	Connect(ctx context.Context, address string) (Client, error)
}
