package ledger

import (
	"slices"
	"time"
)

const (
	// RootCommitID is the repository's first commit and the sentinel parent of
	// every root commit.
	RootCommitID int64 = 0
	// MasterBranchID is the branch created with the repository.
	MasterBranchID int64 = 0
)

// Branch is a named, owned line of history. Accounts are opaque strings.
type Branch struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Owner          string   `json:"owner"`
	Editors        []string `json:"editors"`
	ParentBranchID int64    `json:"parent_branch_id"`
	ForkCommitID   int64    `json:"fork_commit_id"`
}

func (b *Branch) HasEditor(account string) bool {
	return slices.Contains(b.Editors, account)
}

// CanWrite reports whether account may commit to the branch.
func (b *Branch) CanWrite(account string) bool {
	return account == b.Owner || b.HasEditor(account)
}

// Commit is immutable once the ledger accepts it. IDs grow with creation order.
type Commit struct {
	ID              int64  `json:"id"`
	BranchID        int64  `json:"branch_id"`
	Comment         string `json:"comment"`
	Timestamp       int64  `json:"timestamp"`
	Author          string `json:"author"`
	ParentID        int64  `json:"parent_id"`
	HasSecondParent bool   `json:"has_second_parent"`
	SecondParentID  int64  `json:"second_parent_id"`
}

// Parents returns the commit's parent IDs, first parent first.
func (c *Commit) Parents() []int64 {
	if c.HasSecondParent {
		return []int64{c.ParentID, c.SecondParentID}
	}
	return []int64{c.ParentID}
}

func (c *Commit) Time() time.Time {
	return time.Unix(c.Timestamp, 0)
}

// File records one path of a commit and the hash of its content.
type File struct {
	ID          int64  `json:"id"`
	CommitID    int64  `json:"commit_id"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
}

// FileMap maps a commit's paths to their content hashes.
type FileMap map[string]string

// Lists splits the map into the parallel path and hash lists the ledger
// write operations take, ordered by path.
func (m FileMap) Lists() (paths, hashes []string) {
	paths = make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	hashes = make([]string, len(paths))
	for i, p := range paths {
		hashes[i] = m[p]
	}
	return paths, hashes
}

// Repository is the ledger-side record created by a deployment.
type Repository struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	CreatedAt int64  `json:"created_at"`
}

func (r *Repository) GetID() string { return r.Address }
