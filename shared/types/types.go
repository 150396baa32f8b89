package shared

// Change types reported by a working tree status.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

// Change describes how one path in the working tree differs from a commit.
type Change struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	OldHash string `json:"old_hash,omitempty"`
	NewHash string `json:"new_hash,omitempty"`
	Size    int64  `json:"size"`
}

// Status summarizes the working tree against the commit it was fetched from.
type Status struct {
	BranchID int64    `json:"branch_id"`
	CommitID int64    `json:"commit_id"`
	Changes  []Change `json:"changes"`
}

// Clean reports whether the working tree matches its commit.
func (s *Status) Clean() bool {
	return len(s.Changes) == 0
}
