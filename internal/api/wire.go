package api

// Request and response bodies shared with the HTTP client.

type DeployRequest struct {
	Name string `json:"name"`
}

type DeployResponse struct {
	Address string `json:"address"`
}

type NameResponse struct {
	Name string `json:"name"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type HeadResponse struct {
	CommitID int64 `json:"commit_id"`
}

type ForkRequest struct {
	Name           string `json:"name"`
	ParentBranchID int64  `json:"parent_branch_id"`
}

// CommitRequest records a commit. A second parent makes it a merge commit.
type CommitRequest struct {
	ParentID       int64    `json:"parent_id"`
	SecondParentID *int64   `json:"second_parent_id,omitempty"`
	Comment        string   `json:"comment"`
	Paths          []string `json:"paths"`
	Hashes         []string `json:"hashes"`
}

type SquashRequest struct {
	ChildBranchID int64  `json:"child_branch_id"`
	Comment       string `json:"comment"`
}

type EditorRequest struct {
	Account string `json:"account"`
}

type BlobResponse struct {
	Hash string `json:"hash"`
	Size int    `json:"size"`
}
