package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ledgervcs/internal/api"
	"ledgervcs/internal/ledger"
)

// Deployer creates repositories on the server and connects to them.
type Deployer struct {
	t *transport
}

func NewDeployer(opts Options) (*Deployer, error) {
	t, err := newTransport(opts)
	if err != nil {
		return nil, err
	}
	return &Deployer{t: t}, nil
}

func (d *Deployer) Deploy(ctx context.Context, name string) (string, error) {
	var resp api.DeployResponse
	if err := d.t.do(ctx, http.MethodPost, "/api/repositories", api.DeployRequest{Name: name}, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// Connect checks that address exists and returns a client bound to it.
func (d *Deployer) Connect(ctx context.Context, address string) (ledger.Client, error) {
	c := &Client{t: d.t, address: address}
	if _, err := c.GetRepositoryName(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Client is a ledger.Client for one repository on the server.
type Client struct {
	t       *transport
	address string
}

func (c *Client) Address() string { return c.address }

func (c *Client) path(format string, args ...any) string {
	return "/api/repositories/" + url.PathEscape(c.address) + fmt.Sprintf(format, args...)
}

func (c *Client) GetBranch(ctx context.Context, id int64) (*ledger.Branch, error) {
	var b ledger.Branch
	if err := c.t.do(ctx, http.MethodGet, c.path("/branches/%d", id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) GetCommit(ctx context.Context, id int64) (*ledger.Commit, error) {
	var commit ledger.Commit
	if err := c.t.do(ctx, http.MethodGet, c.path("/commits/%d", id), nil, &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

func (c *Client) GetFile(ctx context.Context, id int64) (*ledger.File, error) {
	var f ledger.File
	if err := c.t.do(ctx, http.MethodGet, c.path("/files/%d", id), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) GetBranchCount(ctx context.Context) (int64, error) {
	var resp api.CountResponse
	err := c.t.do(ctx, http.MethodGet, c.path("/branches/count"), nil, &resp)
	return resp.Count, err
}

func (c *Client) GetCommitCount(ctx context.Context, branchID *int64) (int64, error) {
	p := c.path("/commits/count")
	if branchID != nil {
		p += fmt.Sprintf("?branch_id=%d", *branchID)
	}
	var resp api.CountResponse
	err := c.t.do(ctx, http.MethodGet, p, nil, &resp)
	return resp.Count, err
}

func (c *Client) GetFilesCount(ctx context.Context, commitID int64) (int64, error) {
	var resp api.CountResponse
	err := c.t.do(ctx, http.MethodGet, c.path("/commits/%d/files/count", commitID), nil, &resp)
	return resp.Count, err
}

func (c *Client) GetFilesFromCommit(ctx context.Context, commitID int64) ([]int64, error) {
	var ids []int64
	err := c.t.do(ctx, http.MethodGet, c.path("/commits/%d/files", commitID), nil, &ids)
	return ids, err
}

func (c *Client) GetCommitsFromBranch(ctx context.Context, branchID int64) ([]int64, error) {
	var ids []int64
	err := c.t.do(ctx, http.MethodGet, c.path("/branches/%d/commits", branchID), nil, &ids)
	return ids, err
}

func (c *Client) MostRecentCommit(ctx context.Context, branchID int64) (int64, error) {
	var resp api.HeadResponse
	err := c.t.do(ctx, http.MethodGet, c.path("/branches/%d/head", branchID), nil, &resp)
	return resp.CommitID, err
}

func (c *Client) GetRepositoryName(ctx context.Context) (string, error) {
	var resp api.NameResponse
	err := c.t.do(ctx, http.MethodGet, c.path("/name"), nil, &resp)
	return resp.Name, err
}

func (c *Client) GetBranchEditors(ctx context.Context, branchID int64) ([]string, error) {
	var editors []string
	err := c.t.do(ctx, http.MethodGet, c.path("/branches/%d/editors", branchID), nil, &editors)
	return editors, err
}

func (c *Client) MakeCommit(ctx context.Context, branchID, parentID int64, comment string, paths, hashes []string) error {
	return c.t.do(ctx, http.MethodPost, c.path("/branches/%d/commits", branchID), api.CommitRequest{
		ParentID: parentID,
		Comment:  comment,
		Paths:    paths,
		Hashes:   hashes,
	}, nil)
}

func (c *Client) MakeCommitMultiParent(ctx context.Context, branchID, parent1, parent2 int64, comment string, paths, hashes []string) error {
	return c.t.do(ctx, http.MethodPost, c.path("/branches/%d/commits", branchID), api.CommitRequest{
		ParentID:       parent1,
		SecondParentID: &parent2,
		Comment:        comment,
		Paths:          paths,
		Hashes:         hashes,
	}, nil)
}

func (c *Client) ForkNewBranch(ctx context.Context, name string, parentBranchID int64) error {
	return c.t.do(ctx, http.MethodPost, c.path("/branches"), api.ForkRequest{
		Name:           name,
		ParentBranchID: parentBranchID,
	}, nil)
}

func (c *Client) SquashMerge(ctx context.Context, parentBranchID, childBranchID int64, comment string) error {
	return c.t.do(ctx, http.MethodPost, c.path("/branches/%d/squash", parentBranchID), api.SquashRequest{
		ChildBranchID: childBranchID,
		Comment:       comment,
	}, nil)
}

func (c *Client) AddEditorToBranch(ctx context.Context, branchID int64, account string) error {
	return c.t.do(ctx, http.MethodPost, c.path("/branches/%d/editors", branchID), api.EditorRequest{Account: account}, nil)
}

func (c *Client) RemoveEditorFromBranch(ctx context.Context, branchID int64, account string) error {
	return c.t.do(ctx, http.MethodDelete, c.path("/branches/%d/editors/%s", branchID, url.PathEscape(account)), nil, nil)
}

var (
	_ ledger.Client   = (*Client)(nil)
	_ ledger.Deployer = (*Deployer)(nil)
)
