package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/repository"

	"go.uber.org/zap"
)

// OpenSession finds the repository containing dir and connects to it. The
// session owns the App: closing it closes the App.
func (a *App) OpenSession(ctx context.Context, dir string) (*repository.Session, error) {
	root, err := repository.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	d, err := repository.LoadDescriptor(root)
	if err != nil {
		return nil, err
	}
	return a.session(ctx, root, d)
}

func (a *App) session(ctx context.Context, root string, d *repository.Descriptor) (*repository.Session, error) {
	l, err := a.Connect(ctx, d.RepoAddress)
	if err != nil {
		return nil, err
	}
	b, err := a.Blobs(ctx)
	if err != nil {
		return nil, err
	}
	sess := repository.NewSession(root, d, l, b, a.logger)
	sess.Own(a)
	return sess, nil
}

// Init deploys a repository named name and makes dir its working tree,
// positioned at the root commit. dir must be empty or absent.
func (a *App) Init(ctx context.Context, dir, name string) (*repository.Session, error) {
	if err := prepareRoot(dir); err != nil {
		return nil, err
	}
	d, err := a.Deployer()
	if err != nil {
		return nil, err
	}
	address, err := d.Deploy(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("deploying repository %q: %w", name, err)
	}

	desc := &repository.Descriptor{
		RepoName:        name,
		RepoAddress:     address,
		CurrentBranchID: ledger.MasterBranchID,
		CurrentCommitID: ledger.RootCommitID,
	}
	if err := desc.Save(dir); err != nil {
		return nil, err
	}
	sess, err := a.session(ctx, dir, desc)
	if err != nil {
		return nil, err
	}
	if err := a.Sync.Fetch(ctx, sess, ledger.RootCommitID); err != nil {
		sess.Close()
		return nil, err
	}

	a.logger.Info("repository initialized", zap.String("address", address), zap.String("path", dir))
	return sess, nil
}

// Clone materializes the head of master of the repository at address into
// parent/<repository name>.
func (a *App) Clone(ctx context.Context, parent, address string) (*repository.Session, error) {
	l, err := a.Connect(ctx, address)
	if err != nil {
		return nil, err
	}
	name, err := l.GetRepositoryName(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading repository name: %w", err)
	}
	head, err := l.MostRecentCommit(ctx, ledger.MasterBranchID)
	if err != nil {
		return nil, fmt.Errorf("resolving head of master: %w", err)
	}

	root := filepath.Join(parent, name)
	if err := prepareRoot(root); err != nil {
		return nil, err
	}
	desc := &repository.Descriptor{
		RepoName:        name,
		RepoAddress:     address,
		CurrentBranchID: ledger.MasterBranchID,
		CurrentCommitID: head,
	}
	if err := desc.Save(root); err != nil {
		return nil, err
	}
	sess, err := a.session(ctx, root, desc)
	if err != nil {
		return nil, err
	}
	if err := a.Sync.Fetch(ctx, sess, head); err != nil {
		sess.Close()
		return nil, err
	}

	a.logger.Info("repository cloned",
		zap.String("address", address),
		zap.String("path", root),
		zap.Int64("commit_id", head),
	)
	return sess, nil
}

// prepareRoot creates dir, refusing one that already holds files.
func prepareRoot(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0755)
	case err != nil:
		return err
	case len(entries) > 0:
		return errors.InvalidState(fmt.Sprintf("%s is not empty", dir))
	}
	return nil
}
