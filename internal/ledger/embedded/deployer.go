package embedded

import (
	"context"
	"fmt"
	"time"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deployer creates and opens repositories in a Store, acting as account.
type Deployer struct {
	store   Store
	account string
	logger  *zap.Logger

	// Now stamps new commits. Defaults to time.Now.
	Now func() time.Time
}

func NewDeployer(store Store, account string, logger *zap.Logger) *Deployer {
	return &Deployer{
		store:   store,
		account: account,
		logger:  logging.OrNop(logger),
		Now:     time.Now,
	}
}

// Deploy creates a repository with branch 0 "master" owned by the deploying
// account and an empty root commit 0 on it.
func (d *Deployer) Deploy(ctx context.Context, name string) (string, error) {
	if err := validation.Name("repository", name); err != nil {
		return "", err
	}
	if err := validation.Account(d.account); err != nil {
		return "", err
	}

	address := uuid.NewString()
	now := d.Now()
	err := d.store.Update(ctx, func(tx Tx) error {
		if err := tx.InsertRepository(&ledger.Repository{
			Address:   address,
			Name:      name,
			Owner:     d.account,
			CreatedAt: now.Unix(),
		}); err != nil {
			return fmt.Errorf("inserting repository: %w", err)
		}

		branchID, err := tx.InsertBranch(address, &ledger.Branch{
			Name:         masterBranchName,
			Owner:        d.account,
			Editors:      []string{},
			ForkCommitID: ledger.RootCommitID,
		})
		if err != nil {
			return fmt.Errorf("inserting master branch: %w", err)
		}

		commitID, err := tx.InsertCommit(address, &ledger.Commit{
			BranchID:  branchID,
			Comment:   rootCommitText,
			Timestamp: now.Unix(),
			Author:    d.account,
			ParentID:  ledger.RootCommitID,
		})
		if err != nil {
			return fmt.Errorf("inserting root commit: %w", err)
		}

		if branchID != ledger.MasterBranchID || commitID != ledger.RootCommitID {
			return errors.Internal(fmt.Sprintf("new repository got branch %d and commit %d", branchID, commitID), nil)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	d.logger.Info("repository deployed", zap.String("address", address), zap.String("name", name))
	return address, nil
}

func (d *Deployer) Connect(ctx context.Context, address string) (ledger.Client, error) {
	return d.Open(ctx, address)
}

// Open is Connect returning the concrete ledger.
func (d *Deployer) Open(ctx context.Context, address string) (*Ledger, error) {
	err := d.store.View(ctx, func(tx Tx) error {
		_, err := tx.GetRepository(address)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Ledger{
		store:   d.store,
		address: address,
		account: d.account,
		now:     d.Now,
		logger:  d.logger.With(zap.String("repository", address)),
	}, nil
}

var _ ledger.Deployer = (*Deployer)(nil)
