package repository

import (
	"io"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/logging"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Session is one open checkout: its root, its descriptor and the ledger and
// blob store it talks to. Operations take the session explicitly and update
// its descriptor in place.
type Session struct {
	Root       string
	Descriptor *Descriptor
	Ledger     ledger.Client
	Blobs      blob.Store
	Logger     *zap.Logger

	closers []io.Closer
}

func NewSession(root string, d *Descriptor, l ledger.Client, b blob.Store, logger *zap.Logger) *Session {
	return &Session{
		Root:       root,
		Descriptor: d,
		Ledger:     l,
		Blobs:      b,
		Logger:     logging.OrNop(logger),
	}
}

// Own registers resources closed with the session, in reverse order.
func (s *Session) Own(closers ...io.Closer) {
	s.closers = append(s.closers, closers...)
}

// MoveTo points the descriptor at commitID on branchID and saves it.
func (s *Session) MoveTo(branchID, commitID int64) error {
	s.Descriptor.CurrentBranchID = branchID
	s.Descriptor.CurrentCommitID = commitID
	if err := s.Descriptor.Save(s.Root); err != nil {
		return err
	}
	s.Logger.Debug("descriptor updated",
		zap.Int64("branch_id", branchID),
		zap.Int64("commit_id", commitID),
	)
	return nil
}

func (s *Session) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}
