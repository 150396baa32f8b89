package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	vcserrors "ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// Store keeps ledger records in BadgerDB. Keys are laid out per repository:
//
//	repository:<address>
//	repo/<address>/branch:<id>
//	repo/<address>/commit:<id>
//	repo/<address>/file:<id>
//	repo/<address>/branch/<id>/commits:<commit id>
//	repo/<address>/commit/<id>/files:<file id>
//
// IDs are zero-padded so key order is numeric order.
type Store struct {
	db    *badger.DB
	owned bool
}

// Open opens (creating if needed) a BadgerDB at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	return &Store{db: db, owned: true}, nil
}

// New wraps an already open database. Close leaves it open.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) View(ctx context.Context, fn func(embedded.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&tx{db: s.db, txn: txn})
	})
}

func (s *Store) Update(ctx context.Context, fn func(embedded.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&tx{db: s.db, txn: txn})
	})
}

func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func formatID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

type branchRecord struct{ ledger.Branch }

func (r *branchRecord) GetID() string { return formatID(r.ID) }

type commitRecord struct{ ledger.Commit }

func (r *commitRecord) GetID() string { return formatID(r.ID) }

type fileRecord struct{ ledger.File }

func (r *fileRecord) GetID() string { return formatID(r.ID) }

// ref is an index entry pointing at another record.
type ref struct {
	ID int64 `json:"id"`
}

func (r *ref) GetID() string { return formatID(r.ID) }

type tx struct {
	db  *badger.DB
	txn *badger.Txn
}

func (t *tx) repositories() *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, "repository")
}

func (t *tx) branches(address string) *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, fmt.Sprintf("repo/%s/branch", address))
}

func (t *tx) commits(address string) *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, fmt.Sprintf("repo/%s/commit", address))
}

func (t *tx) files(address string) *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, fmt.Sprintf("repo/%s/file", address))
}

func (t *tx) branchCommits(address string, branchID int64) *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, fmt.Sprintf("repo/%s/branch/%s/commits", address, formatID(branchID)))
}

func (t *tx) commitFiles(address string, commitID int64) *storage.BadgerStore {
	return storage.NewBadgerStore(t.db, fmt.Sprintf("repo/%s/commit/%s/files", address, formatID(commitID)))
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return vcserrors.NotFound(fmt.Sprintf(format, args...))
	}
	return err
}

func (t *tx) GetRepository(address string) (*ledger.Repository, error) {
	var r ledger.Repository
	if err := t.repositories().GetTx(t.txn, address, &r); err != nil {
		return nil, notFound(err, "repository %s not found", address)
	}
	return &r, nil
}

func (t *tx) InsertRepository(r *ledger.Repository) error {
	err := t.repositories().CreateTx(t.txn, r)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return vcserrors.ValidationError(fmt.Sprintf("repository %s already exists", r.Address), nil)
	}
	return err
}

func (t *tx) GetBranch(address string, id int64) (*ledger.Branch, error) {
	var r branchRecord
	if err := t.branches(address).GetTx(t.txn, formatID(id), &r); err != nil {
		return nil, notFound(err, "branch %d not found", id)
	}
	return &r.Branch, nil
}

func (t *tx) InsertBranch(address string, b *ledger.Branch) (int64, error) {
	if _, err := t.GetRepository(address); err != nil {
		return 0, err
	}
	store := t.branches(address)
	id, err := store.NextIDTx(t.txn)
	if err != nil {
		return 0, err
	}
	b.ID = id
	if err := store.CreateTx(t.txn, &branchRecord{*b}); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) UpdateBranch(address string, b *ledger.Branch) error {
	err := t.branches(address).UpdateTx(t.txn, &branchRecord{*b})
	return notFound(err, "branch %d not found", b.ID)
}

func (t *tx) CountBranches(address string) (int64, error) {
	if _, err := t.GetRepository(address); err != nil {
		return 0, err
	}
	return t.branches(address).SequenceTx(t.txn)
}

func (t *tx) GetCommit(address string, id int64) (*ledger.Commit, error) {
	var r commitRecord
	if err := t.commits(address).GetTx(t.txn, formatID(id), &r); err != nil {
		return nil, notFound(err, "commit %d not found", id)
	}
	return &r.Commit, nil
}

func (t *tx) InsertCommit(address string, c *ledger.Commit) (int64, error) {
	if _, err := t.GetRepository(address); err != nil {
		return 0, err
	}
	store := t.commits(address)
	id, err := store.NextIDTx(t.txn)
	if err != nil {
		return 0, err
	}
	c.ID = id
	if err := store.CreateTx(t.txn, &commitRecord{*c}); err != nil {
		return 0, err
	}
	if err := t.branchCommits(address, c.BranchID).CreateTx(t.txn, &ref{ID: id}); err != nil {
		return 0, fmt.Errorf("indexing commit %d: %w", id, err)
	}
	return id, nil
}

func (t *tx) CountCommits(address string) (int64, error) {
	if _, err := t.GetRepository(address); err != nil {
		return 0, err
	}
	return t.commits(address).SequenceTx(t.txn)
}

func (t *tx) CommitsOnBranch(address string, branchID int64) ([]int64, error) {
	return t.listRefs(t.branchCommits(address, branchID))
}

func (t *tx) GetFile(address string, id int64) (*ledger.File, error) {
	var r fileRecord
	if err := t.files(address).GetTx(t.txn, formatID(id), &r); err != nil {
		return nil, notFound(err, "file %d not found", id)
	}
	return &r.File, nil
}

func (t *tx) InsertFile(address string, f *ledger.File) (int64, error) {
	store := t.files(address)
	id, err := store.NextIDTx(t.txn)
	if err != nil {
		return 0, err
	}
	f.ID = id
	if err := store.CreateTx(t.txn, &fileRecord{*f}); err != nil {
		return 0, err
	}
	if err := t.commitFiles(address, f.CommitID).CreateTx(t.txn, &ref{ID: id}); err != nil {
		return 0, fmt.Errorf("indexing file %d: %w", id, err)
	}
	return id, nil
}

func (t *tx) FilesOfCommit(address string, commitID int64) ([]int64, error) {
	return t.listRefs(t.commitFiles(address, commitID))
}

func (t *tx) listRefs(store *storage.BadgerStore) ([]int64, error) {
	var refs []ref
	if err := store.ListTx(t.txn, &refs); err != nil {
		return nil, err
	}
	ids := make([]int64, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids, nil
}

var _ embedded.Store = (*Store)(nil)
