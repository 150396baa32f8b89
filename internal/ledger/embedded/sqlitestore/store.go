package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	vcserrors "ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/ledger/embedded/sqlitestore/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store keeps ledger records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the database at path, or an in-memory one for ":memory:", and
// applies pending migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// OpenConnection opens a single-connection pool with foreign keys enabled.
// One connection keeps ":memory:" databases shared across queries and
// serializes writers.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) View(ctx context.Context, fn func(embedded.Tx) error) error {
	return s.run(ctx, fn, false)
}

func (s *Store) Update(ctx context.Context, fn func(embedded.Tx) error) error {
	return s.run(ctx, fn, true)
}

func (s *Store) run(ctx context.Context, fn func(embedded.Tx) error, commit bool) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type tx struct {
	ctx context.Context
	tx  *sql.Tx
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return vcserrors.NotFound(fmt.Sprintf(format, args...))
	}
	return err
}

func (t *tx) nextID(table, address string) (int64, error) {
	var id int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(id) + 1, 0) FROM %s WHERE repo_address = ?", table)
	if err := t.tx.QueryRowContext(t.ctx, query, address).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", table, err)
	}
	return id, nil
}

func (t *tx) count(table, address string) (int64, error) {
	if _, err := t.GetRepository(address); err != nil {
		return 0, err
	}
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE repo_address = ?", table)
	if err := t.tx.QueryRowContext(t.ctx, query, address).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

func (t *tx) ids(query string, args ...any) ([]int64, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *tx) GetRepository(address string) (*ledger.Repository, error) {
	r := ledger.Repository{Address: address}
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT name, owner, created_at FROM repositories WHERE address = ?", address,
	).Scan(&r.Name, &r.Owner, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err, "repository %s not found", address)
	}
	return &r, nil
}

func (t *tx) InsertRepository(r *ledger.Repository) error {
	if _, err := t.GetRepository(r.Address); err == nil {
		return vcserrors.ValidationError(fmt.Sprintf("repository %s already exists", r.Address), nil)
	}
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO repositories (address, name, owner, created_at) VALUES (?, ?, ?, ?)",
		r.Address, r.Name, r.Owner, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting repository: %w", err)
	}
	return nil
}

func (t *tx) GetBranch(address string, id int64) (*ledger.Branch, error) {
	b := ledger.Branch{ID: id}
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT name, owner, parent_branch_id, fork_commit_id FROM branches WHERE repo_address = ? AND id = ?",
		address, id,
	).Scan(&b.Name, &b.Owner, &b.ParentBranchID, &b.ForkCommitID)
	if err != nil {
		return nil, notFound(err, "branch %d not found", id)
	}

	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT account FROM branch_editors WHERE repo_address = ? AND branch_id = ? ORDER BY position",
		address, id)
	if err != nil {
		return nil, fmt.Errorf("reading editors of branch %d: %w", id, err)
	}
	defer rows.Close()

	b.Editors = []string{}
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, err
		}
		b.Editors = append(b.Editors, account)
	}
	return &b, rows.Err()
}

func (t *tx) InsertBranch(address string, b *ledger.Branch) (int64, error) {
	id, err := t.nextID("branches", address)
	if err != nil {
		return 0, err
	}
	_, err = t.tx.ExecContext(t.ctx,
		"INSERT INTO branches (repo_address, id, name, owner, parent_branch_id, fork_commit_id) VALUES (?, ?, ?, ?, ?, ?)",
		address, id, b.Name, b.Owner, b.ParentBranchID, b.ForkCommitID)
	if err != nil {
		return 0, fmt.Errorf("inserting branch: %w", err)
	}
	b.ID = id
	if err := t.writeEditors(address, b); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) UpdateBranch(address string, b *ledger.Branch) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE branches SET name = ?, owner = ?, parent_branch_id = ?, fork_commit_id = ? WHERE repo_address = ? AND id = ?",
		b.Name, b.Owner, b.ParentBranchID, b.ForkCommitID, address, b.ID)
	if err != nil {
		return fmt.Errorf("updating branch %d: %w", b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return vcserrors.NotFound(fmt.Sprintf("branch %d not found", b.ID))
	}

	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM branch_editors WHERE repo_address = ? AND branch_id = ?", address, b.ID); err != nil {
		return fmt.Errorf("clearing editors of branch %d: %w", b.ID, err)
	}
	return t.writeEditors(address, b)
}

func (t *tx) writeEditors(address string, b *ledger.Branch) error {
	for i, account := range b.Editors {
		_, err := t.tx.ExecContext(t.ctx,
			"INSERT INTO branch_editors (repo_address, branch_id, position, account) VALUES (?, ?, ?, ?)",
			address, b.ID, i, account)
		if err != nil {
			return fmt.Errorf("inserting editor %s: %w", account, err)
		}
	}
	return nil
}

func (t *tx) CountBranches(address string) (int64, error) {
	return t.count("branches", address)
}

func (t *tx) GetCommit(address string, id int64) (*ledger.Commit, error) {
	c := ledger.Commit{ID: id}
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT branch_id, comment, timestamp, author, parent_id, has_second_parent, second_parent_id
		 FROM commits WHERE repo_address = ? AND id = ?`,
		address, id,
	).Scan(&c.BranchID, &c.Comment, &c.Timestamp, &c.Author, &c.ParentID, &c.HasSecondParent, &c.SecondParentID)
	if err != nil {
		return nil, notFound(err, "commit %d not found", id)
	}
	return &c, nil
}

func (t *tx) InsertCommit(address string, c *ledger.Commit) (int64, error) {
	id, err := t.nextID("commits", address)
	if err != nil {
		return 0, err
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO commits (repo_address, id, branch_id, comment, timestamp, author, parent_id, has_second_parent, second_parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		address, id, c.BranchID, c.Comment, c.Timestamp, c.Author, c.ParentID, c.HasSecondParent, c.SecondParentID)
	if err != nil {
		return 0, fmt.Errorf("inserting commit: %w", err)
	}
	c.ID = id
	return id, nil
}

func (t *tx) CountCommits(address string) (int64, error) {
	return t.count("commits", address)
}

func (t *tx) CommitsOnBranch(address string, branchID int64) ([]int64, error) {
	return t.ids("SELECT id FROM commits WHERE repo_address = ? AND branch_id = ? ORDER BY id", address, branchID)
}

func (t *tx) GetFile(address string, id int64) (*ledger.File, error) {
	f := ledger.File{ID: id}
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT commit_id, path, content_hash FROM files WHERE repo_address = ? AND id = ?",
		address, id,
	).Scan(&f.CommitID, &f.Path, &f.ContentHash)
	if err != nil {
		return nil, notFound(err, "file %d not found", id)
	}
	return &f, nil
}

func (t *tx) InsertFile(address string, f *ledger.File) (int64, error) {
	id, err := t.nextID("files", address)
	if err != nil {
		return 0, err
	}
	_, err = t.tx.ExecContext(t.ctx,
		"INSERT INTO files (repo_address, id, commit_id, path, content_hash) VALUES (?, ?, ?, ?, ?)",
		address, id, f.CommitID, f.Path, f.ContentHash)
	if err != nil {
		return 0, fmt.Errorf("inserting file: %w", err)
	}
	f.ID = id
	return id, nil
}

func (t *tx) FilesOfCommit(address string, commitID int64) ([]int64, error) {
	return t.ids("SELECT id FROM files WHERE repo_address = ? AND commit_id = ? ORDER BY id", address, commitID)
}

var _ embedded.Store = (*Store)(nil)
