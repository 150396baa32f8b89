// Package safe is a local, deduplicating blob store. Content lives in files
// fanned out by hash prefix; metadata lives in BadgerDB.
package safe

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"
	"ledgervcs/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ContentMeta describes one stored blob.
type ContentMeta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

type Options struct {
	Root        string
	CacheSize   int
	Compression CompressionOptions
	Logger      *zap.Logger
}

type Safe struct {
	root   string
	db     *badger.DB
	ownsDB bool
	cache  *lru.Cache[string, []byte]
	codec  *codec
	logger *zap.Logger

	// serializes refcount updates
	mu sync.Mutex
}

// Open creates a Safe under opts.Root with its own metadata database.
func Open(opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	metaDir := filepath.Join(opts.Root, "meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}

	dbOpts := badger.DefaultOptions(metaDir)
	dbOpts.Logger = nil
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New creates a Safe on an existing metadata database. Close leaves db open.
func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	c, err := newCodec(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Safe{
		root:   opts.Root,
		db:     db,
		cache:  cache,
		codec:  c,
		logger: logging.OrNop(opts.Logger),
	}, nil
}

// Put stores content and returns its hash. Storing known content only bumps
// its reference count.
func (s *Safe) Put(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash := utils.HashContent(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	switch {
	case err == nil:
		meta.RefCount++
		if err := s.storeMeta(meta); err != nil {
			return "", fmt.Errorf("incrementing ref count: %w", err)
		}
		return hash, nil
	case !stderrors.Is(err, errors.ErrBlobUnavailable):
		return "", fmt.Errorf("checking existence: %w", err)
	}

	stored, compressed := s.codec.compress(content)
	contentPath := s.contentPath(hash)
	if err := writeFileAtomic(contentPath, stored); err != nil {
		return "", fmt.Errorf("writing content file: %w", err)
	}

	meta = ContentMeta{
		Hash:       hash,
		Size:       int64(len(content)),
		StoredSize: int64(len(stored)),
		RefCount:   1,
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	if err := s.storeMeta(meta); err != nil {
		os.Remove(contentPath)
		return "", fmt.Errorf("storing metadata: %w", err)
	}

	s.cache.Add(hash, slices.Clone(content))
	s.logger.Debug("blob stored",
		zap.String("hash", hash),
		zap.Int64("size", meta.Size),
		zap.Bool("compressed", compressed),
	)
	return hash, nil
}

// Get returns the content for hash after checking it still hashes to hash.
func (s *Safe) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utils.IsValidHash(hash) {
		return nil, errors.BlobUnavailable(hash, fmt.Errorf("malformed hash"))
	}

	if content, ok := s.cache.Get(hash); ok {
		return slices.Clone(content), nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.BlobUnavailable(hash, err)
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if meta.Compressed {
		content, err = s.codec.decompress(content)
		if err != nil {
			return nil, errors.BlobUnavailable(hash, fmt.Errorf("decompressing: %w", err))
		}
	}
	if err := blob.Verify(hash, content); err != nil {
		return nil, err
	}

	s.cache.Add(hash, slices.Clone(content))
	return content, nil
}

// Delete drops one reference to hash and removes the content with the last.
func (s *Safe) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err != nil {
		return err
	}

	meta.RefCount--
	if meta.RefCount > 0 {
		return s.storeMeta(meta)
	}

	if err := os.Remove(s.contentPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing content file: %w", err)
	}
	if err := s.deleteMeta(hash); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	s.cache.Remove(hash)
	return nil
}

func (s *Safe) Exists(hash string) (bool, error) {
	if s.cache.Contains(hash) {
		return true, nil
	}
	_, err := s.getMeta(hash)
	if stderrors.Is(err, errors.ErrBlobUnavailable) {
		return false, nil
	}
	return err == nil, err
}

// Stat returns the metadata recorded for hash.
func (s *Safe) Stat(hash string) (ContentMeta, error) {
	return s.getMeta(hash)
}

func (s *Safe) Close() error {
	s.codec.close()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func metaKey(hash string) []byte {
	return []byte("content:" + hash)
}

func (s *Safe) storeMeta(meta ContentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(meta.Hash), data)
	})
}

func (s *Safe) getMeta(hash string) (ContentMeta, error) {
	var meta ContentMeta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(hash))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.BlobUnavailable(hash, nil)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	return meta, err
}

func (s *Safe) deleteMeta(hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(hash))
	})
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ blob.Store = (*Safe)(nil)
