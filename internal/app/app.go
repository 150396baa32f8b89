// Package app wires configuration to the concrete ledger, blob store and
// merge tool, and exposes the repository operations the CLI runs.
package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"ledgervcs/client"
	"ledgervcs/internal/blob"
	"ledgervcs/internal/config"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/merging"
	"ledgervcs/internal/safe"
	"ledgervcs/internal/stage"
	"ledgervcs/internal/textmerge"
	"ledgervcs/internal/workspace"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// App builds collaborators on first use and closes them with Close.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.Mutex
	deployer ledger.Deployer
	blobs    blob.Store
	closers  []io.Closer

	Sync   *workspace.Synchronizer
	Stager *stage.Stager
	Merges *merging.Engine
}

func New(cfg *config.Config, logger *zap.Logger) *App {
	logger = logging.OrNop(logger)
	syncer := workspace.NewSynchronizer(logger)
	return &App{
		cfg:    cfg,
		logger: logger,
		Sync:   syncer,
		Stager: stage.NewStager(logger),
		Merges: merging.NewEngine(NewMerger(cfg.Merge, logger), syncer, logger),
	}
}

// NewWith builds an App over ready-made collaborators. Close leaves them
// open.
func NewWith(cfg *config.Config, deployer ledger.Deployer, blobs blob.Store, logger *zap.Logger) *App {
	a := New(cfg, logger)
	a.deployer = deployer
	a.blobs = blobs
	return a
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *zap.Logger    { return a.logger }

// NewMerger returns the configured text merger.
func NewMerger(cfg config.MergeConfig, logger *zap.Logger) textmerge.Merger {
	if cfg.Tool == config.MergeDiff3 {
		return textmerge.NewExecMerger(cfg.Diff3Path, logger)
	}
	return textmerge.NewLineMerger()
}

// Deployer opens the configured ledger.
func (a *App) Deployer() (ledger.Deployer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deployer != nil {
		return a.deployer, nil
	}

	cfg := a.cfg.Ledger
	var d ledger.Deployer
	switch cfg.Type {
	case config.LedgerBadger, config.LedgerSQLite:
		store, err := OpenStore(cfg.Type, cfg.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		d = embedded.NewDeployer(store, a.cfg.Account, a.logger)
	case config.LedgerHTTP:
		hd, err := client.NewDeployer(client.Options{
			BaseURL: cfg.URL,
			Token:   cfg.Token,
			Account: a.cfg.Account,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		d = hd
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Type)
	}

	a.deployer = d
	return d, nil
}

// Connect binds a ledger client to address, behind a read cache when one is
// configured.
func (a *App) Connect(ctx context.Context, address string) (ledger.Client, error) {
	d, err := a.Deployer()
	if err != nil {
		return nil, err
	}
	c, err := d.Connect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("connecting to repository %s: %w", address, err)
	}
	if a.cfg.Ledger.CacheSize > 0 {
		return ledger.NewCachedClient(c, a.cfg.Ledger.CacheSize)
	}
	return c, nil
}

// Blobs opens the configured blob store.
func (a *App) Blobs(ctx context.Context) (blob.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blobs != nil {
		return a.blobs, nil
	}

	cfg := a.cfg.Blob
	var b blob.Store
	switch cfg.Type {
	case config.BlobSafe:
		s, err := safe.Open(safe.Options{
			Root:        cfg.Root,
			CacheSize:   cfg.CacheSize,
			Compression: safe.DefaultCompressionOptions(),
			Logger:      a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening blob safe: %w", err)
		}
		a.closers = append(a.closers, s)
		b = s
	case config.BlobMemory:
		b = blob.NewMemoryStore()
	case config.BlobS3:
		s, err := blob.NewS3Store(ctx, blob.S3Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		b = s
	case config.BlobHTTP:
		c, err := client.NewBlobClient(client.Options{
			BaseURL: cfg.URL,
			Token:   a.cfg.Ledger.Token,
			Account: a.cfg.Account,
			Logger:  a.logger,
		})
		if err != nil {
			return nil, err
		}
		b = c
	default:
		return nil, fmt.Errorf("unknown blob type %q", cfg.Type)
	}

	a.blobs = b
	return b, nil
}

// Close releases what the App opened. It is safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
