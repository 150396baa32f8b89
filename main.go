// Command ledgervcs serves the embedded ledger and a blob store over HTTP so
// that lvcs clients configured with the http backends can share repositories.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgervcs/internal/api"
	"ledgervcs/internal/app"
	"ledgervcs/internal/config"
	"ledgervcs/internal/logging"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "config file (default $LVCS_CONFIG or ~/.config/lvcs/config.toml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			log.Fatal("failed to locate config:", err)
		}
	}

	// Load configuration
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}
	if cfg.Blob.Type == config.BlobHTTP {
		log.Fatal("the server cannot use an http blob store")
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	store, err := app.OpenStore(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer store.Close()

	// The app owns the blob store; its ledger side is unused here.
	a := app.New(cfg, logger.Logger)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := a.Blobs(ctx)
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(store, blobs, cfg.Auth.Tokens, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("address", addr),
			zap.String("driver", cfg.Database.Driver),
			zap.String("blobs", cfg.Blob.Type),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
