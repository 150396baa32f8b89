package api

import (
	"net/http"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/middleware"

	"go.uber.org/zap"
)

const HealthPath = "/health"

// NewRouter mounts the ledger and blob services behind the standard
// middleware stack. With no tokens, callers name their account in the
// X-Account header.
func NewRouter(store embedded.Store, blobs blob.Store, tokens map[string]string, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	lh := NewLedgerHandler(store, logger)
	bh := NewBlobHandler(blobs, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/repositories", lh.Deploy)

	const repo = "/api/repositories/{address}"
	mux.HandleFunc("GET "+repo+"/name", lh.RepositoryName)

	mux.HandleFunc("GET "+repo+"/branches/count", lh.BranchCount)
	mux.HandleFunc("POST "+repo+"/branches", lh.ForkBranch)
	mux.HandleFunc("GET "+repo+"/branches/{id}", lh.GetBranch)
	mux.HandleFunc("GET "+repo+"/branches/{id}/head", lh.BranchHead)
	mux.HandleFunc("GET "+repo+"/branches/{id}/commits", lh.BranchCommits)
	mux.HandleFunc("POST "+repo+"/branches/{id}/commits", lh.MakeCommit)
	mux.HandleFunc("POST "+repo+"/branches/{id}/squash", lh.SquashMerge)
	mux.HandleFunc("GET "+repo+"/branches/{id}/editors", lh.BranchEditors)
	mux.HandleFunc("POST "+repo+"/branches/{id}/editors", lh.AddEditor)
	mux.HandleFunc("DELETE "+repo+"/branches/{id}/editors/{account}", lh.RemoveEditor)

	mux.HandleFunc("GET "+repo+"/commits/count", lh.CommitCount)
	mux.HandleFunc("GET "+repo+"/commits/{id}", lh.GetCommit)
	mux.HandleFunc("GET "+repo+"/commits/{id}/files", lh.CommitFiles)
	mux.HandleFunc("GET "+repo+"/commits/{id}/files/count", lh.CommitFilesCount)
	mux.HandleFunc("GET "+repo+"/files/{id}", lh.GetFile)

	mux.HandleFunc("POST /api/blobs", bh.Put)
	mux.HandleFunc("GET /api/blobs/{hash}", bh.Get)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recover(logger),
		middleware.Auth(tokens, HealthPath),
		middleware.Logger(logger),
	)
}
