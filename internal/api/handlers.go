package api

import (
	"net/http"
	"strconv"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger/embedded"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/middleware"
	"ledgervcs/internal/validation"
)

// LedgerHandler serves the ledger operations of every repository in a store.
// Each request acts as the account resolved by the auth middleware.
type LedgerHandler struct {
	store  embedded.Store
	logger *logging.Logger
}

func NewLedgerHandler(store embedded.Store, logger *logging.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, logger: logger}
}

func (h *LedgerHandler) deployer(r *http.Request) *embedded.Deployer {
	return embedded.NewDeployer(h.store, middleware.Account(r.Context()), h.logger.WithRequestID(r.Context()))
}

// ledger opens the repository named in the path, writing the error response
// when it cannot.
func (h *LedgerHandler) ledger(w http.ResponseWriter, r *http.Request) (*embedded.Ledger, bool) {
	l, err := h.deployer(r).Open(r.Context(), r.PathValue("address"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return l, true
}

func (h *LedgerHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	address, err := h.deployer(r).Deploy(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, DeployResponse{Address: address})
}

func (h *LedgerHandler) RepositoryName(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	name, err := l.GetRepositoryName(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NameResponse{Name: name})
}

func (h *LedgerHandler) BranchCount(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	n, err := l.GetBranchCount(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *LedgerHandler) GetBranch(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := l.GetBranch(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *LedgerHandler) BranchEditors(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	editors, err := l.GetBranchEditors(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, editors)
}

func (h *LedgerHandler) BranchCommits(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ids, err := l.GetCommitsFromBranch(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *LedgerHandler) BranchHead(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	head, err := l.MostRecentCommit(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, HeadResponse{CommitID: head})
}

func (h *LedgerHandler) ForkBranch(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	var req ForkRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := l.ForkNewBranch(r.Context(), req.Name, req.ParentBranchID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) MakeCommit(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	branchID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req CommitRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if req.SecondParentID != nil {
		err = l.MakeCommitMultiParent(r.Context(), branchID, req.ParentID, *req.SecondParentID, req.Comment, req.Paths, req.Hashes)
	} else {
		err = l.MakeCommit(r.Context(), branchID, req.ParentID, req.Comment, req.Paths, req.Hashes)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) SquashMerge(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	parentID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req SquashRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := l.SquashMerge(r.Context(), parentID, req.ChildBranchID, req.Comment); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) AddEditor(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req EditorRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := l.AddEditorToBranch(r.Context(), id, req.Account); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) RemoveEditor(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := l.RemoveEditorFromBranch(r.Context(), id, r.PathValue("account")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommitCount counts the whole repository, or one branch with ?branch_id=.
func (h *LedgerHandler) CommitCount(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	var branchID *int64
	if v := r.URL.Query().Get("branch_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, h.logger, errors.ValidationError("invalid branch_id", v))
			return
		}
		branchID = &id
	}
	n, err := l.GetCommitCount(r.Context(), branchID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *LedgerHandler) GetCommit(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := l.GetCommit(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *LedgerHandler) CommitFiles(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ids, err := l.GetFilesFromCommit(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *LedgerHandler) CommitFilesCount(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	n, err := l.GetFilesCount(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *LedgerHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	l, ok := h.ledger(w, r)
	if !ok {
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	f, err := l.GetFile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
