package api

import (
	"io"
	"net/http"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"

	"go.uber.org/zap"
)

// MaxBlobSize caps uploaded blob bodies.
const MaxBlobSize = 512 << 20

type BlobHandler struct {
	blobs  blob.Store
	logger *logging.Logger
}

func NewBlobHandler(blobs blob.Store, logger *logging.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, logger: logger}
}

func (h *BlobHandler) Put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBlobSize))
	if err != nil {
		writeError(w, r, h.logger, errors.ValidationError("reading blob body", err.Error()))
		return
	}

	hash, err := h.blobs.Put(r.Context(), data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.WithRequestID(r.Context()).Debug("blob uploaded", zap.String("hash", hash), zap.Int("size", len(data)))
	writeJSON(w, http.StatusCreated, BlobResponse{Hash: hash, Size: len(data)})
}

func (h *BlobHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.blobs.Get(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
