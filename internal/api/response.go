package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends err as a JSON errors.Error. Untyped errors become
// INTERNAL.
func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var typed *errors.Error
	if !stderrors.As(err, &typed) {
		typed = errors.Internal("internal server error", err)
	}
	body := &errors.Error{
		Type:    typed.Type,
		Message: err.Error(),
		Code:    typed.Code,
		Details: typed.Details,
	}

	log := logger.WithRequestID(r.Context())
	if body.Code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("type", string(body.Type)), zap.Error(err))
	}
	writeJSON(w, body.Code, body)
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, errors.ValidationError("invalid "+name, r.PathValue(name))
	}
	return v, nil
}
