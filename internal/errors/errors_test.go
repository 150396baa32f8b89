package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     ErrorType
	}{
		{"not found", NotFound("commit 7 not found"), ErrNotFound, ErrorTypeNotFound},
		{"wrapped not found", fmt.Errorf("loading head: %w", NotFound("branch 2 not found")), ErrNotFound, ErrorTypeNotFound},
		{"blob", BlobUnavailable("abc", io.ErrUnexpectedEOF), ErrBlobUnavailable, ErrorTypeBlobUnavailable},
		{"connection", Connection("ledger unreachable", io.EOF), ErrConnection, ErrorTypeConnection},
		{"conflict", Conflict([]string{"a"}), ErrConflict, ErrorTypeConflict},
		{"invalid state", InvalidState("descriptor missing"), ErrInvalidState, ErrorTypeInvalidState},
		{"unauthorized", Unauthorized("not an editor"), ErrUnauthorized, ErrorTypeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, stderrors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestErrorDistinguishesKinds(t *testing.T) {
	err := Conflict([]string{"a", "b"})
	assert.False(t, stderrors.Is(err, ErrConnection))
	assert.False(t, stderrors.Is(err, ErrNotFound))
	assert.Equal(t, ErrorTypeInternal, TypeOf(io.EOF))
}

func TestErrorUnwrapKeepsCause(t *testing.T) {
	err := BlobUnavailable("abc", io.ErrUnexpectedEOF)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "blob abc unavailable")
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(NotFound("x")))
	assert.Equal(t, http.StatusForbidden, StatusCode(fmt.Errorf("wrap: %w", Unauthorized("x"))))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(io.EOF))
}

func TestConflictPathsSurviveJSON(t *testing.T) {
	data, err := json.Marshal(Conflict([]string{"a.txt", "dir/b.txt"}))
	require.NoError(t, err)

	var decoded Error
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, ErrorTypeConflict, decoded.Type)
	assert.Equal(t, []string{"a.txt", "dir/b.txt"}, ConflictPaths(&decoded))
	assert.Nil(t, ConflictPaths(NotFound("x")))
}
