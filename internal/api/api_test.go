package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/ledger"
	"ledgervcs/internal/ledger/embedded/memstore"
	"ledgervcs/internal/middleware"
	"ledgervcs/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, tokens map[string]string) *testServer {
	return &testServer{t: t, handler: NewRouter(memstore.New(), blob.NewMemoryStore(), tokens, nil)}
}

func (s *testServer) do(method, path, account string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if account != "" {
		req.Header.Set(middleware.AccountHeader, account)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (s *testServer) deploy(name string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/repositories", "alice", DeployRequest{Name: name})
	require.Equal(s.t, http.StatusCreated, rec.Code)
	return decode[DeployResponse](s.t, rec).Address
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]string{"tok": "alice"})
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestLedgerRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	addr := s.deploy("demo")
	base := "/api/repositories/" + addr

	rec := s.do(http.MethodGet, base+"/name", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "demo", decode[NameResponse](t, rec).Name)

	rec = s.do(http.MethodPost, base+"/branches/0/commits", "alice", CommitRequest{
		ParentID: 0, Comment: "first", Paths: []string{"a.txt"}, Hashes: []string{"h1"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, base+"/branches/0/head", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[HeadResponse](t, rec).CommitID)

	rec = s.do(http.MethodGet, base+"/commits/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[ledger.Commit](t, rec)
	assert.Equal(t, "alice", c.Author)
	assert.Equal(t, "first", c.Comment)

	rec = s.do(http.MethodGet, base+"/commits/1/files", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ids := decode[[]int64](t, rec)
	require.Len(t, ids, 1)

	rec = s.do(http.MethodGet, base+"/files/0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a.txt", decode[ledger.File](t, rec).Path)

	rec = s.do(http.MethodPost, base+"/branches", "bob", ForkRequest{Name: "dev", ParentBranchID: 0})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, base+"/branches/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[ledger.Branch](t, rec)
	assert.Equal(t, "bob", b.Owner)
	assert.Equal(t, int64(1), b.ForkCommitID)

	rec = s.do(http.MethodGet, base+"/branches/count", "", nil)
	assert.Equal(t, int64(2), decode[CountResponse](t, rec).Count)

	second := int64(1)
	rec = s.do(http.MethodPost, base+"/branches/1/commits", "bob", CommitRequest{
		ParentID: 1, SecondParentID: &second, Comment: "merge-ish", Paths: []string{}, Hashes: []string{},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, base+"/commits/count?branch_id=1", "", nil)
	assert.Equal(t, int64(1), decode[CountResponse](t, rec).Count)
	rec = s.do(http.MethodGet, base+"/commits/count", "", nil)
	assert.Equal(t, int64(3), decode[CountResponse](t, rec).Count)

	rec = s.do(http.MethodPost, base+"/branches/0/squash", "alice", SquashRequest{ChildBranchID: 1, Comment: "squash"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, base+"/branches/0/commits", "", nil)
	assert.Equal(t, []int64{0, 1, 3}, decode[[]int64](t, rec))
}

func TestEditorRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	base := "/api/repositories/" + s.deploy("demo")

	rec := s.do(http.MethodPost, base+"/branches/0/editors", "bob", EditorRequest{Account: "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, base+"/branches/0/editors", "alice", EditorRequest{Account: "bob"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, base+"/branches/0/editors", "", nil)
	assert.Equal(t, []string{"bob"}, decode[[]string](t, rec))

	rec = s.do(http.MethodDelete, base+"/branches/0/editors/bob", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, base+"/branches/0/editors", "", nil)
	assert.Empty(t, decode[[]string](t, rec))
}

func TestLedgerErrors(t *testing.T) {
	s := newTestServer(t, nil)
	base := "/api/repositories/" + s.deploy("demo")

	tests := []struct {
		name       string
		method     string
		path       string
		account    string
		body       any
		wantStatus int
		wantType   errors.ErrorType
	}{
		{"unknown repository", http.MethodGet, "/api/repositories/nope/name", "", nil, http.StatusNotFound, errors.ErrorTypeNotFound},
		{"unknown commit", http.MethodGet, base + "/commits/42", "", nil, http.StatusNotFound, errors.ErrorTypeNotFound},
		{"bad id", http.MethodGet, base + "/commits/x", "", nil, http.StatusBadRequest, errors.ErrorTypeValidation},
		{"bad body", http.MethodPost, base + "/branches", "alice", []byte("{"), http.StatusBadRequest, errors.ErrorTypeValidation},
		{"not a writer", http.MethodPost, base + "/branches/0/commits", "mallory", CommitRequest{Paths: []string{}, Hashes: []string{}}, http.StatusForbidden, errors.ErrorTypeUnauthorized},
		{"squash into itself", http.MethodPost, base + "/branches/0/squash", "alice", SquashRequest{ChildBranchID: 0}, http.StatusBadRequest, errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.account, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			e := decode[errors.Error](t, rec)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, tt.wantStatus, e.Code)
		})
	}
}

func TestBlobRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/blobs", "", []byte("hello"))
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[BlobResponse](t, rec)
	assert.Equal(t, utils.HashContent([]byte("hello")), resp.Hash)
	assert.Equal(t, 5, resp.Size)

	rec = s.do(http.MethodGet, "/api/blobs/"+resp.Hash, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/blobs/"+utils.HashContent([]byte("other")), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrorTypeBlobUnavailable, decode[errors.Error](t, rec).Type)
}

func TestTokenAuth(t *testing.T) {
	s := newTestServer(t, map[string]string{"tok": "alice"})

	rec := s.do(http.MethodPost, "/api/repositories", "alice", DeployRequest{Name: "demo"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/repositories", bytes.NewReader([]byte(`{"name":"demo"}`)))
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}
