package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoAccount() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Account(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		tokens     map[string]string
		path       string
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "header trusted without tokens",
			header:     map[string]string{AccountHeader: "alice"},
			wantStatus: http.StatusOK,
			wantBody:   "alice",
		},
		{
			name:       "anonymous without header",
			wantStatus: http.StatusOK,
			wantBody:   AnonymousAccount,
		},
		{
			name:       "bearer token maps to account",
			tokens:     map[string]string{"s3cret": "bob"},
			header:     map[string]string{"Authorization": "Bearer s3cret", AccountHeader: "alice"},
			wantStatus: http.StatusOK,
			wantBody:   "bob",
		},
		{
			name:       "unknown token",
			tokens:     map[string]string{"s3cret": "bob"},
			header:     map[string]string{"Authorization": "Bearer nope"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "header ignored with tokens",
			tokens:     map[string]string{"s3cret": "bob"},
			header:     map[string]string{AccountHeader: "alice"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "open path",
			tokens:     map[string]string{"s3cret": "bob"},
			path:       "/health",
			wantStatus: http.StatusOK,
			wantBody:   AnonymousAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = "/api/x"
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			Auth(tt.tokens, "/health")(echoAccount()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			var e errors.Error
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
			assert.Equal(t, errors.ErrorTypeUnauthorized, e.Type)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given", seen)
}

func TestRecover(t *testing.T) {
	logger := &logging.Logger{Logger: zap.NewNop()}
	h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var e errors.Error
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, errors.ErrorTypeInternal, e.Type)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mark("first"), mark("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second"}, order)
}
