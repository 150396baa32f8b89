package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	AccountHeader   = "X-Account"

	// AnonymousAccount acts for requests that name no account.
	AnonymousAccount = "anonymous"
)

type accountKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware listed runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID tags the request with the caller's X-Request-ID or a fresh one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
	})
}

func Logger(logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			logger.WithRequestID(r.Context()).Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("account", Account(r.Context())),
				zap.Int("status", wrapper.status),
				zap.Int("bytes", wrapper.bytes),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func Recover(logger *logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithRequestID(r.Context()).Error("panic recovered",
						zap.Any("error", err),
						zap.Stack("stack"),
					)
					writeError(w, errors.Internal("internal server error", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Auth resolves the acting account. With tokens configured, a bearer token
// must map to an account. Without tokens the X-Account header is trusted.
// Paths in open skip the check.
func Auth(tokens map[string]string, open ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range open {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			var account string
			if len(tokens) > 0 {
				token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if ok {
					account = tokens[strings.TrimSpace(token)]
				}
				if account == "" {
					writeError(w, errors.Unauthorized("missing or unknown bearer token"))
					return
				}
			} else {
				account = r.Header.Get(AccountHeader)
				if account == "" {
					account = AnonymousAccount
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// Account returns the account Auth resolved for the request.
func Account(ctx context.Context) string {
	if account, ok := ctx.Value(accountKey{}).(string); ok {
		return account
	}
	return AnonymousAccount
}

func writeError(w http.ResponseWriter, e *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(e)
}
