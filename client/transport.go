// Package client talks to a ledgervcs server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/middleware"

	"go.uber.org/zap"
)

type Options struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Account is sent in X-Account for servers without token auth.
	Account    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type transport struct {
	baseURL    string
	token      string
	account    string
	httpClient *http.Client
	logger     *zap.Logger
}

func newTransport(opts Options) (*transport, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &transport{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		account:    opts.Account,
		httpClient: httpClient,
		logger:     logging.OrNop(opts.Logger),
	}, nil
}

// send performs one request. Transport failures are CONNECTION errors and
// error statuses are decoded back into typed errors.
func (t *transport) send(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if t.account != "" {
		req.Header.Set(middleware.AccountHeader, t.account)
	}
	if reqID, ok := logging.RequestIDFromContext(ctx); ok {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Connection(fmt.Sprintf("%s %s", method, t.baseURL+path), err)
	}
	t.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// do sends in as JSON and decodes the response into out when out is non-nil.
func (t *transport) do(ctx context.Context, method, path string, in, out any) error {
	var (
		body        []byte
		contentType string
	)
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		contentType = "application/json"
	}

	resp, err := t.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Connection("decoding response of "+resp.Request.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var e errors.Error
	if err := json.Unmarshal(data, &e); err == nil && e.Type != "" {
		if e.Code == 0 {
			e.Code = resp.StatusCode
		}
		return &e
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NotFound(msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Unauthorized(msg)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return errors.Connection(msg, nil)
	}
	return errors.Internal(msg, stderrors.New(resp.Status))
}
