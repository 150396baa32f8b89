package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"ledgervcs/internal/api"
	"ledgervcs/internal/blob"
	"ledgervcs/internal/errors"
	"ledgervcs/shared/utils"
)

// BlobClient is a blob.Store served by the /api/blobs endpoints.
type BlobClient struct {
	t *transport
}

func NewBlobClient(opts Options) (*BlobClient, error) {
	t, err := newTransport(opts)
	if err != nil {
		return nil, err
	}
	return &BlobClient{t: t}, nil
}

func (b *BlobClient) Put(ctx context.Context, data []byte) (string, error) {
	resp, err := b.t.send(ctx, http.MethodPost, "/api/blobs", "application/octet-stream", data)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out api.BlobResponse
	if err := decodeBody(resp, &out); err != nil {
		return "", err
	}
	if want := utils.HashContent(data); out.Hash != want {
		return "", errors.Internal(fmt.Sprintf("server stored blob as %s, expected %s", out.Hash, want), nil)
	}
	return out.Hash, nil
}

func (b *BlobClient) Get(ctx context.Context, hash string) ([]byte, error) {
	resp, err := b.t.send(ctx, http.MethodGet, "/api/blobs/"+url.PathEscape(hash), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Connection("reading blob "+hash, err)
	}
	if err := blob.Verify(hash, data); err != nil {
		return nil, err
	}
	return data, nil
}

var _ blob.Store = (*BlobClient)(nil)
