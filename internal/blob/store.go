// Package blob defines the content-addressed store that holds file bytes.
package blob

import (
	"context"
	"fmt"

	"ledgervcs/internal/errors"
	"ledgervcs/shared/utils"
)

// Store is content-addressed storage for file bytes. Hashes are the
// lowercase hex SHA-256 of the content. Put is idempotent. Get of an unknown
// hash fails with a BLOB_UNAVAILABLE error.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
}

// Verify checks that data hashes to hash.
func Verify(hash string, data []byte) error {
	if got := utils.HashContent(data); got != hash {
		return errors.BlobUnavailable(hash, fmt.Errorf("content hashes to %s", got))
	}
	return nil
}
