package blob

import (
	"context"
	"slices"
	"sync"

	"ledgervcs/internal/errors"
	"ledgervcs/shared/utils"
)

// MemoryStore keeps blobs in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash := utils.HashContent(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[hash]; !ok {
		m.blobs[hash] = slices.Clone(data)
	}
	return hash, nil
}

func (m *MemoryStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[hash]
	if !ok {
		return nil, errors.BlobUnavailable(hash, nil)
	}
	return slices.Clone(data), nil
}

// Len reports the number of distinct blobs held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Forget drops a blob so tests can simulate an unavailable hash.
func (m *MemoryStore) Forget(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, hash)
}

var _ Store = (*MemoryStore)(nil)
