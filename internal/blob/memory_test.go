package blob

import (
	"context"
	"testing"

	"ledgervcs/internal/errors"
	"ledgervcs/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("hello world\n")},
		{"empty", []byte{}},
		{"binary", []byte{0, 1, 2, 0xff}},
	}

	s := NewMemoryStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := s.Put(ctx, tt.data)
			require.NoError(t, err)
			assert.Equal(t, utils.HashContent(tt.data), hash)

			got, err := s.Get(ctx, hash)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
	assert.Equal(t, len(tests), s.Len())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("abc")
	hash, err := s.Put(ctx, data)
	require.NoError(t, err)
	data[0] = 'x'

	got, err := s.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, err := s.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))

	_, err = s.Put(ctx, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreMissing(t *testing.T) {
	s := NewMemoryStore()
	hash, err := s.Put(context.Background(), []byte("gone"))
	require.NoError(t, err)
	s.Forget(hash)

	_, err = s.Get(context.Background(), hash)
	assert.ErrorIs(t, err, errors.ErrBlobUnavailable)
}

func TestVerify(t *testing.T) {
	data := []byte("content")
	assert.NoError(t, Verify(utils.HashContent(data), data))
	assert.ErrorIs(t, Verify(utils.HashContent([]byte("other")), data), errors.ErrBlobUnavailable)
}
