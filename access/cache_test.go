package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := t.Context()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "Artist:a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "Artist:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "Painting:a", []byte("3"), 0))

	b, err := c.Get(ctx, "Artist:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	b, err = c.Get(ctx, "Artist:a")
	require.NoError(t, err)
	assert.Nil(t, b, "expired")
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.DeletePrefix(ctx, "Artist:"))
	assert.Equal(t, 1, c.Len())
	b, err = c.Get(ctx, "Artist:b")
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, c.Delete(ctx, "Painting:a"))
	require.NoError(t, c.Set(ctx, "Gallery:x", []byte("4"), 0))
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}

func TestEncodeRows(t *testing.T) {
	rows := [][]any{
		{int64(1), "Dali", nil},
		{int64(2), []byte{0xca, 0xfe}, 3.5},
	}
	b, err := encodeRows(rows)
	require.NoError(t, err)
	got, err := decodeRows(b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0][0])
	assert.Equal(t, "Dali", got[0][1])
	assert.Nil(t, got[0][2])
	assert.Equal(t, []byte{0xca, 0xfe}, got[1][1])
	assert.Equal(t, 3.5, got[1][2])

	_, err = decodeRows([]byte{0xc1})
	assert.Error(t, err)
}
