//go:build unix

package bufferpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchData_UsesMmapAndUnmapsOnEviction(t *testing.T) {
	pool, fs := newPool(t, 5) // capacity = exactly one 5-byte entry
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "a", []byte("aaaaa"), false))
	require.NoError(t, fs.Write(ctx, "b", []byte("bbbbb"), false))

	pinA, ok, err := pool.FetchData(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("aaaaa"), pinA.Bytes())
	pinA.Release()

	// Fetching b pushes the pool over capacity, evicting (and unmapping) a.
	pinB, ok, err := pool.FetchData(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	defer pinB.Release()

	require.Equal(t, int64(1), pool.Stats().Evictions)

	_, ok, err = pool.FetchData(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok, "a is still on disk, just evicted from cache")
	require.Equal(t, int64(3), pool.Stats().Misses)
}

func TestFetchData_MissingPathReturnsNotOK(t *testing.T) {
	pool, _ := newPool(t, 1<<20)
	pin, ok, err := pool.FetchData(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, pin)
}
