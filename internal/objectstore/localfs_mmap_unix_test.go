//go:build unix

package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMmapReadOnly_RoundTrips(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "data/seg-1.bin", []byte("mapped payload"), false))

	got, unmap, err := fs.MmapReadOnly("data/seg-1.bin")
	require.NoError(t, err)
	require.Equal(t, []byte("mapped payload"), got)
	require.NoError(t, unmap())
}

func TestMmapReadOnly_EmptyFile(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "empty", []byte{}, false))

	got, unmap, err := fs.MmapReadOnly("empty")
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, unmap())
}

func TestMmapReadOnly_MissingPathErrors(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	_, _, err := fs.MmapReadOnly("never-written")
	require.Error(t, err)
}
