package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenRead_RoundTrips(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "tables/x/data/log-1.bin", []byte("payload"), false))

	got, ok, err := fs.Read(ctx, "tables/x/data/log-1.bin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), got)
}

func TestRead_MissingPathReturnsNotOK(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	got, ok, err := fs.Read(context.Background(), "never/written")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestWrite_FailIfExistsRejectsSecondWriter(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "seg", []byte("first"), true))
	err := fs.Write(ctx, "seg", []byte("second"), true)
	require.Error(t, err, "a second fail-if-exists write to the same immutable name must be rejected")

	got, ok, err := fs.Read(ctx, "seg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("first"), got, "the rejected write must not have clobbered the original")
}

func TestWrite_WithoutFailIfExistsOverwrites(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "seal", []byte("v1"), false))
	require.NoError(t, fs.Write(ctx, "seal", []byte("v2"), false))

	got, ok, err := fs.Read(ctx, "seal")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got)
}

func TestWrite_CreatesIntermediateDirectories(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "tables/deeply/nested/path/file.bin", []byte("x"), false))

	got, ok, err := fs.Read(ctx, "tables/deeply/nested/path/file.bin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("x"), got)
}

func TestDelete_RemovesObjectAndIsIdempotent(t *testing.T) {
	fs := NewLocalFS(t.TempDir())
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "gone", []byte("x"), false))

	require.NoError(t, fs.Delete(ctx, "gone"))
	_, ok, err := fs.Read(ctx, "gone")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Delete(ctx, "gone"), "deleting an already-missing object must not error")
}
