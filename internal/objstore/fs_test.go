package objstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFSStore(t *testing.T) Store {
	t.Helper()
	s, err := New(context.Background(), Config{Backend: "fs", RootDir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestFSStoreBufferRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openFSStore(t)

	data := []byte("YearCode,AreaCode,Data\n2023,W06000015,1.5\n")
	require.NoError(t, s.SaveBuffer(ctx, "uploads/abc", "observations.csv", data))

	got, err := s.LoadBuffer(ctx, "uploads/abc", "observations.csv")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStoreStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openFSStore(t)

	data := []byte("stream payload")
	require.NoError(t, s.SaveStream(ctx, "uploads/abc", "blob.bin", bytes.NewReader(data)))

	rc, err := s.LoadStream(ctx, "uploads/abc", "blob.bin")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openFSStore(t)

	require.NoError(t, s.SaveBuffer(ctx, "uploads/x", "a.csv", []byte("a")))
	require.NoError(t, s.SaveBuffer(ctx, "uploads/x", "b.csv", []byte("b")))

	files, err := s.ListFiles(ctx, "uploads/x")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.csv", "b.csv"}, files)

	require.NoError(t, s.Delete(ctx, "uploads/x", "a.csv"))
	files, err = s.ListFiles(ctx, "uploads/x")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv"}, files)

	require.NoError(t, s.DeleteDirectory(ctx, "uploads/x"))
	files, err = s.ListFiles(ctx, "uploads/x")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFSStoreLoadMissing(t *testing.T) {
	ctx := context.Background()
	s := openFSStore(t)

	_, err := s.LoadBuffer(ctx, "uploads/none", "ghost.csv")
	require.Error(t, err)
}

func TestFSStorePathEscapeRejected(t *testing.T) {
	ctx := context.Background()
	s := openFSStore(t)

	err := s.SaveBuffer(ctx, "../outside", "x", []byte("x"))
	require.Error(t, err)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "ftp"})
	require.Error(t, err)
}
