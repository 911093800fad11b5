package vfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/christopher22/matryoshka/merrors"
	"github.com/christopher22/matryoshka/store"
	"github.com/christopher22/matryoshka/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) *vfs.FS {
	t.Helper()
	f, err := vfs.Load(store.MemorySentinel)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func hostFile(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestPushEmptyFileSizeZeroPullDelete(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{})

	h, err := f.Push("folder/file", in, -1)
	require.NoError(t, err)

	size, err := f.Size(h)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, f.Pull(h, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, got)

	ok, err := f.Delete(h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPushExactChunkBoundaryRoundTrips(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{42, 32, 44})

	h, err := f.Push("folder/file", in, 3)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, f.Pull(h, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 32, 44}, got)
}

func TestPushChunkLargerThanFileRoundTrips(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{42, 32, 44})

	h, err := f.Push("folder/file", in, 4)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, f.Pull(h, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 32, 44}, got)
}

func TestPushDuplicatePathAlreadyExists(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{1})

	_, err := f.Push("folder/file", in, -1)
	require.NoError(t, err)

	_, err = f.Push("folder/file", in, -1)
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.AlreadyExists))
}

func TestOpenWithoutPriorPushNotFound(t *testing.T) {
	f := load(t)

	_, err := f.Open("folder/file")
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.NotFound))
}

func TestFindPatternsAcrossDirectories(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{1})

	for _, p := range []string{"folder1/file1", "folder1/file2", "folder2/file1"} {
		_, err := f.Push(p, in, -1)
		require.NoError(t, err)
	}

	count := func(pattern *string) int {
		n, err := f.Find(pattern, func(string) error { return nil })
		require.NoError(t, err)
		return n
	}

	star := "*"
	assert.Equal(t, 3, count(&star))
	p1 := "folder?/file1"
	assert.Equal(t, 2, count(&p1))
	p2 := "*/file1"
	assert.Equal(t, 2, count(&p2))
	p3 := "folder2/*"
	assert.Equal(t, 1, count(&p3))
}

// Invariant 4: second delete on any handle for the same path returns false.
func TestDeleteIdempotenceAcrossHandles(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte{1})

	h1, err := f.Push("p", in, -1)
	require.NoError(t, err)
	h2, err := f.Open("p")
	require.NoError(t, err)

	ok, err := f.Delete(h1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Delete(h2)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Handles from a different FS must not be usable against this one.
func TestHandleFromAnotherFSRejected(t *testing.T) {
	a := load(t)
	b := load(t)
	in := hostFile(t, []byte{1})

	h, err := a.Push("p", in, -1)
	require.NoError(t, err)

	_, err = b.Size(h)
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.InvalidArgument))
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := vfs.Load("")
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.InvalidArgument))
}

func TestPullOverwritesExistingHostFile(t *testing.T) {
	f := load(t)
	in := hostFile(t, []byte("new content"))

	h, err := f.Push("p", in, -1)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(out, []byte("stale content that is longer"), 0o644))

	require.NoError(t, f.Pull(h, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))
}
