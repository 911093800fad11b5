package capi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/christopher22/matryoshka/capi"
	"github.com/christopher22/matryoshka/merrors"
	"github.com/christopher22/matryoshka/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostFile(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestLoadPushPullDeleteRoundTrip(t *testing.T) {
	fsHandle, err := capi.Load(store.MemorySentinel)
	require.NoError(t, err)
	defer func() { require.NoError(t, capi.DestroyFileSystem(fsHandle)) }()

	in := hostFile(t, []byte{1, 2, 3, 4, 5})
	fileHandle, err := capi.Push(fsHandle, "folder/file", in, 2)
	require.NoError(t, err)
	defer func() { require.NoError(t, capi.DestroyFileHandle(fileHandle)) }()

	size, err := capi.GetSize(fsHandle, fileHandle)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, capi.Pull(fsHandle, fileHandle, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)

	ok, err := capi.Delete(fsHandle, fileHandle)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = capi.Delete(fsHandle, fileHandle)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	fsHandle, err := capi.Load(store.MemorySentinel)
	require.NoError(t, err)
	defer func() { require.NoError(t, capi.DestroyFileSystem(fsHandle)) }()

	_, err = capi.Open(fsHandle, "nope")
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.NotFound))
}

func TestFindEnumeratesMatches(t *testing.T) {
	fsHandle, err := capi.Load(store.MemorySentinel)
	require.NoError(t, err)
	defer func() { require.NoError(t, capi.DestroyFileSystem(fsHandle)) }()

	in := hostFile(t, []byte{1})
	for _, p := range []string{"a/x", "b/x", "a/y"} {
		_, err := capi.Push(fsHandle, p, in, -1)
		require.NoError(t, err)
	}

	var got []string
	n, err := capi.Find(fsHandle, nil, func(path string) error {
		got = append(got, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, got, 3)
}

func TestInvalidHandleIsRejectedNotPanicked(t *testing.T) {
	_, err := capi.Open(0, "p")
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.InvalidArgument))
}

func TestDestroyFileSystemTwiceFailsCleanly(t *testing.T) {
	fsHandle, err := capi.Load(store.MemorySentinel)
	require.NoError(t, err)
	require.NoError(t, capi.DestroyFileSystem(fsHandle))

	err = capi.DestroyFileSystem(fsHandle)
	require.Error(t, err)
	assert.True(t, merrors.Is(err, merrors.InvalidArgument))
}
