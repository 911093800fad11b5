package store_test

import (
	"testing"

	"github.com/christopher22/matryoshka/store"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryCreatesSchema(t *testing.T) {
	s, err := store.Open(store.MemorySentinel)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec("INSERT INTO files (path, chunk_size) VALUES (?, ?)", "a/b", 1024)
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count))
	require.Equal(t, 1, count)
}

func TestOpenMemoryContainersAreIndependent(t *testing.T) {
	a, err := store.Open(store.MemorySentinel)
	require.NoError(t, err)
	defer a.Close()

	b, err := store.Open(store.MemorySentinel)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.DB().Exec("INSERT INTO files (path, chunk_size) VALUES (?, ?)", "only-in-a", 1024)
	require.NoError(t, err)

	var count int
	require.NoError(t, b.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count))
	require.Equal(t, 0, count)
}

func TestOpenOnDiskReopensExistingSchema(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/container.db"

	a, err := store.Open(path)
	require.NoError(t, err)
	_, err = a.DB().Exec("INSERT INTO files (path, chunk_size) VALUES (?, ?)", "persisted", 1024)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := store.Open(path)
	require.NoError(t, err)
	defer b.Close()

	var count int
	require.NoError(t, b.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&count))
	require.Equal(t, 1, count)
}

func TestForeignKeyCascadeEnabled(t *testing.T) {
	s, err := store.Open(store.MemorySentinel)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.DB().Exec("INSERT INTO files (path, chunk_size) VALUES (?, ?)", "f", 4)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = s.DB().Exec("INSERT INTO chunks (file_id, ordinal, payload) VALUES (?, 0, ?)", id, []byte("data"))
	require.NoError(t, err)

	_, err = s.DB().Exec("DELETE FROM files WHERE id = ?", id)
	require.NoError(t, err)

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM chunks WHERE file_id = ?", id).Scan(&count))
	require.Equal(t, 0, count)
}
