// Package vfs is the facade: it owns one container's backing connection,
// validates inputs, and serializes every call against that connection so
// each handle only ever sees one operation in flight at a time. It has no
// cache of its own - every call reaches straight through to the store
// package's connection.
package vfs

import (
	"context"
	"sync"

	"github.com/christopher22/matryoshka/chunk"
	"github.com/christopher22/matryoshka/merrors"
	"github.com/christopher22/matryoshka/store"
)

// FS is a VFS handle bound to one container. Distinct FS values, even
// against the same database file, are independent, subject to the backing
// store's own file-locking policy.
type FS struct {
	// mu serializes every operation against db, mirroring the guarded
	// shared-state shape of the teacher's accounting.Stats
	// (sync.RWMutex-protected counters touched one call at a time).
	mu sync.Mutex
	db *store.Store
}

// Load opens (creating if absent) the container at path and ensures its
// schema exists, returning a fresh FS bound to it.
func Load(path string) (*FS, error) {
	if path == "" {
		return nil, merrors.New(merrors.InvalidArgument, "load: empty container path")
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &FS{db: db}, nil
}

// Close releases the backing connection. Closing an in-memory container
// discards its state.
func (f *FS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.db.Close()
}

// Push ingests the host file at hostPath into the VFS at vfsPath.
func (f *FS) Push(vfsPath, hostPath string, chunkSize int64) (*FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := chunk.Push(context.Background(), f.db, vfsPath, hostPath, chunkSize)
	if err != nil {
		return nil, err
	}
	return &FileHandle{fs: f, inner: h}, nil
}

// Open binds a fresh handle to the existing file at vfsPath.
func (f *FS) Open(vfsPath string) (*FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := chunk.Open(context.Background(), f.db, vfsPath)
	if err != nil {
		return nil, err
	}
	return &FileHandle{fs: f, inner: h}, nil
}

// Pull streams handle's file to hostPath, truncating it if it already
// exists.
func (f *FS) Pull(handle *FileHandle, hostPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOwner(handle); err != nil {
		return err
	}
	return chunk.Pull(context.Background(), f.db, handle.inner, hostPath)
}

// Size returns handle's derived total byte length.
func (f *FS) Size(handle *FileHandle) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOwner(handle); err != nil {
		return 0, err
	}
	return chunk.Size(context.Background(), f.db, handle.inner)
}

// Delete removes handle's file, reporting whether a row was actually
// removed.
func (f *FS) Delete(handle *FileHandle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkOwner(handle); err != nil {
		return false, err
	}
	return chunk.Delete(context.Background(), f.db, handle.inner)
}

// Find enumerates every path matching pattern (nil means "*"), invoking
// sink once per match, and returns the match count. sink must not call
// back into this FS: re-entrancy on the same handle is unsupported.
func (f *FS) Find(pattern *string, sink func(path string) error) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return chunk.Find(context.Background(), f.db, pattern, sink)
}

// checkOwner guards against a handle minted by a different FS being passed
// in - the C-ABI layer cannot make the Go type system enforce this for it,
// so vfs enforces it here before touching the connection.
func (f *FS) checkOwner(handle *FileHandle) error {
	if handle == nil || handle.fs != f {
		return merrors.New(merrors.InvalidArgument, "handle does not belong to this filesystem")
	}
	return nil
}
