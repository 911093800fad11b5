// Package capi is the Go half of the C-ABI surface: it mints opaque
// runtime/cgo.Handle values for FileSystem and FileHandle objects and
// exposes plain-Go wrappers around package vfs that the cgo shim in
// cmd/libmatryoshka can call without touching vfs directly. Keeping the
// logic here (rather than inline in the cgo file) means it can be unit
// tested with `go test` alone - no C compiler involved.
//
// Handles are minted with runtime/cgo.Handle rather than a hand-rolled
// map[uintptr]any registry: it is the standard library's purpose-built,
// GC-safe mechanism for handing a foreign caller an opaque reference to a
// Go value, and it enforces a strict one-destroy-call-per-handle
// discipline - a Value() call on a zero or already-deleted handle panics
// rather than silently succeeding. Every function here resolves handles
// through handleValue, which recovers that panic and returns an
// InvalidArgument error instead.
package capi

import (
	"runtime/cgo"

	"github.com/christopher22/matryoshka/merrors"
	"github.com/christopher22/matryoshka/vfs"
)

// Load opens (or creates) the container at path and mints a handle to it.
func Load(path string) (cgo.Handle, error) {
	f, err := vfs.Load(path)
	if err != nil {
		return 0, err
	}
	return cgo.NewHandle(f), nil
}

// DestroyFileSystem closes fsHandle's connection and releases the handle.
func DestroyFileSystem(fsHandle cgo.Handle) error {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return err
	}
	fsHandle.Delete()
	return f.Close()
}

// Open binds a fresh handle to the existing file at vfsPath.
func Open(fsHandle cgo.Handle, vfsPath string) (cgo.Handle, error) {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.Open(vfsPath)
	if err != nil {
		return 0, err
	}
	return cgo.NewHandle(h), nil
}

// Push ingests hostPath into the VFS at vfsPath.
func Push(fsHandle cgo.Handle, vfsPath, hostPath string, chunkSize int64) (cgo.Handle, error) {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return 0, err
	}
	h, err := f.Push(vfsPath, hostPath, chunkSize)
	if err != nil {
		return 0, err
	}
	return cgo.NewHandle(h), nil
}

// Pull streams fileHandle's content to hostPath.
func Pull(fsHandle, fileHandle cgo.Handle, hostPath string) error {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return err
	}
	h, err := resolveFileHandle(fileHandle)
	if err != nil {
		return err
	}
	return f.Pull(h, hostPath)
}

// GetSize returns fileHandle's derived byte length.
func GetSize(fsHandle, fileHandle cgo.Handle) (int64, error) {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return 0, err
	}
	h, err := resolveFileHandle(fileHandle)
	if err != nil {
		return 0, err
	}
	return f.Size(h)
}

// Delete removes fileHandle's file, reporting whether a row was removed.
func Delete(fsHandle, fileHandle cgo.Handle) (bool, error) {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return false, err
	}
	h, err := resolveFileHandle(fileHandle)
	if err != nil {
		return false, err
	}
	return f.Delete(h)
}

// Find enumerates paths matching pattern (nil means "*"), invoking sink
// once per match, and returns the match count.
func Find(fsHandle cgo.Handle, pattern *string, sink func(path string) error) (int, error) {
	f, err := resolveFS(fsHandle)
	if err != nil {
		return 0, err
	}
	return f.Find(pattern, sink)
}

// DestroyFileHandle releases fileHandle. It never touches the VFS: the
// underlying file is untouched.
func DestroyFileHandle(fileHandle cgo.Handle) error {
	if _, err := resolveFileHandle(fileHandle); err != nil {
		return err
	}
	fileHandle.Delete()
	return nil
}

// handleValue recovers a handle's underlying value, turning the panic
// cgo.Handle.Value raises for a zero, deleted, or otherwise foreign handle
// into an ordinary error - a misbehaving host must get a Status back, not
// bring the whole process down.
func handleValue(h cgo.Handle) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, merrors.New(merrors.InvalidArgument, "invalid or already-destroyed handle")
		}
	}()
	return h.Value(), nil
}

func resolveFS(h cgo.Handle) (*vfs.FS, error) {
	raw, err := handleValue(h)
	if err != nil {
		return nil, err
	}
	v, ok := raw.(*vfs.FS)
	if !ok {
		return nil, merrors.New(merrors.InvalidArgument, "invalid filesystem handle")
	}
	return v, nil
}

func resolveFileHandle(h cgo.Handle) (*vfs.FileHandle, error) {
	raw, err := handleValue(h)
	if err != nil {
		return nil, err
	}
	v, ok := raw.(*vfs.FileHandle)
	if !ok {
		return nil, merrors.New(merrors.InvalidArgument, "invalid file handle")
	}
	return v, nil
}
