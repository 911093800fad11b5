package vfs

import "github.com/christopher22/matryoshka/chunk"

// FileHandle is an opaque reference to one existing file, bound to the FS
// that minted it. Destroying a FileHandle - which this package leaves to
// garbage collection, since vfs is a plain Go API; capi is where
// destruction becomes an explicit, caller-driven call - never affects the
// underlying file.
type FileHandle struct {
	fs    *FS
	inner *chunk.Handle
}

// Path returns the VFS path this handle is bound to.
func (h *FileHandle) Path() string { return h.inner.Path }
