// Command libmatryoshka is the cgo boundary for Matryoshka's C-ABI. It is
// deliberately not a CLI: it has no interactive main() - `go build
// -buildmode=c-shared` turns this package into libmatryoshka.so/.dylib/.dll
// plus a generated header, and every exported symbol below is the only way
// a foreign host reaches the library. All decision-making lives in package
// capi/vfs; this file's only job is marshaling C calling convention <-> Go.
package main

/*
#include <stdlib.h>

// mtk_find_callback is invoked once per Find match. path is a
// null-terminated UTF-8 string owned by the implementation for the
// duration of the call only; user_data is passed through untouched from
// the Find call.
typedef void (*mtk_find_callback)(const char* path, void* user_data);

// Go cannot call a C function pointer directly; this trampoline is the
// standard cgo workaround.
static inline void mtk_invoke_callback(mtk_find_callback cb, const char* path, void* user_data) {
	cb(path, user_data);
}
*/
import "C"

import (
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/christopher22/matryoshka/capi"
)

// status is the Go-side value behind a Status handle. The rendered C
// string is cached lazily on first mtk_get_message and freed exactly once
// by mtk_destroy_status; the returned message pointer is valid for exactly
// as long as the Status handle is.
type status struct {
	mu   sync.Mutex
	msg  string
	cstr *C.char
}

func newStatus(err error) C.uintptr_t {
	return C.uintptr_t(cgo.NewHandle(&status{msg: err.Error()}))
}

// mtk_load opens (creating if absent) the container at path.
// Returns a null FileSystem and a non-null status on failure.
//
//export mtk_load
func mtk_load(path *C.char, outStatus *C.uintptr_t) C.uintptr_t {
	h, err := capi.Load(C.GoString(path))
	if err != nil {
		*outStatus = newStatus(err)
		return 0
	}
	return C.uintptr_t(h)
}

// mtk_destroy_filesystem closes fsHandle's connection and releases it.
//
//export mtk_destroy_filesystem
func mtk_destroy_filesystem(fsHandle C.uintptr_t) {
	_ = capi.DestroyFileSystem(cgo.Handle(fsHandle))
}

// mtk_open binds a fresh FileHandle to an existing VFS path.
//
//export mtk_open
func mtk_open(fsHandle C.uintptr_t, vfsPath *C.char, outStatus *C.uintptr_t) C.uintptr_t {
	h, err := capi.Open(cgo.Handle(fsHandle), C.GoString(vfsPath))
	if err != nil {
		*outStatus = newStatus(err)
		return 0
	}
	return C.uintptr_t(h)
}

// mtk_push ingests hostPath into the VFS at vfsPath.
//
//export mtk_push
func mtk_push(fsHandle C.uintptr_t, vfsPath, hostPath *C.char, chunkSize C.int64_t, outStatus *C.uintptr_t) C.uintptr_t {
	h, err := capi.Push(cgo.Handle(fsHandle), C.GoString(vfsPath), C.GoString(hostPath), int64(chunkSize))
	if err != nil {
		*outStatus = newStatus(err)
		return 0
	}
	return C.uintptr_t(h)
}

// mtk_pull streams fileHandle's content to hostPath, truncating it if it
// already exists.
//
//export mtk_pull
func mtk_pull(fsHandle, fileHandle C.uintptr_t, hostPath *C.char) C.uintptr_t {
	err := capi.Pull(cgo.Handle(fsHandle), cgo.Handle(fileHandle), C.GoString(hostPath))
	if err != nil {
		return newStatus(err)
	}
	return 0
}

// mtk_get_size returns fileHandle's derived byte length; never negative
// for a valid handle.
//
//export mtk_get_size
func mtk_get_size(fsHandle, fileHandle C.uintptr_t) C.int64_t {
	size, err := capi.GetSize(cgo.Handle(fsHandle), cgo.Handle(fileHandle))
	if err != nil {
		return -1
	}
	return C.int64_t(size)
}

// mtk_delete removes fileHandle's file, returning 1 if a row was removed,
// 0 otherwise - deleting an already-gone file is never an error.
//
//export mtk_delete
func mtk_delete(fsHandle, fileHandle C.uintptr_t) C.int {
	ok, err := capi.Delete(cgo.Handle(fsHandle), cgo.Handle(fileHandle))
	if err != nil || !ok {
		return 0
	}
	return 1
}

// mtk_find enumerates paths matching pattern (NULL means "*"), invoking cb
// once per match, and returns the match count. Find never reports failure
// through a Status: an invalid fsHandle yields 0 matches.
//
//export mtk_find
func mtk_find(fsHandle C.uintptr_t, pattern *C.char, cb C.mtk_find_callback, userData unsafe.Pointer) C.int {
	var patternPtr *string
	if pattern != nil {
		p := C.GoString(pattern)
		patternPtr = &p
	}

	n, err := capi.Find(cgo.Handle(fsHandle), patternPtr, func(path string) error {
		cpath := C.CString(path)
		defer C.free(unsafe.Pointer(cpath))
		C.mtk_invoke_callback(cb, cpath, userData)
		return nil
	})
	if err != nil {
		return 0
	}
	return C.int(n)
}

// mtk_get_message returns a pointer to statusHandle's null-terminated
// UTF-8 message, valid until mtk_destroy_status is called on the same
// handle.
//
//export mtk_get_message
func mtk_get_message(statusHandle C.uintptr_t) (result *C.char) {
	s, ok := statusValue(cgo.Handle(statusHandle))
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cstr == nil {
		s.cstr = C.CString(s.msg)
	}
	return s.cstr
}

// mtk_destroy_status frees statusHandle's cached message (if any) and
// releases the handle.
//
//export mtk_destroy_status
func mtk_destroy_status(statusHandle C.uintptr_t) {
	h := cgo.Handle(statusHandle)
	if s, ok := statusValue(h); ok {
		s.mu.Lock()
		if s.cstr != nil {
			C.free(unsafe.Pointer(s.cstr))
			s.cstr = nil
		}
		s.mu.Unlock()
		h.Delete()
	}
}

// statusValue recovers h's *status, turning the panic an invalid or
// already-destroyed cgo.Handle raises into a plain false rather than
// crashing the host process on a misbehaving caller.
func statusValue(h cgo.Handle) (s *status, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = nil, false
		}
	}()
	s, ok = h.Value().(*status)
	return
}

// mtk_destroy_file_handle releases fileHandle without touching the
// underlying file.
//
//export mtk_destroy_file_handle
func mtk_destroy_file_handle(fileHandle C.uintptr_t) {
	_ = capi.DestroyFileHandle(cgo.Handle(fileHandle))
}

// main is required by package main but never runs: hosts load this as a
// shared library, never exec it.
func main() {}
