// Package merrors defines the unified error kinds shared by every Matryoshka
// component and the single-message form the C-ABI boundary exposes them as.
package merrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the failure that produced an Error. Only the rendered
// message crosses the C-ABI; Kind is for internal Go callers that want to
// branch on the failure (e.g. via errors.As).
type Kind int

const (
	// Storage covers backing-store failures: schema creation, queries,
	// constraint violations not otherwise classified.
	Storage Kind = iota
	// NotFound covers open/pull/size targeting a path or handle with no
	// backing row. Delete of a missing row is not an error: it reports false.
	NotFound
	// AlreadyExists covers push against a path that already has a files row.
	AlreadyExists
	// IO covers host-filesystem read (push) or write (pull) failures.
	IO
	// InvalidArgument covers malformed inputs, e.g. an empty VFS path.
	InvalidArgument
)

// String renders the kind for debug logging; it never crosses the ABI.
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case IO:
		return "io"
	case Storage:
		return "storage"
	case InvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is the single failure-carrier type every Matryoshka component
// returns. It wraps a cause (possibly nil) and tags it with a Kind.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

// Error renders the single user-facing message a Status carries across the
// C-ABI; it does not mention Kind, which is internal-only.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As work across a
// merrors.Error the way they would across any stdlib-wrapped error.
func (e *Error) Unwrap() error { return e.cause }

// New constructs a kind-tagged error with no further cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap tags cause with kind, attaching msg as context. It always returns a
// non-nil *Error, even when cause is nil; callers are expected to check
// cause (or the original error it came from) before calling Wrap.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, cause: errors.WithStack(cause)}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return Wrap(kind, cause, fmt.Sprintf(format, args...))
}

// Is reports whether the first *Error in err's chain carries the given
// Kind; an *Error wrapped inside that one is not consulted.
func Is(err error, kind Kind) bool {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Kind == kind
	}
	return false
}
