package sftp

// Error taxonomy and status-code mapping, spec.md §7.

import (
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// kind is the closed set of error kinds a backend or the dispatcher can
// raise. Each kind maps to exactly one status code; kindNotAHandle and
// kindBackendFailure both surface as FAILURE.
type kind int

const (
	// kindForbidden: verify rejected the path. Surfaces as PERMISSION_DENIED.
	kindForbidden kind = iota + 1
	// kindNotFound: target does not exist. Surfaces as NO_SUCH_FILE.
	kindNotFound
	// kindNotAHandle: handle string is not in the table. Surfaces as FAILURE.
	kindNotAHandle
	// kindUnsupported: opcode has no registered handler. Surfaces as
	// OP_UNSUPPORTED.
	kindUnsupported
	// kindBackendFailure: anything else the backend raised. Surfaces as
	// FAILURE.
	kindBackendFailure
)

// kindError wraps a kind with an optional human-readable message.
type kindError struct {
	kind kind
	msg  string
}

func (e *kindError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.kind.String()
}

func (k kind) String() string {
	switch k {
	case kindForbidden:
		return "forbidden"
	case kindNotFound:
		return "not found"
	case kindNotAHandle:
		return "not a handle"
	case kindUnsupported:
		return "operation unsupported"
	case kindBackendFailure:
		return "failure"
	default:
		return "failure"
	}
}

// ErrForbidden is returned by a Backend when verify rejects a path
// (jail-escape attempt, absolute path outside the root).
var ErrForbidden error = &kindError{kind: kindForbidden}

// ErrNotFound is returned by a Backend when the named entry does not exist.
var ErrNotFound error = &kindError{kind: kindNotFound}

// errNotAHandle is raised internally when a client references an
// unknown handle string.
var errNotAHandle error = &kindError{kind: kindNotAHandle}

// errUnsupported is raised internally for an opcode with no registered
// handler.
var errUnsupported error = &kindError{kind: kindUnsupported}

// Forbiddenf and NotFoundf build a kind-tagged error with a message, for
// backends that want to report a specific reason.
func Forbiddenf(format string, args ...interface{}) error {
	return &kindError{kind: kindForbidden, msg: errors.Errorf(format, args...).Error()}
}

func NotFoundf(format string, args ...interface{}) error {
	return &kindError{kind: kindNotFound, msg: errors.Errorf(format, args...).Error()}
}

// statusCode maps an arbitrary backend error to one of the SFTP status
// codes spec.md §6 names, per the propagation policy in spec.md §7.
func statusCode(err error) uint32 {
	if err == nil {
		return fxOK
	}
	switch errors.Cause(err) {
	case io.EOF:
		return fxEOF
	case os.ErrNotExist:
		return fxNoSuchFile
	}

	var ke *kindError
	if errors.As(err, &ke) {
		switch ke.kind {
		case kindForbidden:
			return fxPermissionDenied
		case kindNotFound:
			return fxNoSuchFile
		case kindNotAHandle, kindBackendFailure:
			return fxFailure
		case kindUnsupported:
			return fxOpUnsupported
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ENOENT {
			return fxNoSuchFile
		}
		return fxFailure
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		if errors.Is(pathErr.Err, os.ErrNotExist) {
			return fxNoSuchFile
		}
		if errno, ok := pathErr.Err.(syscall.Errno); ok && errno == syscall.ENOENT {
			return fxNoSuchFile
		}
	}

	return fxFailure
}
