// Package errno defines the kernel's stable, negative error codes.
//
// These values cross the user/kernel boundary unchanged: a syscall handler
// that fails returns one of these as the frame's return value, and user code
// sees exactly this integer. The set and the numbers are part of the
// external contract and must not be renumbered.
package errno

import (
	"errors"
	"fmt"
)

// Errno is a kernel error code. Its zero value is not a valid error; use nil
// for success, the way every other Go error works.
type Errno int

const (
	Unspecified   Errno = -1
	NotFound      Errno = -2
	Unsupported   Errno = -3
	Busy          Errno = -6
	OutOfMemory   Errno = -7
	AccessDenied  Errno = -11
	InvalidArg    Errno = -12
	FDTableFull   Errno = -13
	Exists        Errno = -15
	BrokenPipe    Errno = -17
	BadExecutable Errno = -18
)

var names = map[Errno]string{
	Unspecified:   "unspecified",
	NotFound:      "not found",
	Unsupported:   "unsupported",
	Busy:          "busy",
	OutOfMemory:   "out of memory",
	AccessDenied:  "access denied",
	InvalidArg:    "invalid argument",
	FDTableFull:   "fd table full",
	Exists:        "exists",
	BrokenPipe:    "broken pipe",
	BadExecutable: "bad executable",
}

// Error implements the error interface, so an Errno can be returned
// anywhere a Go error is expected and still compares by value with ==.
func (e Errno) Error() string {
	if name, ok := names[e]; ok {
		return fmt.Sprintf("errno %d: %s", int(e), name)
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Is lets errors.Is(err, errno.NotFound) work even when err has been
// wrapped with fmt.Errorf("%w", ...).
func (e Errno) Is(target error) bool {
	other, ok := target.(Errno)
	return ok && other == e
}

// Code extracts the kernel error code from err, for marshalling a Go error
// into a syscall frame's return value. Any error that isn't an Errno (or
// doesn't wrap one) maps to Unspecified.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return int(e)
	}
	return int(Unspecified)
}
