// Package tsyncerrors defines the error kinds used to classify failures
// across the engine so that command-line entry points can map them to exit
// codes without parsing error strings. Wrapping and message construction
// still go through github.com/pkg/errors; this package only adds the
// classification layer on top.
package tsyncerrors

import (
	"errors"
	"fmt"
)

// Kind identifies which of the four failure categories an error belongs to.
type Kind int

const (
	// KindIO covers read/write/seek/open failures against the filesystem,
	// a socket, or a subprocess pipe.
	KindIO Kind = iota
	// KindFormat covers malformed index files, delta files, or protocol
	// frames: bad magic, unsupported version, truncated records.
	KindFormat
	// KindVerify covers reconstruction failures detected at apply time:
	// an unresolved KNOWN block, an out-of-range BACKREF, or an ENDFILE
	// length mismatch.
	KindVerify
	// KindUsage covers invalid command-line arguments and configuration.
	KindUsage
)

// String renders the kind for log messages and error text.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindFormat:
		return "format error"
	case KindVerify:
		return "verify error"
	case KindUsage:
		return "usage error"
	default:
		return "error"
	}
}

// ExitCode returns the process exit code associated with the kind, per the
// CLI surface's exit code table: 1 for usage errors, 2 for I/O errors, 3 for
// format/verification errors.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return 1
	case KindIO:
		return 2
	case KindFormat, KindVerify:
		return 3
	default:
		return 1
	}
}

// Error is a classified error: a Kind plus the wrapped cause.
type Error struct {
	Kind  Kind
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a classified error wrapping cause under kind. If cause is
// nil, New returns nil, mirroring errors.Wrap's nil-passthrough convention.
func New(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// IO wraps cause as an I/O error.
func IO(cause error) error { return New(KindIO, cause) }

// Format wraps cause as a format error.
func Format(cause error) error { return New(KindFormat, cause) }

// Verify wraps cause as a verification error.
func Verify(cause error) error { return New(KindVerify, cause) }

// Usage wraps cause as a usage error.
func Usage(cause error) error { return New(KindUsage, cause) }

// KindOf classifies err, walking its Unwrap chain for a *Error. If none is
// found, it defaults to KindIO, since unclassified failures most commonly
// originate from underlying system calls.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindIO
}

// ExitCode classifies err and returns its corresponding process exit code.
// A nil error yields exit code 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
