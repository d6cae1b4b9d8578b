// Package errs defines the error taxonomy shared across the pipeline core.
//
// Every fallible operation in the core returns an error that, when relevant,
// wraps a *Error carrying one of the Kind values below. Callers (the CLI,
// the orchestrator's retry-free executor) use Is/As to branch on kind rather
// than matching error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed, independent of the Go type that
// carries it. Disposition (rollback or not, retriable or not) is documented
// per kind; the core itself never retries.
type Kind int

const (
	// InvalidInput covers a bad path, an empty pipeline, or an unknown
	// pipeline id. Reported to the caller; no rollback needed.
	InvalidInput Kind = iota
	// InvalidStageOrder means the forward chain violates the ordering
	// rules. Rejected at validation, before any I/O.
	InvalidStageOrder
	// IoError covers read/write/fsync/rename failure. Triggers writer
	// rollback.
	IoError
	// CodecError covers compression/encryption/hash failure. Cancels the
	// run and triggers rollback.
	CodecError
	// IntegrityFailure covers an AEAD tag mismatch, a final digest
	// mismatch, an unknown magic/version, or a frame CRC mismatch.
	// Rolls back on the write side; on restore, the partial target is
	// deleted.
	IntegrityFailure
	// Cancelled means the run was cancelled externally.
	Cancelled
	// InternalError is an invariant violation, e.g. a sequence gap.
	// Non-retriable.
	InternalError
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case InvalidStageOrder:
		return "invalid_stage_order"
	case IoError:
		return "io_error"
	case CodecError:
		return "codec_error"
	case IntegrityFailure:
		return "integrity_failure"
	case Cancelled:
		return "cancelled"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Error is the concrete carrier for a Kind plus a wrapped cause.
type Error struct {
	Kind Kind
	Op   string // short operation name, e.g. "executor.writeChunk"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with the given kind, operation label, and cause.
// cause may be nil.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Wrap constructs an *Error from a plain message, following the wrap-with-%w
// idiom used throughout the codebase.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	if cause != nil {
		return &Error{Kind: kind, Op: op, Err: fmt.Errorf("%s: %w", msg, cause)}
	}
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error. Returns InternalError, false if no *Error is found in the chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return InternalError, false
}

// Is reports whether err's kind (or any wrapped *Error's kind) equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
