// Package errs implements the error taxonomy used across the module:
// transient/protocol/state/resource/fatal, each mapping to a stable
// wire status code.
package errs

import "fmt"

// Kind classifies why an operation failed and what the caller should
// do about it.
type Kind int

const (
	// Transient failures (network timeout, lock contention, peer
	// unreachable) should be retried with backoff before surfacing.
	Transient Kind = iota
	// Protocol failures (bad signature/MAC, stale sequence/timestamp,
	// schema mismatch) are never retried; the offending peer is
	// credited a violation.
	Protocol
	// State failures (double-spend, invalid block, duplicate commit)
	// are rejected with a specific cause code; no retry.
	State
	// Resource failures (disk full, memory pressure, rate limit)
	// shed load and signal the caller to back off.
	Resource
	// Fatal failures (corrupted state, missing identity, crypto
	// primitive failure) halt the affected subsystem.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Protocol:
		return "protocol"
	case State:
		return "state"
	case Resource:
		return "resource"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is a stable, caller-facing cause code distinct from the HTTP-like
// status code, so callers can switch on cause without string matching.
type Code string

const (
	CodeSignatureInvalid  Code = "signature_invalid"
	CodeMACMismatch       Code = "mac_mismatch"
	CodeStaleSequence     Code = "stale_sequence"
	CodeStaleTimestamp    Code = "stale_timestamp"
	CodeSchemaMismatch    Code = "schema_mismatch"
	CodeDoubleSpend       Code = "double_spend"
	CodeInvalidBlock      Code = "invalid_block"
	CodeDuplicateCommit   Code = "duplicate_commit"
	CodeUnknownKey        Code = "unknown_key"
	CodeAccessDenied      Code = "access_denied"
	CodeOversized         Code = "oversized"
	CodeRateLimited       Code = "rate_limited"
	CodeUnavailable       Code = "unavailable"
	CodeInternal          Code = "internal"
)

// Error is the module's standard error value. It always carries a Kind
// so callers can branch on retry policy without inspecting strings.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode maps an Error's Code to the wire protocol's HTTP-like
// status code, per the module's error handling design.
func (e *Error) StatusCode() int {
	switch e.Code {
	case CodeSchemaMismatch:
		return 400
	case CodeSignatureInvalid, CodeMACMismatch:
		return 401
	case CodeAccessDenied:
		return 403
	case CodeUnknownKey:
		return 404
	case CodeDoubleSpend, CodeDuplicateCommit:
		return 409
	case CodeOversized:
		return 413
	case CodeRateLimited:
		return 429
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

// New constructs an Error, wrapping cause if non-nil.
func New(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Transientf builds a Transient error with CodeUnavailable, formatted
// like fmt.Errorf.
func Transientf(cause error, format string, args ...any) *Error {
	return New(Transient, CodeUnavailable, fmt.Sprintf(format, args...), cause)
}

// Protocolf builds a Protocol error carrying the given cause code.
func Protocolf(code Code, format string, args ...any) *Error {
	return New(Protocol, code, fmt.Sprintf(format, args...), nil)
}

// Statef builds a State error carrying the given cause code.
func Statef(code Code, format string, args ...any) *Error {
	return New(State, code, fmt.Sprintf(format, args...), nil)
}

// Resourcef builds a Resource error carrying the given cause code.
func Resourcef(code Code, format string, args ...any) *Error {
	return New(Resource, code, fmt.Sprintf(format, args...), nil)
}

// Fatalf builds a Fatal error wrapping cause.
func Fatalf(cause error, format string, args ...any) *Error {
	return New(Fatal, CodeInternal, fmt.Sprintf(format, args...), cause)
}

// AsError reports whether err is (or wraps) an *Error and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := As(err, &e)
	return e, ok
}

// As walks err's Unwrap() error chain and stores the first *Error it
// finds in target. Errors that wrap several causes through
// Unwrap() []error (such as errors.Join) are not searched.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
