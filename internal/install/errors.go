// Package install implements first-run setup: deriving the current wizard
// step, bootstrapping the database, creating the first admin account, and
// triggering a restart after configuration changes. Every mutating
// operation runs under a composite lock and is idempotent.
package install

import (
	"errors"
	"fmt"
)

// Kind classifies a setup failure so callers can tell "fix input" from
// "retry later" from "operator intervention needed".
type Kind int

const (
	// KindInternal is an unexpected fault; details are logged, not leaked.
	KindInternal Kind = iota
	// KindValidation is bad or missing input/config; never auto-retried.
	KindValidation
	// KindConflict is "in progress" or a duplicate; the caller may retry later.
	KindConflict
	// KindConnectivity is an unreachable store, reported distinctly so
	// state derivation never regresses on a transient outage.
	KindConnectivity
	// KindIntegrity is a failed post-creation verification.
	KindIntegrity
)

// Error is a classified setup failure.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// Connectivity wraps err as a KindConnectivity error.
func Connectivity(msg string, err error) *Error {
	return &Error{Kind: KindConnectivity, msg: msg, err: err}
}

// Integrity wraps err as a KindIntegrity error.
func Integrity(msg string, err error) *Error {
	return &Error{Kind: KindIntegrity, msg: msg, err: err}
}

// Internal wraps err as a KindInternal error.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, msg: msg, err: err}
}

// KindOf extracts the classification from err, defaulting to KindInternal
// for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
