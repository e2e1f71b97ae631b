// Package plume provides a Go client for the Plume setup API, used to
// drive first-run installation programmatically (headless provisioning,
// infrastructure automation, integration tests).
package plume

import (
	"errors"
	"fmt"
)

// Error represents an error from the Plume API with the HTTP status code
// and the server's outcome code and message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plume: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsInvalidInput returns true if the server rejected the request body (422).
func IsInvalidInput(err error) bool {
	return hasCode(err, "INVALID_INPUT")
}

// IsBusy returns true if another setup operation holds the install lock.
// The request can be retried after a short wait.
func IsBusy(err error) bool {
	return hasCode(err, "IN_PROGRESS")
}

// IsConflict returns true if the operation conflicts with existing state,
// e.g. the admin account already exists or installation is finalized.
func IsConflict(err error) bool {
	return hasCode(err, "CONFLICT")
}

// IsStoreUnreachable returns true if the server could not reach the
// configured database (503).
func IsStoreUnreachable(err error) bool {
	return hasCode(err, "STORE_UNREACHABLE")
}

// IsIntegrityFailure returns true if schema verification failed after
// initialization. The database needs a repair run.
func IsIntegrityFailure(err error) bool {
	return hasCode(err, "INTEGRITY_FAILURE")
}

// IsRateLimited returns true if the client is being throttled (429).
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
