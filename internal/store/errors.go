package store

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the closed taxonomy every store implementation
// translates backend failures into. ErrTransient marks retryable failures;
// everything else is terminal for the current operation.
var (
	// ErrTransient marks failures worth retrying: network errors, server
	// errors and rate limiting.
	ErrTransient = errors.New("transient store error")
	// ErrDuplicateEmail is returned when the email uniqueness constraint
	// rejects an insert. The server's verdict is authoritative even when a
	// prior client-side existence check reported the address available.
	ErrDuplicateEmail = errors.New("email already on the waitlist")
	// ErrMissingField is returned when the store rejects an insert for a
	// null required column.
	ErrMissingField = errors.New("missing required field")
	// ErrReferential is returned on foreign-key violations.
	ErrReferential = errors.New("referential integrity violation")
	// ErrConfiguration indicates the table or schema does not exist; the
	// deployment is broken, not the request.
	ErrConfiguration = errors.New("store not configured")
	// ErrPermission is returned when row-level security or grants reject
	// the operation.
	ErrPermission = errors.New("permission denied by store")
)

// Backend error codes the remote store reports, per the PostgreSQL error
// code vocabulary PostgREST passes through.
const (
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUndefinedTable      = "42P01"
	codeInsufficientPriv    = "42501"
)

// WrapTransient annotates an error so callers can detect retryable
// failures with errors.Is.
func WrapTransient(err error) error {
	if err == nil {
		return ErrTransient
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// TranslateCode maps a backend error code to the taxonomy. Unknown codes
// fall back to a terminal error carrying the original message.
func TranslateCode(code, message string) error {
	switch code {
	case codeUniqueViolation:
		return ErrDuplicateEmail
	case codeNotNullViolation:
		return fmt.Errorf("%w: %s", ErrMissingField, message)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferential, message)
	case codeUndefinedTable:
		return fmt.Errorf("%w: %s", ErrConfiguration, message)
	case codeInsufficientPriv:
		return fmt.Errorf("%w: %s", ErrPermission, message)
	default:
		if message == "" {
			message = "unknown store error"
		}
		return fmt.Errorf("store error %s: %s", code, message)
	}
}

// Retryable reports whether the error is worth another attempt. Only
// failures marked transient qualify; taxonomy errors and unknown backend
// codes are terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
