// ABOUTME: Typed error kinds surfaced by directory synchronization
// ABOUTME: Lets callers branch on configuration, auth, remote and invariant failures
package sync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind classifies a sync failure.
type ErrorKind string

const (
	KindConfiguration      ErrorKind = "configuration"
	KindCacheRefresh       ErrorKind = "cache_refresh"
	KindAuthentication     ErrorKind = "authentication"
	KindRemoteAPI          ErrorKind = "remote_api"
	KindInvariantViolation ErrorKind = "invariant_violation"
)

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrConfiguration      = errors.New(string(KindConfiguration))
	ErrCacheRefresh       = errors.New(string(KindCacheRefresh))
	ErrAuthentication     = errors.New(string(KindAuthentication))
	ErrRemoteAPI          = errors.New(string(KindRemoteAPI))
	ErrInvariantViolation = errors.New(string(KindInvariantViolation))
)

var sentinels = map[ErrorKind]error{
	KindConfiguration:      ErrConfiguration,
	KindCacheRefresh:       ErrCacheRefresh,
	KindAuthentication:     ErrAuthentication,
	KindRemoteAPI:          ErrRemoteAPI,
	KindInvariantViolation: ErrInvariantViolation,
}

// Error is a classified sync failure.
type Error struct {
	Kind      ErrorKind
	Op        string
	ContactID uuid.UUID
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ContactID != uuid.Nil {
		msg += fmt.Sprintf(" (contact %s)", e.ContactID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func configurationError(format string, args ...any) *Error {
	return newError(KindConfiguration, "configure", fmt.Errorf(format, args...))
}

func invariantError(op string, contactID uuid.UUID, format string, args ...any) *Error {
	return &Error{Kind: KindInvariantViolation, Op: op, ContactID: contactID, Err: fmt.Errorf(format, args...)}
}

// withContact attaches a contact id to a classified error, classifying
// anything else as a remote API failure.
func withContact(err error, op string, contactID uuid.UUID) error {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		if syncErr.ContactID == uuid.Nil {
			syncErr.ContactID = contactID
		}
		if syncErr.Op == "" {
			syncErr.Op = op
		}
		return syncErr
	}
	return &Error{Kind: KindRemoteAPI, Op: op, ContactID: contactID, Err: err}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return ""
}
