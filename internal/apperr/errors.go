// Package apperr defines the error taxonomy shared by all services.
//
// Every internal operation either succeeds fully or returns one of these
// types; no partial write is ever reported as success. Handlers translate
// them to HTTP statuses, nothing else inspects backing-store errors directly.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing summary, scan, batch or file.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NotFound builds a NotFoundError.
func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// ConflictError reports a state conflict: session limit reached, duplicate
// scan, or finishing an already-completed session. Terminal, but benign for
// some callers (a racing finisher treats "already completed" as success).
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflictf builds a ConflictError.
func Conflictf(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// RetriableError wraps a transient backing-store failure (quota, rate limit,
// timeout). The store access layer retries these with backoff.
type RetriableError struct {
	Err error
}

func (e *RetriableError) Error() string { return "retriable store error: " + e.Err.Error() }
func (e *RetriableError) Unwrap() error { return e.Err }

// Retriable wraps err as transient.
func Retriable(err error) error {
	if err == nil {
		return nil
	}
	return &RetriableError{Err: err}
}

// StoreUnavailableError is surfaced once retries are exhausted. Terminal from
// the caller's perspective.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string { return "backing store unavailable: " + e.Err.Error() }
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err as a terminal store failure.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &StoreUnavailableError{Err: err}
}

// IntegrityError reports a violated internal invariant, e.g. duplicate
// summary rows for one key. Logged loudly and repaired via the cleanup
// operations, never auto-corrected inline.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string { return "integrity violation: " + e.Detail }

// Integrityf builds an IntegrityError.
func Integrityf(format string, args ...interface{}) error {
	return &IntegrityError{Detail: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

func IsRetriable(err error) bool {
	var t *RetriableError
	return errors.As(err, &t)
}

func IsUnavailable(err error) bool {
	var t *StoreUnavailableError
	return errors.As(err, &t)
}

func IsIntegrity(err error) bool {
	var t *IntegrityError
	return errors.As(err, &t)
}
