package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is.
var (
	ErrAuth              = errors.New("authentication failed")
	ErrRepository        = errors.New("repository failure")
	ErrStorage           = errors.New("storage failure")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must not be negative")
	ErrValidation        = errors.New("validation failed")
)

// ErrSessionExpired is an ErrNotAuthenticated caused by a session that could
// no longer be renewed.
var ErrSessionExpired = fmt.Errorf("session expired: %w", ErrNotAuthenticated)

// AuthError is a sign-up or sign-in rejected by the auth backend.
// Reason is the backend's message, suitable for display.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string { return e.Reason }

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuth}
	}
	return []error{ErrAuth, e.Err}
}

// RepositoryError is a failed query or mutation against a required collection.
type RepositoryError struct {
	Op    string
	Table string
	Err   error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RepositoryError) Unwrap() []error { return []error{ErrRepository, e.Err} }

// StorageError is a failed file upload.
type StorageError struct {
	Bucket string
	Name   string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("upload %s/%s: %v", e.Bucket, e.Name, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// TransitionError is a status change the lifecycle policy forbids.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("status %q cannot move to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError is a malformed input rejected before any remote call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
