package binder

import "errors"

var (
	// ErrAccountNotFound is returned when a local account lookup misses.
	ErrAccountNotFound = errors.New("binder.account_not_found")
	// ErrInvalidCredentials is returned when username/password verification
	// fails.
	ErrInvalidCredentials = errors.New("binder.invalid_credentials")
	// ErrAlreadyBound is returned when the external identity is already
	// linked to a different local account.
	ErrAlreadyBound = errors.New("binder.already_bound")
	// ErrMissingSubject is returned when the provider response carries no
	// stable external identifier.
	ErrMissingSubject = errors.New("binder.missing_subject")
	// ErrUnresolved is returned when repeated create/read races prevented a
	// stable resolution.
	ErrUnresolved = errors.New("binder.unresolved")
)
