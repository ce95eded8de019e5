package authstate

import "errors"

var (
	// ErrStateNotFound indicates the state token is unknown, expired, or
	// already consumed.
	ErrStateNotFound = errors.New("authstate.not_found")

	// ErrInvalidState indicates a nil or tokenless record.
	ErrInvalidState = errors.New("authstate.invalid")

	// ErrTokenGeneration indicates the random source failed.
	ErrTokenGeneration = errors.New("authstate.token_generation_failed")
)
