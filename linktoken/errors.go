package linktoken

import "errors"

var (
	// ErrTokenNotFound indicates no token exists for the lookup key.
	ErrTokenNotFound = errors.New("linktoken.not_found")

	// ErrDuplicateSubject indicates a token for the subject already exists;
	// the caller lost a create race and should re-read.
	ErrDuplicateSubject = errors.New("linktoken.duplicate_subject")

	// ErrInvalidToken indicates a nil or subjectless record.
	ErrInvalidToken = errors.New("linktoken.invalid")
)
