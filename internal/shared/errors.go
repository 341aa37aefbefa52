package shared

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates a row-level policy predicate failed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDuplicate indicates a unique-key violation on an entity table.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
