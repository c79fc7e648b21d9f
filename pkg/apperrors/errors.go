package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidEntry      = errors.New("invalid entry")
	ErrUnhashable        = errors.New("entry cannot be hashed")
	ErrSanitizerRejected = errors.New("content rejected by sanitizer")
)
