package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("missing or invalid principal")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConflict         = errors.New("conflict")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)
