package errors

import "errors"

var (
	// ErrNotFound is returned when a document, clause, amendment or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPrecondition is returned when an operation is requested in the wrong document state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnsupportedFormat is returned for uploads whose declared file type cannot be parsed.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
