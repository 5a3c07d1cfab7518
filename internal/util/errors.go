package util

import "errors"

// Common errors used throughout bunjson
var (
	// Query errors
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDocumentNotFound = errors.New("document not found")

	// Storage errors
	ErrLoadFailure  = errors.New("failed to load backing store")
	ErrParseFailure = errors.New("failed to parse backing store")
	ErrWriteFailure = errors.New("failed to write backing store")

	// Schema errors
	ErrSchemaViolation = errors.New("document invalid against schema")
)
