package bunjson

import "github.com/kartikbazzad/bunbase/bunjson/internal/util"

// Re-export core errors so callers can match them with errors.Is
var (
	ErrInvalidOperator  = util.ErrInvalidOperator
	ErrInvalidArgument  = util.ErrInvalidArgument
	ErrDocumentNotFound = util.ErrDocumentNotFound
	ErrLoadFailure      = util.ErrLoadFailure
	ErrParseFailure     = util.ErrParseFailure
	ErrWriteFailure     = util.ErrWriteFailure
	ErrSchemaViolation  = util.ErrSchemaViolation
)
