package types

import "errors"

// Domain errors shared across packages.
var (
	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrEmptyQuery     = errors.New("query text cannot be empty")
)
