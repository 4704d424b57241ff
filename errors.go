package docrel

import "github.com/kailas-cloud/docrel/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound         = domain.ErrNotFound
	ErrAlreadyExists    = domain.ErrAlreadyExists
	ErrInvalidDocument  = domain.ErrInvalidDocument
	ErrUnsupportedValue = domain.ErrUnsupportedValue
	ErrInvalidIndex     = domain.ErrInvalidIndex
	ErrCommitConflict   = domain.ErrCommitConflict
)
