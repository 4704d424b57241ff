package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing database, collection or index.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidDocument signals a document that cannot be stored.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrUnsupportedValue signals a value kind outside the document model.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrInvalidIndex signals an invalid index definition.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrCommitConflict signals that a concurrently committed stage claimed
	// a conflicting name or identifier. The stage must be re-run.
	ErrCommitConflict = errors.New("commit conflict")
)

// CommitConflictError wraps ErrCommitConflict with the element that could not be merged.
type CommitConflictError struct {
	Kind       string // database, collection, doc part, field, scalar, index, doc part index
	Name       string
	Identifier string
	Reason     string
}

func (e *CommitConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s %q (identifier %q)", ErrCommitConflict.Error(), e.Kind, e.Name, e.Identifier)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CommitConflictError) Unwrap() error { return ErrCommitConflict }

// NewCommitConflict creates a commit conflict error.
func NewCommitConflict(kind, name, identifier, reason string) error {
	return &CommitConflictError{Kind: kind, Name: name, Identifier: identifier, Reason: reason}
}
