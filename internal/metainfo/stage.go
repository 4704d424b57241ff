package metainfo

import (
	"github.com/google/uuid"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

// Stage is a private, mutable view of one snapshot. Not safe for concurrent use.
type Stage struct {
	id       uuid.UUID
	base     *meta.Snapshot
	snapshot *meta.MutableSnapshot
	closed   bool
}

// ID identifies the stage in logs.
func (s *Stage) ID() uuid.UUID { return s.id }

// Base returns the snapshot the stage started from.
func (s *Stage) Base() *meta.Snapshot { return s.base }

// Snapshot returns the overlay to extend.
func (s *Stage) Snapshot() *meta.MutableSnapshot { return s.snapshot }

// Changes returns what the stage added so far.
func (s *Stage) Changes() meta.Changes { return s.snapshot.Changes() }
