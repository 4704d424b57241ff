// Package backend declares the transaction shared by the storage backends.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docrel/internal/d2r"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

// Tx writes one committed stage. Nothing is visible before Commit.
type Tx interface {
	// ApplyChanges persists the schema changes and the merged snapshot,
	// lastRid included.
	ApplyChanges(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error
	// InsertRows stores translated rows in the tables of schema.
	InsertRows(ctx context.Context, schema string, data *d2r.CollectionData) error
	Commit() error
	Rollback() error
}

// Beginner opens transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Write runs one transaction storing changes and, when data is not nil, its
// rows in schema. The transaction is rolled back on any failure.
func Write(ctx context.Context, b Beginner, merged *meta.Snapshot, changes meta.Changes,
	schema string, data *d2r.CollectionData,
) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := tx.ApplyChanges(ctx, merged, changes); err != nil {
		return errors.Join(fmt.Errorf("apply changes: %w", err), tx.Rollback())
	}
	if data != nil {
		if err := tx.InsertRows(ctx, schema, data); err != nil {
			return errors.Join(fmt.Errorf("insert rows: %w", err), tx.Rollback())
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
