package schema

import (
	"context"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/metainfo"
)

// Backend applies schema changes.
type Backend interface {
	Begin(ctx context.Context) (backend.Tx, error)
}

// Metadata stages and publishes schema changes.
type Metadata interface {
	Current() *meta.Snapshot
	StartStage() *metainfo.Stage
	Commit(ctx context.Context, stage *metainfo.Stage, apply metainfo.ApplyFunc) (*meta.Snapshot, error)
	Retry(ctx context.Context, fn func(ctx context.Context) error) error
}
