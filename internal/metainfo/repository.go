// Package metainfo keeps the committed metadata snapshot and serializes
// stage commits against it.
package metainfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/logger"
	"github.com/kailas-cloud/docrel/internal/metrics"
)

// ErrStageClosed is returned when a stage is committed twice.
var ErrStageClosed = errors.New("stage already committed")

// Config controls conflict retries.
type Config struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// ApplyFunc persists a merged snapshot and the changes it holds over the
// previously committed one. It runs under the commit lock; an error aborts
// the commit.
type ApplyFunc func(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error

// Repository publishes immutable snapshots. Readers never block.
type Repository struct {
	current atomic.Pointer[meta.Snapshot]
	mu      sync.Mutex
	cfg     Config
}

// New creates a repository starting at initial, or at the empty snapshot.
func New(initial *meta.Snapshot, cfg Config) *Repository {
	if initial == nil {
		initial = meta.Empty()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	r := &Repository{cfg: cfg}
	r.current.Store(initial)
	return r
}

// Current returns the last committed snapshot.
func (r *Repository) Current() *meta.Snapshot { return r.current.Load() }

// StartStage opens a stage on the current snapshot.
func (r *Repository) StartStage() *Stage {
	base := r.current.Load()
	return &Stage{id: uuid.New(), base: base, snapshot: meta.NewMutableSnapshot(base)}
}

// Commit merges the stage into the current snapshot, runs apply with the
// result and publishes it. Nothing is published when a step fails.
func (r *Repository) Commit(ctx context.Context, stage *Stage, apply ApplyFunc) (*meta.Snapshot, error) {
	if stage.closed {
		return nil, ErrStageClosed
	}
	stage.closed = true

	log := logger.FromContext(ctx).With(zap.String("stage", stage.id.String()))

	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Now()
	defer func() { metrics.CommitDuration.Observe(time.Since(start).Seconds()) }()

	current := r.current.Load()
	merged := current
	var changes meta.Changes
	if !stage.snapshot.Changes().Empty() {
		var err error
		merged, changes, err = meta.MergeChanges(current, stage.snapshot)
		if err != nil {
			metrics.CommitsTotal.WithLabelValues(metrics.CommitConflict).Inc()
			log.Warn("stage conflicts with committed metadata",
				zap.Uint64("base_version", stage.base.Version()),
				zap.Uint64("current_version", current.Version()),
				zap.Error(err))
			return nil, fmt.Errorf("merge stage: %w", err)
		}
	}

	if apply != nil {
		if err := apply(ctx, merged, changes); err != nil {
			outcome := metrics.CommitError
			if errors.Is(err, domain.ErrCommitConflict) {
				outcome = metrics.CommitConflict
			}
			metrics.CommitsTotal.WithLabelValues(outcome).Inc()
			return nil, fmt.Errorf("apply stage: %w", err)
		}
	}

	r.current.Store(merged)
	metrics.CommitsTotal.WithLabelValues(metrics.CommitOK).Inc()
	log.Debug("stage committed",
		zap.Uint64("version", merged.Version()),
		zap.Int("changes", len(changes)))
	return merged, nil
}

// Retry runs fn until it succeeds, fails with something other than a commit
// conflict, or the attempts are exhausted. fn must start its own stage.
func (r *Repository) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    r.cfg.MinBackoff,
		Max:    r.cfg.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, domain.ErrCommitConflict) {
			return err
		}
		if attempt >= r.cfg.MaxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}

		metrics.CommitRetriesTotal.Inc()
		wait := b.Duration()
		logger.FromContext(ctx).Debug("retrying after commit conflict",
			zap.Int("attempt", attempt), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
}
