package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
	"github.com/kailas-cloud/docrel/internal/identifier"
	"github.com/kailas-cloud/docrel/internal/logger"
	"github.com/kailas-cloud/docrel/internal/metainfo"
	"github.com/kailas-cloud/docrel/internal/rid"
)

// Key is one key of an index definition. Path is a dotted document path.
type Key struct {
	Path     string
	Ordering meta.Ordering
}

// Service manages databases, collections and indexes.
type Service struct {
	meta    Metadata
	backend Backend
	ids     *identifier.Factory
	rids    *rid.Generator
}

// New creates a schema service.
func New(m Metadata, b Backend, ids *identifier.Factory, rids *rid.Generator) *Service {
	return &Service{meta: m, backend: b, ids: ids, rids: rids}
}

// Snapshot returns the committed metadata.
func (s *Service) Snapshot() *meta.Snapshot {
	return s.meta.Current()
}

// ListIndexes returns the indexes of database.collection.
func (s *Service) ListIndexes(database, collection string) ([]*meta.Index, error) {
	_, coll, ok := s.meta.Current().Collection(database, collection)
	if !ok {
		return nil, fmt.Errorf("collection %s.%s: %w", database, collection, domain.ErrNotFound)
	}
	return coll.Indexes(), nil
}

// CreateIndex defines an index on database.collection, creating the
// collection when missing, together with the physical indexes the existing
// doc-parts need. It reports false when an identical index already exists.
func (s *Service) CreateIndex(ctx context.Context, database, collection, name string, unique bool, keys []Key) (bool, error) {
	ix, err := newIndex(name, unique, keys)
	if err != nil {
		return false, err
	}

	ctx = logger.ContextWithCollection(ctx, database, collection)
	created := false
	err = s.meta.Retry(ctx, func(ctx context.Context) error {
		stage := s.meta.StartStage()
		coll := s.ids.EnsureCollection(stage.Snapshot(), database, collection)
		if existing, ok := coll.Index(name); ok {
			if !existing.SameDefinition(ix) {
				return fmt.Errorf("index %q: %w", name, domain.ErrAlreadyExists)
			}
			created = false
		} else {
			coll.AddIndex(ix)
			s.ids.AddMissingDocPartIndexes(coll)
			created = true
		}
		return s.commit(ctx, stage, nil)
	})
	if err != nil {
		return false, fmt.Errorf("create index on %s.%s: %w", database, collection, err)
	}
	if created {
		logger.FromContext(ctx).Info("index created",
			zap.String("index", name),
			zap.Bool("unique", unique))
	}
	return created, nil
}

// DropIndex removes an index and the physical indexes only it needed.
func (s *Service) DropIndex(ctx context.Context, database, collection, name string) error {
	ctx = logger.ContextWithCollection(ctx, database, collection)
	err := s.meta.Retry(ctx, func(ctx context.Context) error {
		stage := s.meta.StartStage()
		coll, err := stagedCollection(stage, database, collection)
		if err != nil {
			return err
		}
		if !coll.RemoveIndex(name) {
			return fmt.Errorf("index %q: %w", name, domain.ErrNotFound)
		}
		return s.commit(ctx, stage, nil)
	})
	if err != nil {
		return fmt.Errorf("drop index on %s.%s: %w", database, collection, err)
	}
	return nil
}

// DropCollection removes a collection with all its rows. Its rid counters
// are reset before the drop is published, so an insert that recreates the
// collection never draws from the old ones.
func (s *Service) DropCollection(ctx context.Context, database, collection string) error {
	ctx = logger.ContextWithCollection(ctx, database, collection)
	err := s.meta.Retry(ctx, func(ctx context.Context) error {
		stage := s.meta.StartStage()
		coll, err := stagedCollection(stage, database, collection)
		if err != nil {
			return err
		}
		coll.Database().RemoveCollection(collection)
		return s.commit(ctx, stage, func() {
			s.rids.DropCollection(database, collection)
		})
	})
	if err != nil {
		return fmt.Errorf("drop collection %s.%s: %w", database, collection, err)
	}
	logger.FromContext(ctx).Info("collection dropped")
	return nil
}

// DropDatabase removes a database with all its collections.
func (s *Service) DropDatabase(ctx context.Context, database string) error {
	ctx = logger.ContextWithCollection(ctx, database, "")
	var dropped []string
	err := s.meta.Retry(ctx, func(ctx context.Context) error {
		stage := s.meta.StartStage()
		db, ok := stage.Snapshot().Database(database)
		if !ok {
			return fmt.Errorf("database %s: %w", database, domain.ErrNotFound)
		}
		dropped = dropped[:0]
		for _, c := range db.Collections() {
			dropped = append(dropped, c.Name())
		}
		stage.Snapshot().RemoveDatabase(database)
		return s.commit(ctx, stage, func() {
			for _, c := range dropped {
				s.rids.DropCollection(database, c)
			}
		})
	})
	if err != nil {
		return fmt.Errorf("drop database %s: %w", database, err)
	}
	logger.FromContext(ctx).Info("database dropped", zap.Int("collections", len(dropped)))
	return nil
}

// commit publishes stage. written runs under the commit lock once the backend
// holds the changes and before any reader can see the new snapshot.
func (s *Service) commit(ctx context.Context, stage *metainfo.Stage, written func()) error {
	if stage.Changes().Empty() {
		return nil
	}
	_, err := s.meta.Commit(ctx, stage, func(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error {
		if err := backend.Write(ctx, s.backend, merged, changes, "", nil); err != nil {
			return err
		}
		if written != nil {
			written()
		}
		return nil
	})
	return err
}

func stagedCollection(stage *metainfo.Stage, database, collection string) (*meta.MutableCollection, error) {
	db, ok := stage.Snapshot().Database(database)
	if !ok {
		return nil, fmt.Errorf("database %s: %w", database, domain.ErrNotFound)
	}
	coll, ok := db.Collection(collection)
	if !ok {
		return nil, fmt.Errorf("collection %s.%s: %w", database, collection, domain.ErrNotFound)
	}
	return coll, nil
}

func newIndex(name string, unique bool, keys []Key) (*meta.Index, error) {
	if name == "" {
		return nil, fmt.Errorf("index name is empty: %w", domain.ErrInvalidIndex)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("index %q has no keys: %w", name, domain.ErrInvalidIndex)
	}
	fields := make([]meta.IndexField, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k.Path] {
			return nil, fmt.Errorf("index %q repeats key %q: %w", name, k.Path, domain.ErrInvalidIndex)
		}
		seen[k.Path] = true
		ref, field, err := ParsePath(k.Path)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", name, err)
		}
		fields = append(fields, meta.IndexField{TableRef: ref, Name: field, Ordering: k.Ordering})
	}
	return meta.NewIndex(name, unique, fields), nil
}

// ParsePath maps a dotted path to the table ref of its parent object and the
// field name. Every segment but the last is an embedded document.
func ParsePath(path string) (*tableref.TableRef, string, error) {
	segs := strings.Split(path, ".")
	ref := tableref.Root()
	for i, seg := range segs {
		if seg == "" {
			return nil, "", fmt.Errorf("path %q has an empty segment: %w", path, domain.ErrInvalidIndex)
		}
		if i < len(segs)-1 {
			ref = ref.Child(seg)
		}
	}
	return ref, segs[len(segs)-1], nil
}
