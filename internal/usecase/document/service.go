package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/d2r"
	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
	"github.com/kailas-cloud/docrel/internal/identifier"
	"github.com/kailas-cloud/docrel/internal/logger"
	"github.com/kailas-cloud/docrel/internal/metrics"
	"github.com/kailas-cloud/docrel/internal/r2d"
	"github.com/kailas-cloud/docrel/internal/rid"
)

// Service stores documents as doc-part rows and reads them back.
type Service struct {
	meta    Metadata
	backend Backend
	ids     *identifier.Factory
	rids    *rid.Generator
}

// New creates a document service.
func New(m Metadata, b Backend, ids *identifier.Factory, rids *rid.Generator) *Service {
	return &Service{meta: m, backend: b, ids: ids, rids: rids}
}

// Insert stores docs in database.collection, creating both when missing,
// and returns the dids in input order. A stage that conflicts with a
// concurrent commit is re-run from scratch.
func (s *Service) Insert(ctx context.Context, database, collection string, docs []*kvdoc.Document) ([]int64, error) {
	if err := validateNames(database, collection); err != nil {
		return nil, err
	}
	for i, d := range docs {
		if d == nil {
			return nil, fmt.Errorf("document %d is null: %w", i, domain.ErrInvalidDocument)
		}
	}
	if len(docs) == 0 {
		return []int64{}, nil
	}

	ctx = logger.ContextWithCollection(ctx, database, collection)
	var dids []int64
	err := s.meta.Retry(ctx, func(ctx context.Context) error {
		var err error
		dids, err = s.insert(ctx, database, collection, docs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert into %s.%s: %w", database, collection, err)
	}
	return dids, nil
}

func (s *Service) insert(ctx context.Context, database, collection string, docs []*kvdoc.Document) ([]int64, error) {
	stage := s.meta.StartStage()
	coll := s.ids.EnsureCollection(stage.Snapshot(), database, collection)

	tr := d2r.NewTranslator(s.ids, coll, s.rids.Collection(database, collection))
	dids := make([]int64, len(docs))
	for i, d := range docs {
		dids[i] = tr.Translate(d)
	}
	data := tr.Data()

	s.ids.AddMissingDocPartIndexes(coll)
	for _, part := range data.OrderedDocPartData() {
		if dp, ok := coll.DocPart(part.TableRef()); ok {
			dp.SetLastRid(part.MaxRid())
		}
	}

	schema := coll.Database().Identifier()
	_, err := s.meta.Commit(ctx, stage, func(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error {
		return backend.Write(ctx, s.backend, merged, changes, schema, data)
	})
	if err != nil {
		return nil, err
	}

	metrics.DocumentsTranslatedTotal.WithLabelValues("insert").Add(float64(len(docs)))
	for _, part := range data.OrderedDocPartData() {
		metrics.ObserveRows(part.TableRef().Depth(), len(part.Rows()))
	}
	logger.FromContext(ctx).Debug("documents inserted",
		zap.Int("documents", len(docs)),
		zap.Int("rows", data.RowCount()))
	return dids, nil
}

// Find reconstructs every document of database.collection as of the
// current snapshot. Documents committed after it are left out.
func (s *Service) Find(ctx context.Context, database, collection string) ([]r2d.Document, error) {
	db, coll, ok := s.meta.Current().Collection(database, collection)
	if !ok {
		return nil, fmt.Errorf("collection %s.%s: %w", database, collection, domain.ErrNotFound)
	}
	results, err := s.backend.ReadCollection(ctx, db, coll)
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", database, collection, err)
	}

	if root, ok := coll.DocPart(tableref.Root()); ok {
		visibleUpTo(results, root.LastRid())
	}
	docs := r2d.Translate(results)
	metrics.DocumentsReconstructedTotal.Add(float64(len(docs)))
	return docs, nil
}

// visibleUpTo drops the rows of documents with a did above maxDid.
func visibleUpTo(results []docpart.Result, maxDid int64) {
	for i := range results {
		rows := results[i].Rows[:0]
		for _, row := range results[i].Rows {
			if row.Did <= maxDid {
				rows = append(rows, row)
			}
		}
		results[i].Rows = rows
	}
}

func validateNames(database, collection string) error {
	if database == "" {
		return fmt.Errorf("database name is empty: %w", domain.ErrInvalidDocument)
	}
	if collection == "" {
		return fmt.Errorf("collection name is empty: %w", domain.ErrInvalidDocument)
	}
	return nil
}
