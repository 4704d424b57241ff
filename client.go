package docrel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/backend/kv"
	"github.com/kailas-cloud/docrel/internal/backend/sqlite"
	dbRedis "github.com/kailas-cloud/docrel/internal/db/redis"
	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/identifier"
	"github.com/kailas-cloud/docrel/internal/logger"
	"github.com/kailas-cloud/docrel/internal/metainfo"
	"github.com/kailas-cloud/docrel/internal/rid"
	documentuc "github.com/kailas-cloud/docrel/internal/usecase/document"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
)

const (
	driverSQLite = "sqlite"
	driverRedis  = "redis"

	defaultReadinessTimeout = 10 * time.Second
)

type storage interface {
	backend.Beginner
	Ping(ctx context.Context) error
	LoadSnapshot(ctx context.Context) (*meta.Snapshot, error)
	ReadCollection(ctx context.Context, db *meta.Database, coll *meta.Collection) ([]docpart.Result, error)
}

// Client is the docrel entry point. It is safe for concurrent use.
type Client struct {
	store  storage
	close  func() error
	repo   *metainfo.Repository
	docs   *documentuc.Service
	schema *schemauc.Service
	logger *zap.Logger
}

// New opens the configured backend, loads its metadata and returns a Client.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	ctx := context.Background()
	store, closer, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(ctx, store, cfg)
	if err != nil {
		return nil, errors.Join(err, closer())
	}
	c.close = closer
	return c, nil
}

func openStorage(ctx context.Context, cfg *clientConfig) (storage, func() error, error) {
	switch cfg.driver {
	case driverSQLite:
		b, err := sqlite.Open(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("docrel: open sqlite: %w", err)
		}
		return b, b.Close, nil
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("docrel: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("docrel: database not ready: %w", err)
		}
		return kv.New(s, cfg.keyPrefix), func() error { s.Close(); return nil }, nil
	case "":
		return nil, nil, errors.New("docrel: storage required (use WithSQLite or WithRedis)")
	default:
		return nil, nil, fmt.Errorf("docrel: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store storage, cfg *clientConfig) (*Client, error) {
	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("docrel: load metadata: %w", err)
	}

	repo := metainfo.New(snapshot, metainfo.Config{
		MaxAttempts: cfg.commitAttempts,
		MinBackoff:  cfg.minBackoff,
		MaxBackoff:  cfg.maxBackoff,
	})
	rids := rid.NewGenerator()
	rids.Load(snapshot)
	ids := identifier.NewFactory(identifier.NewDefaultConstraints(cfg.maxIdentifierLength))

	return &Client{
		store:  store,
		repo:   repo,
		docs:   documentuc.New(repo, store, ids, rids),
		schema: schemauc.New(repo, store, ids, rids),
		logger: cfg.logger,
	}, nil
}

// Close releases the backend.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	if err := c.close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// MetadataVersion returns the version of the committed metadata snapshot.
func (c *Client) MetadataVersion() uint64 {
	return c.repo.Current().Version()
}

// Insert stores docs in database.collection, creating both on first use,
// and returns their dids in input order. Documents are stored atomically.
func (c *Client) Insert(ctx context.Context, database, collection string, docs ...bson.D) ([]int64, error) {
	in := make([]*kvdoc.Document, len(docs))
	for i, d := range docs {
		doc, err := kvdoc.FromBSON(d)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		in[i] = doc
	}
	dids, err := c.docs.Insert(c.withLogger(ctx), database, collection, in)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return dids, nil
}

// Find returns every document of database.collection ordered by did.
func (c *Client) Find(ctx context.Context, database, collection string) ([]Document, error) {
	found, err := c.docs.Find(c.withLogger(ctx), database, collection)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	out := make([]Document, len(found))
	for i, d := range found {
		out[i] = Document{Did: d.Did, Doc: kvdoc.ToBSON(d.Doc)}
	}
	return out, nil
}

// CreateIndex defines an index on database.collection. It reports false
// when an identical index already exists.
func (c *Client) CreateIndex(ctx context.Context, database, collection, name string, unique bool, keys ...IndexKey) (bool, error) {
	created, err := c.schema.CreateIndex(c.withLogger(ctx), database, collection, name, unique, keysToSchema(keys))
	if err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}
	return created, nil
}

// ListIndexes returns the indexes of database.collection.
func (c *Client) ListIndexes(database, collection string) ([]IndexInfo, error) {
	indexes, err := c.schema.ListIndexes(database, collection)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	out := make([]IndexInfo, len(indexes))
	for i, ix := range indexes {
		out[i] = indexFromMeta(ix)
	}
	return out, nil
}

// DropIndex removes an index.
func (c *Client) DropIndex(ctx context.Context, database, collection, name string) error {
	if err := c.schema.DropIndex(c.withLogger(ctx), database, collection, name); err != nil {
		return fmt.Errorf("drop index: %w", err)
	}
	return nil
}

// DropCollection removes a collection and its rows.
func (c *Client) DropCollection(ctx context.Context, database, collection string) error {
	if err := c.schema.DropCollection(c.withLogger(ctx), database, collection); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}

// DropDatabase removes a database and all its collections.
func (c *Client) DropDatabase(ctx context.Context, database string) error {
	if err := c.schema.DropDatabase(c.withLogger(ctx), database); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

func (c *Client) withLogger(ctx context.Context) context.Context {
	if c.logger == nil {
		return ctx
	}
	return logger.ContextWithLogger(ctx, c.logger)
}
