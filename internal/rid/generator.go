// Package rid hands out row ids. Every doc-part has its own monotonic
// counter; the root rid of a document doubles as its did.
package rid

import (
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

type collectionKey struct {
	database   string
	collection string
}

// Generator holds one CollectionGenerator per collection.
type Generator struct {
	collections sync.Map // collectionKey -> *CollectionGenerator
}

// NewGenerator creates an empty generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Collection returns the generator of a collection, creating it on first use.
func (g *Generator) Collection(database, collection string) *CollectionGenerator {
	k := collectionKey{database: database, collection: collection}
	if c, ok := g.collections.Load(k); ok {
		return c.(*CollectionGenerator)
	}
	c, _ := g.collections.LoadOrStore(k, &CollectionGenerator{})
	return c.(*CollectionGenerator)
}

// Load seeds every doc-part counter with lastRid+1. Counters already ahead
// of the snapshot are left alone.
func (g *Generator) Load(snapshot *meta.Snapshot) {
	for _, db := range snapshot.Databases() {
		for _, coll := range db.Collections() {
			cg := g.Collection(db.Name(), coll.Name())
			for _, dp := range coll.DocParts() {
				cg.raise(dp.TableRef(), dp.LastRid()+1)
			}
		}
	}
}

// DropCollection forgets the counters of a collection.
func (g *Generator) DropCollection(database, collection string) {
	g.collections.Delete(collectionKey{database: database, collection: collection})
}

// CollectionGenerator holds one counter per TableRef of a collection.
type CollectionGenerator struct {
	counters sync.Map // *tableref.TableRef -> *atomic.Int64
}

func (c *CollectionGenerator) counter(ref *tableref.TableRef) *atomic.Int64 {
	if v, ok := c.counters.Load(ref); ok {
		return v.(*atomic.Int64)
	}
	v, _ := c.counters.LoadOrStore(ref, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// NextRid returns the next rid of ref. Safe for concurrent use.
func (c *CollectionGenerator) NextRid(ref *tableref.TableRef) int64 {
	return c.counter(ref).Add(1) - 1
}

// SetNextRid sets the value NextRid returns next. Initialization only.
func (c *CollectionGenerator) SetNextRid(ref *tableref.TableRef, next int64) {
	c.counter(ref).Store(next)
}

// PeekNextRid returns the value NextRid would return without consuming it.
func (c *CollectionGenerator) PeekNextRid(ref *tableref.TableRef) int64 {
	return c.counter(ref).Load()
}

func (c *CollectionGenerator) raise(ref *tableref.TableRef, next int64) {
	ctr := c.counter(ref)
	for {
		cur := ctr.Load()
		if cur >= next || ctr.CompareAndSwap(cur, next) {
			return
		}
	}
}
