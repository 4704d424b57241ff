package meta

import (
	"slices"

	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// Collection is the immutable schema of one collection: its doc-parts and indexes.
type Collection struct {
	name       string
	identifier string
	docParts   []*DocPart
	byRef      map[*tableref.TableRef]*DocPart
	byID       map[string]*DocPart
	indexes    []*Index
}

// Name returns the document-domain name.
func (c *Collection) Name() string { return c.name }

// Identifier returns the relational identifier.
func (c *Collection) Identifier() string { return c.identifier }

// DocParts returns the doc-parts in creation order.
func (c *Collection) DocParts() []*DocPart { return c.docParts }

// DocPart looks a doc-part up by TableRef.
func (c *Collection) DocPart(ref *tableref.TableRef) (*DocPart, bool) {
	dp, ok := c.byRef[ref]
	return dp, ok
}

// DocPartByIdentifier looks a doc-part up by table name.
func (c *Collection) DocPartByIdentifier(id string) (*DocPart, bool) {
	dp, ok := c.byID[id]
	return dp, ok
}

// Indexes returns the collection indexes.
func (c *Collection) Indexes() []*Index { return c.indexes }

// Index looks an index up by name.
func (c *Collection) Index(name string) (*Index, bool) {
	for _, ix := range c.indexes {
		if ix.name == name {
			return ix, true
		}
	}
	return nil, false
}

// ToBuilder starts a copy-on-write modification of c.
func (c *Collection) ToBuilder() *CollectionBuilder {
	return &CollectionBuilder{
		name:       c.name,
		identifier: c.identifier,
		docParts:   slices.Clip(c.docParts),
		indexes:    slices.Clip(c.indexes),
	}
}

// CollectionBuilder assembles an immutable Collection.
type CollectionBuilder struct {
	name       string
	identifier string
	docParts   []*DocPart
	indexes    []*Index
}

// NewCollectionBuilder starts an empty collection.
func NewCollectionBuilder(name, identifier string) *CollectionBuilder {
	return &CollectionBuilder{name: name, identifier: identifier}
}

// PutDocPart adds dp, replacing any doc-part with the same TableRef.
func (b *CollectionBuilder) PutDocPart(dp *DocPart) *CollectionBuilder {
	for i, old := range b.docParts {
		if old.ref == dp.ref {
			b.docParts = slices.Clone(b.docParts)
			b.docParts[i] = dp
			return b
		}
	}
	b.docParts = append(b.docParts, dp)
	return b
}

// PutIndex adds ix, replacing any index with the same name.
func (b *CollectionBuilder) PutIndex(ix *Index) *CollectionBuilder {
	for i, old := range b.indexes {
		if old.name == ix.name {
			b.indexes = slices.Clone(b.indexes)
			b.indexes[i] = ix
			return b
		}
	}
	b.indexes = append(b.indexes, ix)
	return b
}

// RemoveIndex drops an index by name.
func (b *CollectionBuilder) RemoveIndex(name string) *CollectionBuilder {
	b.indexes = slices.DeleteFunc(slices.Clone(b.indexes), func(ix *Index) bool {
		return ix.name == name
	})
	return b
}

// Build freezes the collection. Doc-parts are kept parent-first.
func (b *CollectionBuilder) Build() *Collection {
	docParts := slices.Clone(b.docParts)
	slices.SortStableFunc(docParts, func(x, y *DocPart) int {
		return x.ref.Depth() - y.ref.Depth()
	})
	c := &Collection{
		name:       b.name,
		identifier: b.identifier,
		docParts:   docParts,
		byRef:      make(map[*tableref.TableRef]*DocPart, len(docParts)),
		byID:       make(map[string]*DocPart, len(docParts)),
		indexes:    slices.Clip(b.indexes),
	}
	for _, dp := range docParts {
		c.byRef[dp.ref] = dp
		c.byID[dp.identifier] = dp
	}
	return c
}
