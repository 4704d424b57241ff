package meta

import (
	"slices"

	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// MutableCollection is the overlay of one collection.
type MutableCollection struct {
	db         *MutableDatabase
	base       *Collection
	name       string
	identifier string

	docParts map[*tableref.TableRef]*MutableDocPart
	added    []*MutableDocPart
	indexes  []*Index
	dropped  bool
}

func newMutableCollection(d *MutableDatabase, base *Collection, name, identifier string) *MutableCollection {
	c := &MutableCollection{
		db:         d,
		base:       base,
		name:       name,
		identifier: identifier,
		docParts:   make(map[*tableref.TableRef]*MutableDocPart),
	}
	if base != nil {
		c.indexes = slices.Clip(base.indexes)
	}
	return c
}

// Database returns the owning database overlay.
func (c *MutableCollection) Database() *MutableDatabase { return c.db }

// Name returns the collection name.
func (c *MutableCollection) Name() string { return c.name }

// Identifier returns the collection identifier.
func (c *MutableCollection) Identifier() string { return c.identifier }

// DocPart looks a doc-part up by TableRef.
func (c *MutableCollection) DocPart(ref *tableref.TableRef) (*MutableDocPart, bool) {
	if dp, ok := c.docParts[ref]; ok {
		return dp, true
	}
	if c.base == nil {
		return nil, false
	}
	base, ok := c.base.DocPart(ref)
	if !ok {
		return nil, false
	}
	return c.wrap(base), true
}

func (c *MutableCollection) wrap(base *DocPart) *MutableDocPart {
	dp := &MutableDocPart{
		coll:       c,
		base:       base,
		ref:        base.ref,
		identifier: base.identifier,
		columns:    slices.Clip(base.columns),
		lookup:     newColumnIndex(base.columns),
		indexes:    slices.Clip(base.indexes),
		lastRid:    base.lastRid,
	}
	c.docParts[base.ref] = dp
	c.db.snap.docParts = append(c.db.snap.docParts, dp)
	return dp
}

// DocParts returns every doc-part: base ones first, then added ones.
func (c *MutableCollection) DocParts() []*MutableDocPart {
	var out []*MutableDocPart
	if c.base != nil {
		for _, bdp := range c.base.docParts {
			dp, _ := c.DocPart(bdp.ref)
			out = append(out, dp)
		}
	}
	return append(out, c.added...)
}

// AddDocPart creates the doc-part of ref. An existing one is returned as is.
func (c *MutableCollection) AddDocPart(ref *tableref.TableRef, identifier string) *MutableDocPart {
	if dp, ok := c.DocPart(ref); ok {
		return dp
	}
	dp := &MutableDocPart{
		coll:       c,
		ref:        ref,
		identifier: identifier,
		lookup:     newColumnIndex(nil),
		lastRid:    NoRid,
	}
	c.docParts[ref] = dp
	c.added = append(c.added, dp)
	c.db.docPartIDs[identifier] = struct{}{}
	c.db.snap.docParts = append(c.db.snap.docParts, dp)
	c.db.snap.log = append(c.db.snap.log, dp.change(ChangeAddDocPart))
	return dp
}

// Indexes returns the live indexes.
func (c *MutableCollection) Indexes() []*Index { return c.indexes }

// Index looks an index up by name.
func (c *MutableCollection) Index(name string) (*Index, bool) {
	for _, ix := range c.indexes {
		if ix.name == name {
			return ix, true
		}
	}
	return nil, false
}

// AddIndex registers ix. It returns false when the name is already taken.
func (c *MutableCollection) AddIndex(ix *Index) bool {
	if _, ok := c.Index(ix.name); ok {
		return false
	}
	c.indexes = append(c.indexes, ix)
	ch := c.change(ChangeAddIndex)
	ch.Index = ix
	c.db.snap.log = append(c.db.snap.log, ch)
	return true
}

// RemoveIndex drops an index by name together with the physical indexes
// no remaining index needs.
func (c *MutableCollection) RemoveIndex(name string) bool {
	ix, ok := c.Index(name)
	if !ok {
		return false
	}
	c.indexes = slices.DeleteFunc(slices.Clone(c.indexes), func(other *Index) bool {
		return other == ix
	})
	ch := c.change(ChangeRemoveIndex)
	ch.Index = ix
	c.db.snap.log = append(c.db.snap.log, ch)

	for _, dp := range c.DocParts() {
		for _, dpi := range slices.Clone(dp.indexes) {
			if !RequiredBy(c, dp, dpi) {
				dp.RemoveIndex(dpi.identifier)
			}
		}
	}
	return true
}

func (c *MutableCollection) change(kind ChangeKind) Change {
	return Change{
		Kind:                 kind,
		Database:             c.db.name,
		Schema:               c.db.identifier,
		Collection:           c.name,
		CollectionIdentifier: c.identifier,
	}
}

func (c *MutableCollection) tables() []string {
	dps := c.DocParts()
	tables := make([]string, len(dps))
	for i, dp := range dps {
		tables[i] = dp.identifier
	}
	return tables
}

func (c *MutableCollection) build() *Collection {
	var b *CollectionBuilder
	if c.base != nil {
		b = c.base.ToBuilder()
	} else {
		b = NewCollectionBuilder(c.name, c.identifier)
	}
	if c.base != nil {
		for _, bdp := range c.base.docParts {
			if dp, ok := c.docParts[bdp.ref]; ok {
				b.PutDocPart(dp.build())
			}
		}
	}
	for _, dp := range c.added {
		b.PutDocPart(dp.build())
	}
	b.indexes = slices.Clone(c.indexes)
	return b.Build()
}

// MutableDocPart is the overlay of one doc-part. Columns are append-only, so
// a position returned once stays valid for the life of the stage.
type MutableDocPart struct {
	coll       *MutableCollection
	base       *DocPart
	ref        *tableref.TableRef
	identifier string
	columns    []Column
	lookup     columnIndex
	indexes    []*DocPartIndex
	lastRid    int64
}

// Collection returns the owning collection overlay.
func (p *MutableDocPart) Collection() *MutableCollection { return p.coll }

// TableRef returns the document position the doc-part stores.
func (p *MutableDocPart) TableRef() *tableref.TableRef { return p.ref }

// Identifier returns the table name.
func (p *MutableDocPart) Identifier() string { return p.identifier }

// Columns returns base columns followed by added ones.
func (p *MutableDocPart) Columns() []Column { return p.columns }

// FieldPosition returns the column position of field (name, t).
func (p *MutableDocPart) FieldPosition(name string, t FieldType) (int, bool) {
	pos, ok := p.lookup.byField[fieldKey{name: name, typ: t}]
	return pos, ok
}

// ScalarPosition returns the column position of the scalar of type t.
func (p *MutableDocPart) ScalarPosition(t FieldType) (int, bool) {
	pos, ok := p.lookup.byScalar[t]
	return pos, ok
}

// FieldByNameAndType looks a field up by key and type.
func (p *MutableDocPart) FieldByNameAndType(name string, t FieldType) (Field, bool) {
	pos, ok := p.FieldPosition(name, t)
	if !ok {
		return Field{}, false
	}
	return p.columns[pos].field(), true
}

// ScalarByType looks a scalar up by type.
func (p *MutableDocPart) ScalarByType(t FieldType) (Scalar, bool) {
	pos, ok := p.ScalarPosition(t)
	if !ok {
		return Scalar{}, false
	}
	return p.columns[pos].scalar(), true
}

// HasColumnIdentifier reports whether a column already uses id.
func (p *MutableDocPart) HasColumnIdentifier(id string) bool {
	_, ok := p.lookup.byID[id]
	return ok
}

// AddField appends the field (name, t) and returns its position.
func (p *MutableDocPart) AddField(name string, t FieldType, identifier string) int {
	return p.addColumn(Column{Name: name, Type: t, Identifier: identifier}, ChangeAddField)
}

// AddScalar appends the scalar of type t and returns its position.
func (p *MutableDocPart) AddScalar(t FieldType, identifier string) int {
	return p.addColumn(Column{Type: t, Identifier: identifier, Scalar: true}, ChangeAddScalar)
}

func (p *MutableDocPart) addColumn(col Column, kind ChangeKind) int {
	pos := len(p.columns)
	p.columns = append(p.columns, col)
	p.lookup.add(pos, col)
	ch := p.change(kind)
	ch.Column = col
	p.coll.db.snap.log = append(p.coll.db.snap.log, ch)
	return pos
}

// Indexes returns the physical indexes.
func (p *MutableDocPart) Indexes() []*DocPartIndex { return p.indexes }

// IndexByIdentifier looks a physical index up by name.
func (p *MutableDocPart) IndexByIdentifier(id string) (*DocPartIndex, bool) {
	for _, ix := range p.indexes {
		if ix.identifier == id {
			return ix, true
		}
	}
	return nil, false
}

// AddIndex registers a physical index.
func (p *MutableDocPart) AddIndex(ix *DocPartIndex) {
	p.indexes = append(p.indexes, ix)
	p.coll.db.docPartIndexIDs[ix.identifier] = struct{}{}
	ch := p.change(ChangeAddDocPartIndex)
	ch.DocPartIndex = ix
	p.coll.db.snap.log = append(p.coll.db.snap.log, ch)
}

// RemoveIndex drops a physical index by identifier.
func (p *MutableDocPart) RemoveIndex(id string) bool {
	ix, ok := p.IndexByIdentifier(id)
	if !ok {
		return false
	}
	p.indexes = slices.DeleteFunc(slices.Clone(p.indexes), func(other *DocPartIndex) bool {
		return other == ix
	})
	ch := p.change(ChangeRemoveDocPartIndex)
	ch.DocPartIndex = ix
	p.coll.db.snap.log = append(p.coll.db.snap.log, ch)
	return true
}

// LastRid returns the rid high-water mark.
func (p *MutableDocPart) LastRid() int64 { return p.lastRid }

// SetLastRid raises the rid high-water mark. Lower values are ignored.
func (p *MutableDocPart) SetLastRid(rid int64) {
	if rid > p.lastRid {
		p.lastRid = rid
	}
}

func (p *MutableDocPart) change(kind ChangeKind) Change {
	ch := p.coll.change(kind)
	ch.TableRef = p.ref
	ch.Table = p.identifier
	return ch
}

func (p *MutableDocPart) build() *DocPart {
	b := NewDocPartBuilder(p.ref, p.identifier)
	for _, col := range p.columns {
		b.AddColumn(col)
	}
	for _, ix := range p.indexes {
		b.AddIndex(ix)
	}
	b.SetLastRid(p.lastRid)
	return b.Build()
}
