package meta

import (
	"slices"

	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// NoRid is the lastRid of a doc-part that never received a row.
const NoRid int64 = -1

// DocPart is the immutable schema of the table holding one TableRef of a collection.
type DocPart struct {
	ref        *tableref.TableRef
	identifier string
	lastRid    int64
	columns    []Column
	lookup     columnIndex
	indexes    []*DocPartIndex
}

// TableRef returns the document position the doc-part stores.
func (d *DocPart) TableRef() *tableref.TableRef { return d.ref }

// Identifier returns the table name.
func (d *DocPart) Identifier() string { return d.identifier }

// LastRid returns the highest rid persisted for this doc-part, or NoRid.
func (d *DocPart) LastRid() int64 { return d.lastRid }

// Columns returns fields and scalars in declaration order.
func (d *DocPart) Columns() []Column { return d.columns }

// Fields returns the named columns in declaration order.
func (d *DocPart) Fields() []Field {
	var out []Field
	for _, c := range d.columns {
		if !c.Scalar {
			out = append(out, c.field())
		}
	}
	return out
}

// Scalars returns the array element columns in declaration order.
func (d *DocPart) Scalars() []Scalar {
	var out []Scalar
	for _, c := range d.columns {
		if c.Scalar {
			out = append(out, c.scalar())
		}
	}
	return out
}

// FieldByNameAndType looks a field up by its document key and type.
func (d *DocPart) FieldByNameAndType(name string, t FieldType) (Field, bool) {
	pos, ok := d.lookup.byField[fieldKey{name: name, typ: t}]
	if !ok {
		return Field{}, false
	}
	return d.columns[pos].field(), true
}

// ScalarByType looks a scalar up by type.
func (d *DocPart) ScalarByType(t FieldType) (Scalar, bool) {
	pos, ok := d.lookup.byScalar[t]
	if !ok {
		return Scalar{}, false
	}
	return d.columns[pos].scalar(), true
}

// ColumnByIdentifier looks up any column by its identifier.
func (d *DocPart) ColumnByIdentifier(id string) (Column, bool) {
	pos, ok := d.lookup.byID[id]
	if !ok {
		return Column{}, false
	}
	return d.columns[pos], true
}

// HasColumnIdentifier reports whether a field or scalar already uses id.
func (d *DocPart) HasColumnIdentifier(id string) bool {
	_, ok := d.lookup.byID[id]
	return ok
}

// Indexes returns the physical indexes of the doc-part.
func (d *DocPart) Indexes() []*DocPartIndex { return d.indexes }

// IndexByIdentifier looks a physical index up by name.
func (d *DocPart) IndexByIdentifier(id string) (*DocPartIndex, bool) {
	for _, ix := range d.indexes {
		if ix.identifier == id {
			return ix, true
		}
	}
	return nil, false
}

// ToBuilder starts a copy-on-write modification of d.
func (d *DocPart) ToBuilder() *DocPartBuilder {
	return &DocPartBuilder{
		ref:        d.ref,
		identifier: d.identifier,
		lastRid:    d.lastRid,
		columns:    slices.Clip(d.columns),
		indexes:    slices.Clip(d.indexes),
	}
}

// DocPartBuilder assembles an immutable DocPart.
type DocPartBuilder struct {
	ref        *tableref.TableRef
	identifier string
	lastRid    int64
	columns    []Column
	indexes    []*DocPartIndex
}

// NewDocPartBuilder starts an empty doc-part.
func NewDocPartBuilder(ref *tableref.TableRef, identifier string) *DocPartBuilder {
	return &DocPartBuilder{ref: ref, identifier: identifier, lastRid: NoRid}
}

// AddField appends a named column.
func (b *DocPartBuilder) AddField(name string, t FieldType, identifier string) *DocPartBuilder {
	b.columns = append(b.columns, Column{Name: name, Type: t, Identifier: identifier})
	return b
}

// AddScalar appends an array element column.
func (b *DocPartBuilder) AddScalar(t FieldType, identifier string) *DocPartBuilder {
	b.columns = append(b.columns, Column{Type: t, Identifier: identifier, Scalar: true})
	return b
}

// AddColumn appends a column of either kind.
func (b *DocPartBuilder) AddColumn(c Column) *DocPartBuilder {
	b.columns = append(b.columns, c)
	return b
}

// AddIndex appends a physical index.
func (b *DocPartBuilder) AddIndex(ix *DocPartIndex) *DocPartBuilder {
	b.indexes = append(b.indexes, ix)
	return b
}

// RemoveIndex drops a physical index by identifier.
func (b *DocPartBuilder) RemoveIndex(id string) *DocPartBuilder {
	b.indexes = slices.DeleteFunc(slices.Clone(b.indexes), func(ix *DocPartIndex) bool {
		return ix.identifier == id
	})
	return b
}

// SetLastRid raises the rid high-water mark. Lower values are ignored.
func (b *DocPartBuilder) SetLastRid(rid int64) *DocPartBuilder {
	if rid > b.lastRid {
		b.lastRid = rid
	}
	return b
}

// Build freezes the doc-part.
func (b *DocPartBuilder) Build() *DocPart {
	cols := slices.Clip(b.columns)
	return &DocPart{
		ref:        b.ref,
		identifier: b.identifier,
		lastRid:    b.lastRid,
		columns:    cols,
		lookup:     newColumnIndex(cols),
		indexes:    slices.Clip(b.indexes),
	}
}
