package d2r

import (
	"slices"

	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// CollectionData is the relational output of translating documents of one collection.
type CollectionData struct {
	parts map[*tableref.TableRef]*DocPartData
	order []*DocPartData
}

func newCollectionData() *CollectionData {
	return &CollectionData{parts: make(map[*tableref.TableRef]*DocPartData)}
}

// DocPartData returns the rows produced for ref.
func (c *CollectionData) DocPartData(ref *tableref.TableRef) (*DocPartData, bool) {
	d, ok := c.parts[ref]
	return d, ok
}

// OrderedDocPartData returns every touched doc-part, parents before children.
func (c *CollectionData) OrderedDocPartData() []*DocPartData {
	out := slices.Clone(c.order)
	slices.SortStableFunc(out, func(a, b *DocPartData) int {
		return a.docPart.TableRef().Depth() - b.docPart.TableRef().Depth()
	})
	return out
}

// RowCount returns the number of rows over all doc-parts.
func (c *CollectionData) RowCount() int {
	n := 0
	for _, d := range c.order {
		n += len(d.rows)
	}
	return n
}

func (c *CollectionData) part(dp *meta.MutableDocPart) *DocPartData {
	if d, ok := c.parts[dp.TableRef()]; ok {
		return d
	}
	d := &DocPartData{docPart: dp, maxRid: meta.NoRid}
	c.parts[dp.TableRef()] = d
	c.order = append(c.order, d)
	return d
}

// DocPartData is the rows of one doc-part.
type DocPartData struct {
	docPart *meta.MutableDocPart
	rows    []docpart.Row
	maxRid  int64
}

// TableRef returns the document position of the rows.
func (d *DocPartData) TableRef() *tableref.TableRef { return d.docPart.TableRef() }

// SchemaIdentifier returns the identifier of the owning database.
func (d *DocPartData) SchemaIdentifier() string {
	return d.docPart.Collection().Database().Identifier()
}

// Identifier returns the table name.
func (d *DocPartData) Identifier() string { return d.docPart.Identifier() }

// Columns returns the doc-part columns in declaration order.
func (d *DocPartData) Columns() []meta.Column { return d.docPart.Columns() }

// Rows returns the rows with values padded to the final column count.
func (d *DocPartData) Rows() []docpart.Row {
	n := len(d.docPart.Columns())
	for i := range d.rows {
		if len(d.rows[i].Values) < n {
			d.rows[i].Set(n-1, d.rows[i].Value(n-1))
		}
	}
	return d.rows
}

// MaxRid returns the highest rid of the rows, or meta.NoRid.
func (d *DocPartData) MaxRid() int64 { return d.maxRid }

func (d *DocPartData) newRow(did, rid int64) int {
	d.rows = append(d.rows, docpart.Row{Did: did, Rid: rid})
	if rid > d.maxRid {
		d.maxRid = rid
	}
	return len(d.rows) - 1
}
