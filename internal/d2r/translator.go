// Package d2r translates documents into doc-part rows, extending the stage's
// schema overlay with every doc-part, field and scalar it meets.
package d2r

import (
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
	"github.com/kailas-cloud/docrel/internal/identifier"
	"github.com/kailas-cloud/docrel/internal/rid"
)

// Translator turns documents of one collection into rows. It is bound to a
// stage and is not safe for concurrent use.
type Translator struct {
	ids  *identifier.Factory
	coll *meta.MutableCollection
	rids *rid.CollectionGenerator
	data *CollectionData
}

// NewTranslator creates a translator writing into coll.
func NewTranslator(ids *identifier.Factory, coll *meta.MutableCollection, rids *rid.CollectionGenerator) *Translator {
	return &Translator{ids: ids, coll: coll, rids: rids, data: newCollectionData()}
}

// Data returns the rows produced so far.
func (t *Translator) Data() *CollectionData { return t.data }

// frame is one pending unit of work: the keys of an object or the elements
// of an array.
type frame struct {
	ref *tableref.TableRef
	did int64
	pid int64 // owner rid, unused for the root object
	row int   // row index of an object already created as an array element, -1 otherwise

	doc *kvdoc.Document
	arr kvdoc.Array
}

// Translate writes doc as rows and returns its did.
func (t *Translator) Translate(doc *kvdoc.Document) int64 {
	root := tableref.Root()
	did := t.rids.NextRid(root)

	stack := []frame{{ref: root, did: did, pid: -1, row: -1, doc: doc}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var pushed []frame
		if f.doc != nil {
			pushed = t.object(f)
		} else {
			pushed = t.array(f)
		}
		// reversed so the children run in document order
		for i := len(pushed) - 1; i >= 0; i-- {
			stack = append(stack, pushed[i])
		}
	}
	return did
}

// object writes the keys of f.doc into its row, creating the row unless the
// object is an array element. Nested values become frames.
func (t *Translator) object(f frame) []frame {
	part := t.docPart(f.ref)
	data := t.data.part(part)

	idx := f.row
	if idx < 0 {
		rowRid := f.did
		if !f.ref.IsRoot() {
			rowRid = t.rids.NextRid(f.ref)
		}
		idx = data.newRow(f.did, rowRid)
		if !f.ref.IsRoot() {
			data.rows[idx].Pid, data.rows[idx].HasPid = f.pid, true
		}
	}
	row := &data.rows[idx]

	var children []frame
	for _, e := range f.doc.Entries() {
		pos := t.field(part, e.Key, meta.FieldTypeOf(e.Value))
		switch v := e.Value.(type) {
		case *kvdoc.Document:
			row.Set(pos, meta.ChildMarker(false))
			children = append(children, frame{ref: f.ref.Child(e.Key), did: f.did, pid: row.Rid, row: -1, doc: v})
		case kvdoc.Array:
			row.Set(pos, meta.ChildMarker(true))
			if len(v) > 0 {
				children = append(children, frame{ref: f.ref.Child(e.Key), did: f.did, pid: row.Rid, row: -1, arr: v})
			}
		default:
			row.Set(pos, v)
		}
	}
	return children
}

// array writes one row per element of f.arr, in order. Scalars go to the
// scalar column of their type, documents are filled by an object frame and
// nested arrays move one dimension down.
func (t *Translator) array(f frame) []frame {
	part := t.docPart(f.ref)
	data := t.data.part(part)

	var children []frame
	for i, elem := range f.arr {
		idx := data.newRow(f.did, t.rids.NextRid(f.ref))
		row := &data.rows[idx]
		row.Pid, row.HasPid = f.pid, true
		row.Seq, row.HasSeq = i, true

		switch v := elem.(type) {
		case *kvdoc.Document:
			children = append(children, frame{ref: f.ref, did: f.did, row: idx, doc: v})
		case kvdoc.Array:
			row.Set(t.scalar(part, meta.FieldChild), meta.ChildMarker(true))
			if len(v) > 0 {
				next := f.ref.ChildArray(f.ref.ElementDimension() + 1)
				children = append(children, frame{ref: next, did: f.did, pid: row.Rid, row: -1, arr: v})
			}
		default:
			row.Set(t.scalar(part, meta.FieldTypeOf(v)), v)
		}
	}
	return children
}

func (t *Translator) docPart(ref *tableref.TableRef) *meta.MutableDocPart {
	if dp, ok := t.coll.DocPart(ref); ok {
		return dp
	}
	id := t.ids.ToDocPartIdentifier(t.coll.Database(), t.coll.Name(), ref)
	return t.coll.AddDocPart(ref, id)
}

func (t *Translator) field(dp *meta.MutableDocPart, name string, typ meta.FieldType) int {
	if pos, ok := dp.FieldPosition(name, typ); ok {
		return pos
	}
	return dp.AddField(name, typ, t.ids.ToFieldIdentifier(dp, name, typ))
}

func (t *Translator) scalar(dp *meta.MutableDocPart, typ meta.FieldType) int {
	if pos, ok := dp.ScalarPosition(typ); ok {
		return pos
	}
	return dp.AddScalar(typ, t.ids.ToScalarIdentifier(typ))
}
