// Package r2d rebuilds documents from doc-part rows.
package r2d

import (
	"slices"

	sorted "github.com/tobshub/go-sortedmap"

	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// Document is a reconstructed document and its did.
type Document struct {
	Did int64
	Doc *kvdoc.Document
}

// SortDeepestFirst orders results so that children come before their parents.
func SortDeepestFirst(results []docpart.Result) {
	slices.SortStableFunc(results, func(a, b docpart.Result) int {
		return b.TableRef.Depth() - a.TableRef.Depth()
	})
}

type element struct {
	seq   int
	value kvdoc.Value
}

func bySeq(a, b element) bool { return a.seq < b.seq }

type sideKey struct {
	ref *tableref.TableRef
	pid int64
}

// side holds what a parent row needs from one child doc-part: the object
// stored under a key, or the elements of an array ordered by seq.
type side struct {
	object   kvdoc.Value
	elements *sorted.SortedMap[int, element]
}

// Translate rebuilds the documents held by results. Roots are returned in
// the order their rows arrive.
func Translate(results []docpart.Result) []Document {
	ordered := slices.Clone(results)
	SortDeepestFirst(ordered)

	index := make(map[sideKey]*side)
	var docs []Document
	for _, res := range ordered {
		for i := range res.Rows {
			row := &res.Rows[i]
			v := build(res, row, index)
			if !row.HasPid {
				doc, _ := v.(*kvdoc.Document)
				docs = append(docs, Document{Did: row.Did, Doc: doc})
				continue
			}
			k := sideKey{ref: res.TableRef, pid: row.Pid}
			s, ok := index[k]
			if !ok {
				s = &side{}
				index[k] = s
			}
			if row.HasSeq {
				if s.elements == nil {
					s.elements = sorted.New[int, element](0, bySeq)
				}
				e := element{seq: row.Seq, value: v}
				if !s.elements.Insert(row.Seq, e) {
					s.elements.Replace(row.Seq, e)
				}
			} else {
				s.object = v
			}
		}
	}
	return docs
}

// build turns one row into an array element or an object.
func build(res docpart.Result, row *docpart.Row, index map[sideKey]*side) kvdoc.Value {
	for pos, col := range res.Columns {
		if !col.Scalar {
			continue
		}
		v := row.Value(pos)
		if v == nil {
			continue
		}
		if col.Type == meta.FieldChild {
			next := res.TableRef.ChildArray(res.TableRef.ElementDimension() + 1)
			return array(index[sideKey{ref: next, pid: row.Rid}])
		}
		return v
	}

	doc := kvdoc.NewDocument()
	for pos, col := range res.Columns {
		if col.Scalar {
			continue
		}
		v := row.Value(pos)
		if v == nil {
			continue
		}
		if col.Type == meta.FieldChild {
			s := index[sideKey{ref: res.TableRef.Child(col.Name), pid: row.Rid}]
			if isArray, _ := v.(kvdoc.Boolean); isArray {
				v = array(s)
			} else {
				v = object(s)
			}
		}
		doc.Append(col.Name, v)
	}
	return doc
}

func object(s *side) kvdoc.Value {
	if s == nil || s.object == nil {
		return kvdoc.NewDocument()
	}
	return s.object
}

// array lists the elements by seq. Missing positions become null.
func array(s *side) kvdoc.Value {
	if s == nil || s.elements == nil {
		return kvdoc.Array{}
	}
	iter, err := s.elements.IterCh()
	if err != nil {
		return kvdoc.Array{}
	}
	arr := kvdoc.Array{}
	for rec := range iter.Records() {
		for len(arr) < rec.Val.seq {
			arr = append(arr, kvdoc.Null{})
		}
		arr = append(arr, rec.Val.value)
	}
	return arr
}
