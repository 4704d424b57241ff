package meta

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// Ordering of an index key.
type Ordering uint8

// Index orderings.
const (
	Ascending Ordering = iota
	Descending
)

func (o Ordering) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseOrdering accepts ASC/DESC (case-insensitive) and the Mongo 1/-1 forms.
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToUpper(s) {
	case "ASC", "1":
		return Ascending, nil
	case "DESC", "-1":
		return Descending, nil
	default:
		return 0, fmt.Errorf("unknown ordering %q", s)
	}
}

// IndexField is one key of a collection index.
type IndexField struct {
	TableRef *tableref.TableRef
	Name     string
	Ordering Ordering
}

// Index is a user-level index over one or more document paths.
type Index struct {
	name   string
	unique bool
	fields []IndexField
}

// NewIndex creates an index definition.
func NewIndex(name string, unique bool, fields []IndexField) *Index {
	fs := make([]IndexField, len(fields))
	copy(fs, fields)
	return &Index{name: name, unique: unique, fields: fs}
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Unique reports whether the index is unique.
func (i *Index) Unique() bool { return i.unique }

// Fields returns the index keys in order.
func (i *Index) Fields() []IndexField { return i.fields }

// FieldsAt returns the keys whose field lives in the doc-part of ref.
func (i *Index) FieldsAt(ref *tableref.TableRef) []IndexField {
	var out []IndexField
	for _, f := range i.fields {
		if f.TableRef == ref {
			out = append(out, f)
		}
	}
	return out
}

// TableRefs returns the distinct doc-parts the index touches, in key order.
func (i *Index) TableRefs() []*tableref.TableRef {
	var refs []*tableref.TableRef
	for _, f := range i.fields {
		found := false
		for _, r := range refs {
			if r == f.TableRef {
				found = true
				break
			}
		}
		if !found {
			refs = append(refs, f.TableRef)
		}
	}
	return refs
}

// SameDefinition reports whether other indexes the same keys with the same options.
func (i *Index) SameDefinition(other *Index) bool {
	if i.unique != other.unique || len(i.fields) != len(other.fields) {
		return false
	}
	for k := range i.fields {
		if i.fields[k] != other.fields[k] {
			return false
		}
	}
	return true
}

// DocPartIndexColumn is one column of a physical doc-part index.
type DocPartIndexColumn struct {
	Identifier string
	Ordering   Ordering
}

// DocPartIndex is a physical index on one doc-part table.
type DocPartIndex struct {
	identifier string
	unique     bool
	columns    []DocPartIndexColumn
}

// NewDocPartIndex creates a physical index definition.
func NewDocPartIndex(identifier string, unique bool, columns []DocPartIndexColumn) *DocPartIndex {
	cs := make([]DocPartIndexColumn, len(columns))
	copy(cs, columns)
	return &DocPartIndex{identifier: identifier, unique: unique, columns: cs}
}

// Identifier returns the relational index name.
func (i *DocPartIndex) Identifier() string { return i.identifier }

// Unique reports whether the index is unique.
func (i *DocPartIndex) Unique() bool { return i.unique }

// Columns returns the indexed columns in order.
func (i *DocPartIndex) Columns() []DocPartIndexColumn { return i.columns }

// SameColumns reports whether both indexes cover the same columns in the same order.
func (i *DocPartIndex) SameColumns(other *DocPartIndex) bool {
	return sameColumns(i.columns, other.columns)
}

func sameColumns(a, b []DocPartIndexColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
