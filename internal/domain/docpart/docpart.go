// Package docpart holds the relational row shapes exchanged between the
// translators and the storage backends.
package docpart

import (
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// Row is one row of a doc-part table. Values are positional, in the
// doc-part's column order; a nil entry means the column is absent.
type Row struct {
	Did    int64
	Rid    int64
	Pid    int64
	HasPid bool
	Seq    int
	HasSeq bool
	Values []kvdoc.Value
}

// Value returns the value at column position pos, or nil.
func (r *Row) Value(pos int) kvdoc.Value {
	if pos < len(r.Values) {
		return r.Values[pos]
	}
	return nil
}

// Set stores v at column position pos, growing Values as needed.
func (r *Row) Set(pos int, v kvdoc.Value) {
	if pos >= len(r.Values) {
		r.Values = append(r.Values, make([]kvdoc.Value, pos+1-len(r.Values))...)
	}
	r.Values[pos] = v
}

// Result is the content of one doc-part table read from storage.
type Result struct {
	TableRef *tableref.TableRef
	Columns  []meta.Column
	Rows     []Row
}
