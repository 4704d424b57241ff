package meta

import "github.com/kailas-cloud/docrel/internal/domain/tableref"

// ChangeKind names one kind of schema modification.
type ChangeKind uint8

// Change kinds, in the order a backend must be able to apply them.
const (
	ChangeAddDatabase ChangeKind = iota + 1
	ChangeRemoveDatabase
	ChangeAddCollection
	ChangeRemoveCollection
	ChangeAddDocPart
	ChangeAddField
	ChangeAddScalar
	ChangeAddIndex
	ChangeRemoveIndex
	ChangeAddDocPartIndex
	ChangeRemoveDocPartIndex
	ChangeLastRid
)

var changeKindNames = map[ChangeKind]string{
	ChangeAddDatabase:        "add_database",
	ChangeRemoveDatabase:     "remove_database",
	ChangeAddCollection:      "add_collection",
	ChangeRemoveCollection:   "remove_collection",
	ChangeAddDocPart:         "add_doc_part",
	ChangeAddField:           "add_field",
	ChangeAddScalar:          "add_scalar",
	ChangeAddIndex:           "add_index",
	ChangeRemoveIndex:        "remove_index",
	ChangeAddDocPartIndex:    "add_doc_part_index",
	ChangeRemoveDocPartIndex: "remove_doc_part_index",
	ChangeLastRid:            "last_rid",
}

func (k ChangeKind) String() string {
	if s, ok := changeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Change is one entry of a stage's modification log. Only the fields
// relevant to Kind are set; names and identifiers of the enclosing
// database, collection and doc-part are always filled.
type Change struct {
	Kind ChangeKind

	Database             string
	Schema               string // database identifier
	Collection           string
	CollectionIdentifier string
	TableRef             *tableref.TableRef
	Table                string // doc-part identifier

	Column       Column
	Index        *Index
	DocPartIndex *DocPartIndex
	LastRid      int64

	// Tables lists the doc-part tables of a removed collection or database.
	Tables []string
}

// Changes is the ordered modification log of a stage.
type Changes []Change

// Empty reports whether the log has no entries.
func (c Changes) Empty() bool { return len(c) == 0 }

// Count returns how many entries have the given kind.
func (c Changes) Count(kind ChangeKind) int {
	n := 0
	for _, ch := range c {
		if ch.Kind == kind {
			n++
		}
	}
	return n
}
