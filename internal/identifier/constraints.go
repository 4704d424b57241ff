// Package identifier derives relational identifiers (schema, table, column
// and index names) from document-domain names.
package identifier

import (
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

// Reserved doc-part columns present in every table.
const (
	ColumnDid = "did"
	ColumnRid = "rid"
	ColumnPid = "pid"
	ColumnSeq = "seq"

	scalarColumn = "v"

	// MetaSchema holds the metadata tables and can't be used by a database.
	MetaSchema = "torodb"
)

// Constraints are the naming rules of a storage backend.
type Constraints interface {
	MaxIdentifierLength() int
	IsAllowedSchemaIdentifier(id string) bool
	IsAllowedTableIdentifier(id string) bool
	IsAllowedColumnIdentifier(id string) bool
	IsAllowedIndexIdentifier(id string) bool
	Separator() byte
	ArrayDimensionSeparator() byte
	FieldTypeTag(t meta.FieldType) byte
	ScalarIdentifier(t meta.FieldType) string
}

var fieldTypeTags = map[meta.FieldType]byte{
	meta.FieldNull:       'n',
	meta.FieldBoolean:    'b',
	meta.FieldInteger:    'i',
	meta.FieldLong:       'l',
	meta.FieldDouble:     'd',
	meta.FieldString:     's',
	meta.FieldDate:       'c',
	meta.FieldTime:       't',
	meta.FieldInstant:    'g',
	meta.FieldObjectID:   'x',
	meta.FieldTimestamp:  'y',
	meta.FieldBinary:     'r',
	meta.FieldDecimal128: 'm',
	meta.FieldChild:      'e',
}

// DefaultConstraints is the rule set shared by the bundled backends.
type DefaultConstraints struct {
	maxLength       int
	reservedSchemas map[string]struct{}
	reservedColumns map[string]struct{}
	scalars         map[meta.FieldType]string
}

// NewDefaultConstraints creates constraints with the given identifier length limit.
func NewDefaultConstraints(maxLength int) *DefaultConstraints {
	c := &DefaultConstraints{
		maxLength:       maxLength,
		reservedSchemas: map[string]struct{}{MetaSchema: {}},
		reservedColumns: map[string]struct{}{
			ColumnDid: {}, ColumnRid: {}, ColumnPid: {}, ColumnSeq: {},
		},
		scalars: make(map[meta.FieldType]string, len(fieldTypeTags)),
	}
	for t, tag := range fieldTypeTags {
		id := scalarColumn + "_" + string(tag)
		c.scalars[t] = id
		c.reservedColumns[id] = struct{}{}
	}
	return c
}

// WithReservedSchemas adds backend keywords that can't name a schema.
func (c *DefaultConstraints) WithReservedSchemas(names ...string) *DefaultConstraints {
	for _, n := range names {
		c.reservedSchemas[n] = struct{}{}
	}
	return c
}

// WithReservedColumns adds backend keywords that can't name a column.
func (c *DefaultConstraints) WithReservedColumns(names ...string) *DefaultConstraints {
	for _, n := range names {
		c.reservedColumns[n] = struct{}{}
	}
	return c
}

// MaxIdentifierLength implements Constraints.
func (c *DefaultConstraints) MaxIdentifierLength() int { return c.maxLength }

// IsAllowedSchemaIdentifier implements Constraints.
func (c *DefaultConstraints) IsAllowedSchemaIdentifier(id string) bool {
	_, reserved := c.reservedSchemas[id]
	return !reserved
}

// IsAllowedTableIdentifier implements Constraints.
func (c *DefaultConstraints) IsAllowedTableIdentifier(string) bool { return true }

// IsAllowedColumnIdentifier implements Constraints.
func (c *DefaultConstraints) IsAllowedColumnIdentifier(id string) bool {
	_, reserved := c.reservedColumns[id]
	return !reserved
}

// IsAllowedIndexIdentifier implements Constraints.
func (c *DefaultConstraints) IsAllowedIndexIdentifier(string) bool { return true }

// Separator implements Constraints.
func (c *DefaultConstraints) Separator() byte { return '_' }

// ArrayDimensionSeparator implements Constraints.
func (c *DefaultConstraints) ArrayDimensionSeparator() byte { return '$' }

// FieldTypeTag implements Constraints.
func (c *DefaultConstraints) FieldTypeTag(t meta.FieldType) byte { return fieldTypeTags[t] }

// ScalarIdentifier implements Constraints.
func (c *DefaultConstraints) ScalarIdentifier(t meta.FieldType) string { return c.scalars[t] }
