package meta

import (
	"fmt"

	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
)

// FieldType is the relational type of a doc-part column.
type FieldType uint8

// Field types. FieldChild marks a key holding a nested document or array.
const (
	FieldNull FieldType = iota
	FieldBoolean
	FieldInteger
	FieldLong
	FieldDouble
	FieldString
	FieldDate
	FieldTime
	FieldInstant
	FieldObjectID
	FieldTimestamp
	FieldBinary
	FieldDecimal128
	FieldChild
)

var fieldTypeNames = [...]string{
	FieldNull:       "NULL",
	FieldBoolean:    "BOOLEAN",
	FieldInteger:    "INTEGER",
	FieldLong:       "LONG",
	FieldDouble:     "DOUBLE",
	FieldString:     "STRING",
	FieldDate:       "DATE",
	FieldTime:       "TIME",
	FieldInstant:    "INSTANT",
	FieldObjectID:   "MONGO_OBJECT_ID",
	FieldTimestamp:  "MONGO_TIME_STAMP",
	FieldBinary:     "BINARY",
	FieldDecimal128: "DECIMAL128",
	FieldChild:      "CHILD",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// FieldTypes lists every field type in declaration order.
func FieldTypes() []FieldType {
	types := make([]FieldType, len(fieldTypeNames))
	for i := range fieldTypeNames {
		types[i] = FieldType(i)
	}
	return types
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	for i, name := range fieldTypeNames {
		if name == s {
			return FieldType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// FieldTypeOf maps a value to the column type that stores it.
func FieldTypeOf(v kvdoc.Value) FieldType {
	switch v.Kind() {
	case kvdoc.KindNull:
		return FieldNull
	case kvdoc.KindBoolean:
		return FieldBoolean
	case kvdoc.KindInteger:
		return FieldInteger
	case kvdoc.KindLong:
		return FieldLong
	case kvdoc.KindDouble:
		return FieldDouble
	case kvdoc.KindString:
		return FieldString
	case kvdoc.KindDate:
		return FieldDate
	case kvdoc.KindTime:
		return FieldTime
	case kvdoc.KindInstant:
		return FieldInstant
	case kvdoc.KindObjectID:
		return FieldObjectID
	case kvdoc.KindTimestamp:
		return FieldTimestamp
	case kvdoc.KindBinary:
		return FieldBinary
	case kvdoc.KindDecimal128:
		return FieldDecimal128
	case kvdoc.KindArray, kvdoc.KindDocument:
		return FieldChild
	default:
		panic(fmt.Sprintf("meta: no field type for value kind %s", v.Kind()))
	}
}

// ChildMarker is the value stored in a CHILD column: true for an array, false
// for a nested document.
func ChildMarker(isArray bool) kvdoc.Value { return kvdoc.Boolean(isArray) }
