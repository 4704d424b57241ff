// Package kvdoc is the document value model: a recursive, ordered, typed tree
// of scalars, arrays and documents.
package kvdoc

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind enumerates value variants.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindLong
	KindDouble
	KindString
	KindDate
	KindTime
	KindInstant
	KindObjectID
	KindTimestamp
	KindBinary
	KindDecimal128
	KindArray
	KindDocument
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBoolean:    "boolean",
	KindInteger:    "integer",
	KindLong:       "long",
	KindDouble:     "double",
	KindString:     "string",
	KindDate:       "date",
	KindTime:       "time",
	KindInstant:    "instant",
	KindObjectID:   "objectId",
	KindTimestamp:  "timestamp",
	KindBinary:     "binary",
	KindDecimal128: "decimal128",
	KindArray:      "array",
	KindDocument:   "document",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is any node of a document tree.
type Value interface {
	Kind() Kind
}

// Null is the explicit null value. It differs from an absent key.
type Null struct{}

// Boolean value.
type Boolean bool

// Integer is a 32-bit integer.
type Integer int32

// Long is a 64-bit integer.
type Long int64

// Double is a 64-bit float.
type Double float64

// String value.
type String string

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Time is a time of day in nanoseconds since midnight.
type Time int64

// Instant is a point in time. Stored in UTC with millisecond precision, the
// precision of a BSON datetime.
type Instant time.Time

// ObjectID is a MongoDB object id.
type ObjectID primitive.ObjectID

// Timestamp is a MongoDB internal timestamp.
type Timestamp primitive.Timestamp

// Binary is a typed byte string.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Decimal128 is an IEEE 754-2008 128-bit decimal.
type Decimal128 primitive.Decimal128

// Array is an ordered sequence of values.
type Array []Value

// Kind implementations.
func (Null) Kind() Kind       { return KindNull }
func (Boolean) Kind() Kind    { return KindBoolean }
func (Integer) Kind() Kind    { return KindInteger }
func (Long) Kind() Kind       { return KindLong }
func (Double) Kind() Kind     { return KindDouble }
func (String) Kind() Kind     { return KindString }
func (Date) Kind() Kind       { return KindDate }
func (Time) Kind() Kind       { return KindTime }
func (Instant) Kind() Kind    { return KindInstant }
func (ObjectID) Kind() Kind   { return KindObjectID }
func (Timestamp) Kind() Kind  { return KindTimestamp }
func (Binary) Kind() Kind     { return KindBinary }
func (Decimal128) Kind() Kind { return KindDecimal128 }
func (Array) Kind() Kind      { return KindArray }

// NewInstant returns t as an Instant normalized to UTC.
func NewInstant(t time.Time) Instant { return Instant(t.UTC()) }

// Time returns the instant as a time.Time.
func (i Instant) Time() time.Time { return time.Time(i) }

// NewDate returns the calendar date of t.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// NewTime returns the time of day of t.
func NewTime(t time.Time) Time {
	h, m, s := t.Clock()
	return Time(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond()))
}

func (t Time) String() string {
	d := time.Duration(t)
	return time.Time{}.Add(d).Format("15:04:05.999999999")
}

// IsScalar reports whether v is neither an array nor a document.
func IsScalar(v Value) bool {
	k := v.Kind()
	return k != KindArray && k != KindDocument
}
