// Package codec converts doc-part column values to and from the storage
// representations of the backends.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

var errMismatch = errors.New("value does not match column type")

// SQLType returns the SQLite column affinity for t.
func SQLType(t meta.FieldType) string {
	switch t {
	case meta.FieldString, meta.FieldDate, meta.FieldDecimal128:
		return "TEXT"
	case meta.FieldDouble, meta.FieldObjectID, meta.FieldBinary:
		return "BLOB"
	default:
		return "INTEGER"
	}
}

// ToSQL returns the driver value of v. An explicit null is stored as 1 so it
// stays distinct from an absent column. Doubles are stored as 8 sortable
// bytes so -0, NaN and infinities survive; instants as Unix milliseconds.
func ToSQL(v kvdoc.Value) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case kvdoc.Null:
		return int64(1)
	case kvdoc.Boolean:
		if tv {
			return int64(1)
		}
		return int64(0)
	case kvdoc.Integer:
		return int64(tv)
	case kvdoc.Long:
		return int64(tv)
	case kvdoc.Double:
		return encodeDouble(float64(tv))
	case kvdoc.String:
		return string(tv)
	case kvdoc.Date:
		return tv.String()
	case kvdoc.Time:
		return int64(tv)
	case kvdoc.Instant:
		return tv.Time().UnixMilli()
	case kvdoc.ObjectID:
		return tv[:]
	case kvdoc.Timestamp:
		return int64(uint64(tv.T)<<32 | uint64(tv.I))
	case kvdoc.Binary:
		return append([]byte{tv.Subtype}, tv.Data...)
	case kvdoc.Decimal128:
		return primitive.Decimal128(tv).String()
	default:
		panic(fmt.Sprintf("codec: unsupported value %T", v))
	}
}

// FromSQL decodes a value scanned from a column of type t. A nil raw value
// means the column is absent.
func FromSQL(t meta.FieldType, raw any) (kvdoc.Value, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case meta.FieldNull:
		return kvdoc.Null{}, nil
	case meta.FieldDouble:
		b, ok := raw.([]byte)
		if !ok {
			return nil, mismatch(t, raw)
		}
		f, err := decodeDouble(b)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return kvdoc.Double(f), nil
	case meta.FieldBoolean, meta.FieldChild, meta.FieldInteger, meta.FieldLong,
		meta.FieldTime, meta.FieldInstant, meta.FieldTimestamp:
		n, ok := raw.(int64)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return fromInt(t, n)
	case meta.FieldObjectID, meta.FieldBinary:
		b, ok := raw.([]byte)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return fromBytes(t, b)
	default:
		s, ok := asText(raw)
		if !ok {
			return nil, mismatch(t, raw)
		}
		return FromString(t, s)
	}
}

// ToString renders v for a hash field.
func ToString(v kvdoc.Value) string {
	switch tv := v.(type) {
	case kvdoc.Null:
		return ""
	case kvdoc.Boolean:
		return strconv.FormatBool(bool(tv))
	case kvdoc.Double:
		return strconv.FormatFloat(float64(tv), 'g', -1, 64)
	case kvdoc.ObjectID:
		return primitive.ObjectID(tv).Hex()
	case kvdoc.Binary:
		return base64.StdEncoding.EncodeToString(append([]byte{tv.Subtype}, tv.Data...))
	default:
		switch sv := ToSQL(v).(type) {
		case int64:
			return strconv.FormatInt(sv, 10)
		case string:
			return sv
		default:
			panic(fmt.Sprintf("codec: unsupported value %T", v))
		}
	}
}

// FromString is the inverse of ToString for a column of type t.
func FromString(t meta.FieldType, s string) (kvdoc.Value, error) {
	switch t {
	case meta.FieldNull:
		return kvdoc.Null{}, nil
	case meta.FieldBoolean, meta.FieldChild:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return kvdoc.Boolean(b), nil
	case meta.FieldDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return kvdoc.Double(f), nil
	case meta.FieldString:
		return kvdoc.String(s), nil
	case meta.FieldDate:
		d, err := kvdoc.ParseDate(s)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return d, nil
	case meta.FieldDecimal128:
		d, err := primitive.ParseDecimal128(s)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return kvdoc.Decimal128(d), nil
	case meta.FieldObjectID:
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return kvdoc.ObjectID(oid), nil
	case meta.FieldBinary:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return fromBytes(t, b)
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, decodeErr(t, err)
		}
		return fromInt(t, n)
	}
}

func fromInt(t meta.FieldType, n int64) (kvdoc.Value, error) {
	switch t {
	case meta.FieldBoolean, meta.FieldChild:
		return kvdoc.Boolean(n != 0), nil
	case meta.FieldInteger:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, decodeErr(t, fmt.Errorf("integer %d out of range", n))
		}
		return kvdoc.Integer(n), nil
	case meta.FieldLong:
		return kvdoc.Long(n), nil
	case meta.FieldTime:
		return kvdoc.Time(n), nil
	case meta.FieldInstant:
		return kvdoc.NewInstant(time.UnixMilli(n)), nil
	case meta.FieldTimestamp:
		return kvdoc.Timestamp(primitive.Timestamp{T: uint32(uint64(n) >> 32), I: uint32(n)}), nil
	default:
		return nil, decodeErr(t, errMismatch)
	}
}

// encodeDouble flips the sign bit of positives and every bit of negatives so
// the big-endian bytes compare like the numbers they hold.
func encodeDouble(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), bits)
}

func decodeDouble(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("double has %d bytes", len(b))
	}
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

func fromBytes(t meta.FieldType, b []byte) (kvdoc.Value, error) {
	if t == meta.FieldObjectID {
		if len(b) != 12 {
			return nil, decodeErr(t, fmt.Errorf("object id has %d bytes", len(b)))
		}
		var oid primitive.ObjectID
		copy(oid[:], b)
		return kvdoc.ObjectID(oid), nil
	}
	if len(b) == 0 {
		return nil, decodeErr(t, errors.New("missing binary subtype"))
	}
	return kvdoc.Binary{Subtype: b[0], Data: append([]byte(nil), b[1:]...)}, nil
}

func asText(raw any) (string, bool) {
	switch s := raw.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func mismatch(t meta.FieldType, raw any) error {
	return decodeErr(t, fmt.Errorf("%w: got %T", errMismatch, raw))
}

func decodeErr(t meta.FieldType, err error) error {
	return fmt.Errorf("decode %s: %w: %w", t, domain.ErrUnsupportedValue, err)
}
