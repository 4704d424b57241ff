package kvdoc

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/docrel/internal/domain"
)

// FromBSON converts a decoded BSON document. Duplicate keys and BSON kinds
// without a counterpart in the model are rejected.
func FromBSON(d bson.D) (*Document, error) {
	doc := &Document{entries: make([]Entry, 0, len(d))}
	seen := make(map[string]struct{}, len(d))
	for _, e := range d {
		if _, dup := seen[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", domain.ErrInvalidDocument, e.Key)
		}
		seen[e.Key] = struct{}{}

		v, err := fromBSONValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		doc.entries = append(doc.entries, Entry{Key: e.Key, Value: v})
	}
	return doc, nil
}

func fromBSONValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil, primitive.Null:
		return Null{}, nil
	case bool:
		return Boolean(v), nil
	case int32:
		return Integer(v), nil
	case int64:
		return Long(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case primitive.DateTime:
		return NewInstant(v.Time()), nil
	case time.Time:
		return NewInstant(v), nil
	case primitive.ObjectID:
		return ObjectID(v), nil
	case primitive.Timestamp:
		return Timestamp(v), nil
	case primitive.Binary:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return Binary{Subtype: v.Subtype, Data: data}, nil
	case primitive.Decimal128:
		return Decimal128(v), nil
	case bson.D:
		return FromBSON(v)
	case bson.M:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(v))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: v[k]})
		}
		return FromBSON(d)
	case bson.A:
		return fromBSONArray(v)
	case []any:
		return fromBSONArray(v)
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedValue, raw)
	}
}

func fromBSONArray(a []any) (Value, error) {
	arr := make(Array, len(a))
	for i, el := range a {
		v, err := fromBSONValue(el)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		arr[i] = v
	}
	return arr, nil
}

// ToBSON converts a document for BSON encoding. Date and Time have no BSON
// counterpart: a Date becomes midnight UTC and a Time becomes its nanoseconds.
func ToBSON(doc *Document) bson.D {
	d := make(bson.D, len(doc.entries))
	for i, e := range doc.entries {
		d[i] = bson.E{Key: e.Key, Value: toBSONValue(e.Value)}
	}
	return d
}

func toBSONValue(v Value) any {
	switch tv := v.(type) {
	case Null:
		return nil
	case Boolean:
		return bool(tv)
	case Integer:
		return int32(tv)
	case Long:
		return int64(tv)
	case Double:
		return float64(tv)
	case String:
		return string(tv)
	case Date:
		return primitive.NewDateTimeFromTime(time.Date(tv.Year, tv.Month, tv.Day, 0, 0, 0, 0, time.UTC))
	case Time:
		return int64(tv)
	case Instant:
		return primitive.NewDateTimeFromTime(tv.Time())
	case ObjectID:
		return primitive.ObjectID(tv)
	case Timestamp:
		return primitive.Timestamp(tv)
	case Binary:
		return primitive.Binary{Subtype: tv.Subtype, Data: tv.Data}
	case Decimal128:
		return primitive.Decimal128(tv)
	case Array:
		a := make(bson.A, len(tv))
		for i, el := range tv {
			a[i] = toBSONValue(el)
		}
		return a
	case *Document:
		return ToBSON(tv)
	default:
		panic(fmt.Sprintf("kvdoc: unknown value %T", v))
	}
}

// ParseExtJSON parses a relaxed or canonical MongoDB extended JSON document.
func ParseExtJSON(data []byte) (*Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
	}
	return FromBSON(d)
}

// MarshalExtJSON renders a document as relaxed extended JSON.
func MarshalExtJSON(doc *Document) ([]byte, error) {
	data, err := bson.MarshalExtJSON(ToBSON(doc), false, false)
	if err != nil {
		return nil, fmt.Errorf("marshal extended json: %w", err)
	}
	return data, nil
}
