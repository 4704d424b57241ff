package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

func sampleValues() []kvdoc.Value {
	return []kvdoc.Value{
		kvdoc.Null{},
		kvdoc.Boolean(true),
		kvdoc.Boolean(false),
		kvdoc.Integer(-42),
		kvdoc.Long(1 << 50),
		kvdoc.Double(3.25),
		kvdoc.String("héllo"),
		kvdoc.String(""),
		kvdoc.Date{Year: 1999, Month: time.December, Day: 31},
		kvdoc.Time(12*int64(time.Hour) + 5),
		kvdoc.NewInstant(time.Date(2024, 5, 1, 12, 30, 0, 123*int(time.Millisecond), time.UTC)),
		kvdoc.ObjectID(primitive.NewObjectID()),
		kvdoc.Timestamp(primitive.Timestamp{T: 1700000000, I: 7}),
		kvdoc.Binary{Subtype: 4, Data: []byte{0xde, 0xad}},
		kvdoc.Decimal128(primitive.NewDecimal128(3, 14)),
	}
}

func TestSQL_RoundTrip(t *testing.T) {
	for _, v := range sampleValues() {
		typ := meta.FieldTypeOf(v)
		t.Run(typ.String(), func(t *testing.T) {
			got, err := FromSQL(typ, ToSQL(v))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !kvdoc.Equal(v, got) {
				t.Errorf("got %#v, want %#v", got, v)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, v := range sampleValues() {
		typ := meta.FieldTypeOf(v)
		t.Run(typ.String(), func(t *testing.T) {
			got, err := FromString(typ, ToString(v))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !kvdoc.Equal(v, got) {
				t.Errorf("got %#v, want %#v", got, v)
			}
		})
	}
}

func TestRoundTrip_EdgeValues(t *testing.T) {
	tests := []struct {
		name string
		v    kvdoc.Value
	}{
		{"year 9999", kvdoc.NewInstant(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))},
		{"year 1500", kvdoc.NewInstant(time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"epoch", kvdoc.NewInstant(time.UnixMilli(0))},
		{"before epoch", kvdoc.NewInstant(time.UnixMilli(-1))},
		{"negative zero", kvdoc.Double(math.Copysign(0, -1))},
		{"zero", kvdoc.Double(0)},
		{"nan", kvdoc.Double(math.NaN())},
		{"positive infinity", kvdoc.Double(math.Inf(1))},
		{"negative infinity", kvdoc.Double(math.Inf(-1))},
		{"smallest subnormal", kvdoc.Double(math.SmallestNonzeroFloat64)},
		{"lowest finite", kvdoc.Double(-math.MaxFloat64)},
	}
	for _, tt := range tests {
		typ := meta.FieldTypeOf(tt.v)
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSQL(typ, ToSQL(tt.v))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !kvdoc.Equal(tt.v, got) {
				t.Errorf("sql: got %#v, want %#v", got, tt.v)
			}
			got, err = FromString(typ, ToString(tt.v))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !kvdoc.Equal(tt.v, got) {
				t.Errorf("string: got %#v, want %#v", got, tt.v)
			}
		})
	}
}

func TestToSQL_InstantIsUnixMillis(t *testing.T) {
	when := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := ToSQL(kvdoc.NewInstant(when)); got != int64(253402214400000) {
		t.Errorf("ToSQL(9999-12-31) = %v, want 253402214400000", got)
	}
}

func TestToSQL_DoubleBytesSortLikeNumbers(t *testing.T) {
	ordered := []float64{
		math.Inf(-1), -math.MaxFloat64, -1.5, -math.SmallestNonzeroFloat64,
		math.Copysign(0, -1), 0, math.SmallestNonzeroFloat64, 2, math.MaxFloat64, math.Inf(1),
	}
	for i := 1; i < len(ordered); i++ {
		prev := ToSQL(kvdoc.Double(ordered[i-1])).([]byte)
		cur := ToSQL(kvdoc.Double(ordered[i])).([]byte)
		if bytes.Compare(prev, cur) >= 0 {
			t.Errorf("bytes of %v do not sort before %v", ordered[i-1], ordered[i])
		}
	}
}

func TestFromSQL_AbsentAndNull(t *testing.T) {
	got, err := FromSQL(meta.FieldString, nil)
	if err != nil || got != nil {
		t.Errorf("absent column = %v, %v; want nil", got, err)
	}
	got, err = FromSQL(meta.FieldNull, ToSQL(kvdoc.Null{}))
	if err != nil || !kvdoc.Equal(got, kvdoc.Null{}) {
		t.Errorf("null column = %v, %v", got, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"integer overflow", func() error { _, err := FromSQL(meta.FieldInteger, int64(1)<<40); return err }},
		{"double from text", func() error { _, err := FromSQL(meta.FieldDouble, "x"); return err }},
		{"short double", func() error { _, err := FromSQL(meta.FieldDouble, []byte{1, 2, 3}); return err }},
		{"real double", func() error { _, err := FromSQL(meta.FieldDouble, 1.5); return err }},
		{"short object id", func() error { _, err := FromSQL(meta.FieldObjectID, []byte{1, 2}); return err }},
		{"bad boolean", func() error { _, err := FromString(meta.FieldBoolean, "maybe"); return err }},
		{"bad date", func() error { _, err := FromString(meta.FieldDate, "2024-13-45"); return err }},
		{"bad long", func() error { _, err := FromString(meta.FieldLong, "1.5"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, domain.ErrUnsupportedValue) {
				t.Errorf("expected ErrUnsupportedValue, got %v", err)
			}
		})
	}
}

func TestSQLType(t *testing.T) {
	tests := map[meta.FieldType]string{
		meta.FieldInteger:    "INTEGER",
		meta.FieldDouble:     "BLOB",
		meta.FieldString:     "TEXT",
		meta.FieldDecimal128: "TEXT",
		meta.FieldBinary:     "BLOB",
		meta.FieldChild:      "INTEGER",
	}
	for typ, want := range tests {
		if got := SQLType(typ); got != want {
			t.Errorf("SQLType(%s) = %s, want %s", typ, got, want)
		}
	}
}
