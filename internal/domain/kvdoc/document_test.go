package kvdoc

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/docrel/internal/domain"
)

func TestEqual(t *testing.T) {
	oid := primitive.NewObjectID()
	now := time.Now()

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null vs null", Null{}, Null{}, true},
		{"null vs absent", Null{}, nil, false},
		{"integer vs long", Integer(1), Long(1), false},
		{"nan", Double(math.NaN()), Double(math.NaN()), true},
		{"negative zero", Double(math.Copysign(0, -1)), Double(0), false},
		{"instant zones", NewInstant(now), Instant(now.In(time.FixedZone("x", 3600))), true},
		{"object id", ObjectID(oid), ObjectID(oid), true},
		{"binary", Binary{Subtype: 0, Data: []byte{1, 2}}, Binary{Subtype: 0, Data: []byte{1, 2}}, true},
		{"binary subtype", Binary{Subtype: 0, Data: []byte{1}}, Binary{Subtype: 4, Data: []byte{1}}, false},
		{"array order", Array{Integer(1), Integer(2)}, Array{Integer(2), Integer(1)}, false},
		{
			"document order",
			NewDocument(E("a", Integer(1)), E("b", Integer(2))),
			NewDocument(E("b", Integer(2)), E("a", Integer(1))),
			false,
		},
		{
			"nested",
			NewDocument(E("a", Array{NewDocument(E("x", Null{}))})),
			NewDocument(E("a", Array{NewDocument(E("x", Null{}))})),
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Errorf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDocument_GetAndKeys(t *testing.T) {
	doc := NewDocument(E("name", String("John")), E("age", Integer(42)))
	doc.Append("tags", Array{})

	if doc.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", doc.Len())
	}
	v, ok := doc.Get("age")
	if !ok || v != Integer(42) {
		t.Errorf("Get(age) = %v, %v", v, ok)
	}
	if _, ok := doc.Get("missing"); ok {
		t.Error("expected missing key")
	}
	keys := doc.Keys()
	if keys[0] != "name" || keys[2] != "tags" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestParseExtJSON(t *testing.T) {
	doc, err := ParseExtJSON([]byte(`{
		"name": "John",
		"n": {"$numberLong": "7"},
		"i": 3,
		"d": 1.5,
		"nil": null,
		"oid": {"$oid": "5f1d7f1f1c9d440000a1b2c3"},
		"when": {"$date": "2020-01-02T03:04:05Z"},
		"nested": {"list": [1, {"x": true}, []]}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	oid, _ := primitive.ObjectIDFromHex("5f1d7f1f1c9d440000a1b2c3")
	want := NewDocument(
		E("name", String("John")),
		E("n", Long(7)),
		E("i", Integer(3)),
		E("d", Double(1.5)),
		E("nil", Null{}),
		E("oid", ObjectID(oid)),
		E("when", NewInstant(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))),
		E("nested", NewDocument(E("list", Array{
			Integer(1),
			NewDocument(E("x", Boolean(true))),
			Array{},
		}))),
	)
	if !doc.Equal(want) {
		t.Errorf("unexpected document:\ngot:  %v\nwant: %v", doc, want)
	}
}

func TestParseExtJSON_Invalid(t *testing.T) {
	_, err := ParseExtJSON([]byte(`{"a": `))
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestFromBSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  bson.D
		want error
	}{
		{"duplicate key", bson.D{{Key: "a", Value: 1}, {Key: "a", Value: 2}}, domain.ErrInvalidDocument},
		{"regex", bson.D{{Key: "r", Value: primitive.Regex{Pattern: "x"}}}, domain.ErrUnsupportedValue},
		{"nested undefined", bson.D{{Key: "a", Value: bson.A{primitive.Undefined{}}}}, domain.ErrUnsupportedValue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromBSON(tc.doc)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExtJSON_RoundTrip(t *testing.T) {
	dec, err := primitive.ParseDecimal128("12.50")
	if err != nil {
		t.Fatalf("ParseDecimal128: %v", err)
	}
	doc := NewDocument(
		E("a", Array{Integer(1), Array{String("x")}, Null{}}),
		E("ts", Timestamp(primitive.Timestamp{T: 10, I: 2})),
		E("bin", Binary{Subtype: 0, Data: []byte("abc")}),
		E("dec", Decimal128(dec)),
	)

	data, err := MarshalExtJSON(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := ParseExtJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.Equal(back) {
		t.Errorf("round trip mismatch: %s", data)
	}
}
