package identifier

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// --- Mocks ---

// idSet is a scope of every kind backed by one set of identifiers.
type idSet map[string]struct{}

func scope(ids ...string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) has(id string) bool                     { _, ok := s[id]; return ok }
func (s idSet) HasDatabaseIdentifier(id string) bool     { return s.has(id) }
func (s idSet) HasCollectionIdentifier(id string) bool   { return s.has(id) }
func (s idSet) HasDocPartIdentifier(id string) bool      { return s.has(id) }
func (s idSet) HasDocPartIndexIdentifier(id string) bool { return s.has(id) }
func (s idSet) HasColumnIdentifier(id string) bool       { return s.has(id) }

// rejecting refuses identifiers starting with "unallowed".
type rejecting struct {
	*DefaultConstraints
}

func (r rejecting) IsAllowedSchemaIdentifier(id string) bool {
	return !strings.HasPrefix(id, "unallowed")
}

func (r rejecting) IsAllowedTableIdentifier(id string) bool {
	return !strings.HasPrefix(id, "unallowed")
}

func (r rejecting) IsAllowedColumnIdentifier(id string) bool {
	return !strings.HasPrefix(id, "unallowed") && r.DefaultConstraints.IsAllowedColumnIdentifier(id)
}

func newTestFactory(maxLen int) *Factory {
	return NewFactory(rejecting{NewDefaultConstraints(maxLen)})
}

func longName(prefix string, n int) string {
	return prefix + strings.Repeat("_long", n)
}

// --- Tests ---

func TestToDatabaseIdentifier(t *testing.T) {
	f := newTestFactory(128)

	tests := []struct {
		name     string
		database string
		taken    idSet
		want     string
	}{
		{"empty", "", scope(), ""},
		{"unallowed", "unallowed_schema", scope(), "_unallowed_schema"},
		{"plain", "database", scope(), "database"},
		{"normalized", "Café Db", scope(), "cafe__db"},
		{"fits exactly", longName("database", 24), scope(), longName("database", 24)},
		{
			"counter on length",
			longName("database", 25),
			scope(),
			longName("database", 11) + "ong" + strings.Repeat("_long", 12) + "_1",
		},
		{
			"counter on collision",
			longName("database", 32),
			scope(longName("database", 11) + "ong" + strings.Repeat("_long", 12) + "_1"),
			longName("database", 11) + "ong" + strings.Repeat("_long", 12) + "_2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.ToDatabaseIdentifier(tc.taken, tc.database)
			if got != tc.want {
				t.Errorf("ToDatabaseIdentifier(%q) = %q, want %q", tc.database, got, tc.want)
			}
			if len(got) > 128 {
				t.Errorf("len = %d exceeds 128", len(got))
			}
		})
	}
}

func TestToDatabaseIdentifier_CollisionAt63(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	name := longName("database", 24)
	want1 := "database_long_long_long_long_lo_long_long_long_long_long_long_1"
	want2 := "database_long_long_long_long_lo_long_long_long_long_long_long_2"

	first := f.ToDatabaseIdentifier(scope(), name)
	if first != want1 {
		t.Fatalf("first = %q, want %q", first, want1)
	}
	second := f.ToDatabaseIdentifier(scope(first), name)
	if second != want2 {
		t.Fatalf("second = %q, want %q", second, want2)
	}
	if len(first) != 63 || len(second) != 63 {
		t.Errorf("lengths = %d, %d, want 63", len(first), len(second))
	}
}

func TestToDatabaseIdentifier_ReservedSchema(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	if got := f.ToDatabaseIdentifier(scope(), "torodb"); got != "_torodb" {
		t.Errorf("got %q, want _torodb", got)
	}
}

func TestToDocPartIdentifier(t *testing.T) {
	f := newTestFactory(128)
	root := tableref.Root()

	tests := []struct {
		name       string
		collection string
		ref        *tableref.TableRef
		taken      idSet
		want       string
	}{
		{"empty root", "", root, scope(), ""},
		{"unallowed root", "unallowed_table", root, scope(), "_unallowed_table"},
		{"root", "collecti", root, scope(), "collecti"},
		{"empty key", "collecti", root.Child(""), scope(), "collecti_"},
		{"nested", "collecti", root.Child("a").Child("b").Child("c"), scope(), "collecti_a_b_c"},
		{"array dimension", "collecti", root.Child("a").ChildArray(2), scope(), "collecti_a$2"},
		{"under array", "collecti", root.Child("a").ChildArray(2).Child("b"), scope(), "collecti_a$2_b"},
		{"deep array", "collecti", root.Child("a").ChildArray(2).ChildArray(3), scope(), "collecti_a$3"},
		{"fits exactly", "collecti", root.Child(longName("long", 23)), scope(), "collecti_" + longName("long", 23)},
		{
			"counter on length",
			"collecti",
			root.Child(longName("long", 24)),
			scope(),
			longName("collecti", 10) + "_longong" + strings.Repeat("_long", 12) + "_1",
		},
		{
			"counter on collision",
			"collecti",
			root.Child(longName("long", 24)),
			scope(longName("collecti", 10) + "_longong" + strings.Repeat("_long", 12) + "_1"),
			longName("collecti", 10) + "_longong" + strings.Repeat("_long", 12) + "_2",
		},
		{"index namespace", "people", root.Child("tags"), scope("people_tags"), "people_tags_1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.ToDocPartIdentifier(tc.taken, tc.collection, tc.ref)
			if got != tc.want {
				t.Errorf("ToDocPartIdentifier(%q, %s) = %q, want %q", tc.collection, tc.ref, got, tc.want)
			}
		})
	}
}

func TestToFieldIdentifier(t *testing.T) {
	f := newTestFactory(128)

	tests := []struct {
		name  string
		field string
		typ   meta.FieldType
		taken idSet
		want  string
	}{
		{"empty", "", meta.FieldString, scope(), "_s"},
		{"unallowed", "unallowed_column", meta.FieldString, scope(), "_unallowed_column_s"},
		{"plain", "field", meta.FieldString, scope(), "field_s"},
		{"child", "addr", meta.FieldChild, scope(), "addr_e"},
		{"decimal", "price", meta.FieldDecimal128, scope(), "price_m"},
		{"collision", "Field", meta.FieldString, scope("field_s"), "field_1_s"},
		{"reserved scalar", "v", meta.FieldString, scope(), "_v_s"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.ToFieldIdentifier(tc.taken, tc.field, tc.typ)
			if got != tc.want {
				t.Errorf("ToFieldIdentifier(%q, %s) = %q, want %q", tc.field, tc.typ, got, tc.want)
			}
		})
	}
}

func TestToFieldIdentifier_LongNameKeepsSuffix(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	name := longName("field", 30)
	got := f.ToFieldIdentifier(scope(), name, meta.FieldInteger)
	if len(got) != 63 {
		t.Errorf("len = %d, want 63", len(got))
	}
	if !strings.HasSuffix(got, "_1_i") {
		t.Errorf("got %q, want suffix _1_i", got)
	}
}

func TestToScalarIdentifier(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	c := f.Constraints()
	seen := make(map[string]meta.FieldType)
	for _, ft := range meta.FieldTypes() {
		id := f.ToScalarIdentifier(ft)
		if id != "v_"+string(c.FieldTypeTag(ft)) {
			t.Errorf("ToScalarIdentifier(%s) = %q", ft, id)
		}
		if other, dup := seen[id]; dup {
			t.Errorf("%s and %s share scalar identifier %q", ft, other, id)
		}
		seen[id] = ft
		if c.IsAllowedColumnIdentifier(id) {
			t.Errorf("scalar identifier %q is not reserved", id)
		}
	}
}

func TestToIndexIdentifier(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	cols := []meta.DocPartIndexColumn{
		{Identifier: "name_s"},
		{Identifier: "age_i", Ordering: meta.Descending},
	}
	got := f.ToIndexIdentifier(scope(), "people", cols)
	if got != "people_name_s_a_age_i_d_idx" {
		t.Errorf("got %q", got)
	}
	again := f.ToIndexIdentifier(scope(got), "people", cols)
	if again != "people_name_s_a_age_i_d_1_idx" {
		t.Errorf("collision got %q", again)
	}
}

func TestFactory_UniqueAndBoundedUnderGrowingScope(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(20))
	taken := scope()
	names := []string{
		"a", "A", "á", "a ", "a_", "a_1",
		"averyveryverylongfieldname", "averyveryverylongfieldname!", "AVeryVeryVeryLongFieldName",
	}
	for round := 0; round < 3; round++ {
		for _, n := range names {
			id := f.ToFieldIdentifier(taken, n, meta.FieldString)
			if taken.has(id) {
				t.Fatalf("duplicate identifier %q for %q", id, n)
			}
			if len(id) > 20 {
				t.Fatalf("identifier %q longer than 20", id)
			}
			taken[id] = struct{}{}
		}
	}
}

func TestFactory_Deterministic(t *testing.T) {
	f := NewFactory(NewDefaultConstraints(63))
	taken := scope("field_s", "field_1_s")
	a := f.ToFieldIdentifier(taken, "Field", meta.FieldString)
	b := f.ToFieldIdentifier(taken, "Field", meta.FieldString)
	if a != b {
		t.Errorf("not deterministic: %q vs %q", a, b)
	}
}
