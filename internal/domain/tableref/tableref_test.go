package tableref

import (
	"testing"
)

func TestSegments_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		ref      *TableRef
		wantJSON string
		wantStr  string
	}{
		{"root", Root(), `[]`, ""},
		{"key", Root().Child("a"), `[{"k":"a"}]`, "a"},
		{"nested keys", Root().Child("a").Child("b"), `[{"k":"a"},{"k":"b"}]`, "a.b"},
		{"empty key", Root().Child(""), `[{}]`, ""},
		{"empty key under key", Root().Child("a").Child(""), `[{"k":"a"},{}]`, "a."},
		{"array dimension", Root().Child("m").ChildArray(2), `[{"k":"m"},{"a":2}]`, "m$2"},
		{"key under dimension", Root().Child("m").ChildArray(2).Child("x"), `[{"k":"m"},{"a":2},{"k":"x"}]`, "m$2.x"},
		{"deep dimensions", Root().Child("m").ChildArray(2).ChildArray(3), `[{"k":"m"},{"a":2},{"a":3}]`, "m$2$3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromSegments(tt.ref.Segments()); got != tt.ref {
				t.Errorf("FromSegments(Segments()) = %q, want the same ref", got)
			}
			data := Marshal(tt.ref)
			if data != tt.wantJSON {
				t.Errorf("Marshal = %s, want %s", data, tt.wantJSON)
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.ref {
				t.Errorf("Unmarshal(%s) = %q, want the same ref", data, got)
			}
			if s := tt.ref.String(); s != tt.wantStr {
				t.Errorf("String = %q, want %q", s, tt.wantStr)
			}
			if d := len(tt.ref.Segments()); d != tt.ref.Depth() {
				t.Errorf("segments = %d, depth = %d", d, tt.ref.Depth())
			}
		})
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	if _, err := Unmarshal("{"); err == nil {
		t.Error("expected error")
	}
}

func TestChild_Interned(t *testing.T) {
	a := Root().Child("a")
	if a != Root().Child("a") {
		t.Error("same key returned different refs")
	}
	if a.ChildArray(2) != a.ChildArray(2) {
		t.Error("same dimension returned different refs")
	}
	if a.Child("") == a.ChildArray(1) {
		t.Error("empty key and array dimension share a ref")
	}
	if Root().Child("a") == Root().Child("b").Child("a") {
		t.Error("refs with different parents are the same")
	}
}

func TestChildArray_InvalidDimension(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Root().ChildArray(0)
}

func TestIsAncestorOf(t *testing.T) {
	a := Root().Child("a")
	ab := a.Child("b")
	arr := ab.ChildArray(2)
	other := Root().Child("z")

	tests := []struct {
		name         string
		anc, ref     *TableRef
		wantAncestor bool
	}{
		{"root of key", Root(), a, true},
		{"root of deep", Root(), arr, true},
		{"parent", a, ab, true},
		{"grandparent through dimension", a, arr, true},
		{"self", ab, ab, false},
		{"child of parent", ab, a, false},
		{"sibling", other, ab, false},
		{"root of root", Root(), Root(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.anc.IsAncestorOf(tt.ref); got != tt.wantAncestor {
				t.Errorf("IsAncestorOf = %v, want %v", got, tt.wantAncestor)
			}
		})
	}
}

func TestNavigation(t *testing.T) {
	m := Root().Child("m")
	inner := m.ChildArray(2)
	leaf := inner.Child("x")

	if !Root().IsRoot() || m.IsRoot() {
		t.Error("IsRoot mismatch")
	}
	if inner.Parent() != m || m.Parent() != Root() || Root().Parent() != nil {
		t.Error("Parent mismatch")
	}
	if !inner.IsInArray() || m.IsInArray() {
		t.Error("IsInArray mismatch")
	}
	if m.ElementDimension() != 1 || inner.ElementDimension() != 2 {
		t.Errorf("element dimensions = %d, %d; want 1, 2", m.ElementDimension(), inner.ElementDimension())
	}
	if inner.NonArrayAncestor() != m || leaf.NonArrayAncestor() != leaf {
		t.Error("NonArrayAncestor mismatch")
	}
	if leaf.Name() != "x" || inner.Name() != "" || inner.ArrayDimension() != 2 {
		t.Error("segment accessors mismatch")
	}
}
