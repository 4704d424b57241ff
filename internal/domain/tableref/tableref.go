// Package tableref names positions inside a document tree. Every position
// maps to one doc-part table.
package tableref

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// TableRef is an immutable path node: the root, a child reached by an object
// key, or a child reached by an array dimension. Children are interned by
// their parent, so two refs with equal paths are the same pointer.
type TableRef struct {
	parent    *TableRef
	name      string
	dimension int // > 0 for array children
	depth     int

	children sync.Map // childKey -> *TableRef
}

type childKey struct {
	name      string
	dimension int
}

var root = &TableRef{}

// Root returns the shared root ref.
func Root() *TableRef { return root }

// Child returns the ref reached from t through the object key name.
func (t *TableRef) Child(name string) *TableRef {
	return t.child(childKey{name: name})
}

// ChildArray returns the ref holding the elements of an array nested at the
// given dimension (2 for an array inside an array, 3 for the next level...).
func (t *TableRef) ChildArray(dimension int) *TableRef {
	if dimension < 1 {
		panic(fmt.Sprintf("tableref: invalid array dimension %d", dimension))
	}
	return t.child(childKey{dimension: dimension})
}

func (t *TableRef) child(k childKey) *TableRef {
	if c, ok := t.children.Load(k); ok {
		return c.(*TableRef)
	}
	c, _ := t.children.LoadOrStore(k, &TableRef{
		parent:    t,
		name:      k.name,
		dimension: k.dimension,
		depth:     t.depth + 1,
	})
	return c.(*TableRef)
}

// IsRoot reports whether t is the root.
func (t *TableRef) IsRoot() bool { return t.parent == nil }

// Parent returns the parent ref, or nil for the root.
func (t *TableRef) Parent() *TableRef { return t.parent }

// IsInArray reports whether t was reached through an array dimension.
func (t *TableRef) IsInArray() bool { return t.dimension > 0 }

// Name is the object key that reaches t. Empty for the root and array children.
func (t *TableRef) Name() string { return t.name }

// ArrayDimension is the nesting dimension of an array child, 0 otherwise.
func (t *TableRef) ArrayDimension() int { return t.dimension }

// Depth is the number of segments between the root and t.
func (t *TableRef) Depth() int { return t.depth }

// ElementDimension returns the dimension of the array whose elements live at t:
// a ref reached by key holds first-level elements.
func (t *TableRef) ElementDimension() int {
	if t.IsInArray() {
		return t.dimension
	}
	return 1
}

// NonArrayAncestor returns t or the closest ancestor reached by an object key.
func (t *TableRef) NonArrayAncestor() *TableRef {
	n := t
	for n.IsInArray() {
		n = n.parent
	}
	return n
}

// IsAncestorOf reports whether t is a strict ancestor of other.
func (t *TableRef) IsAncestorOf(other *TableRef) bool {
	for n := other.parent; n != nil; n = n.parent {
		if n == t {
			return true
		}
	}
	return false
}

// String renders the path with '.' between keys and '$n' for array dimensions.
func (t *TableRef) String() string {
	if t.IsRoot() {
		return ""
	}
	var sb strings.Builder
	for i, s := range t.Segments() {
		if s.Dimension > 0 {
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(s.Dimension))
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Name)
	}
	return sb.String()
}

// Segment is one step of a path. Exactly one of Name or Dimension is meaningful.
type Segment struct {
	Name      string `json:"k,omitempty"`
	Dimension int    `json:"a,omitempty"`
}

// Segments returns the path from the root to t.
func (t *TableRef) Segments() []Segment {
	segs := make([]Segment, t.depth)
	for n := t; !n.IsRoot(); n = n.parent {
		segs[n.depth-1] = Segment{Name: n.name, Dimension: n.dimension}
	}
	return segs
}

// FromSegments resolves a path starting at the root.
func FromSegments(segs []Segment) *TableRef {
	t := Root()
	for _, s := range segs {
		if s.Dimension > 0 {
			t = t.ChildArray(s.Dimension)
		} else {
			t = t.Child(s.Name)
		}
	}
	return t
}

// MarshalJSON encodes the ref as its segment list.
func (t *TableRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Segments())
}

// Marshal encodes a ref as a JSON segment list.
func Marshal(t *TableRef) string {
	data, _ := json.Marshal(t.Segments()) //nolint:errchkjson // segments always encode
	return string(data)
}

// Unmarshal decodes a JSON segment list produced by Marshal.
func Unmarshal(s string) (*TableRef, error) {
	var segs []Segment
	if err := json.Unmarshal([]byte(s), &segs); err != nil {
		return nil, fmt.Errorf("decode table ref %q: %w", s, err)
	}
	return FromSegments(segs), nil
}
