package kvdoc

import (
	"bytes"
	"math"
)

// Entry is one key of a document.
type Entry struct {
	Key   string
	Value Value
}

// E is shorthand for building an Entry.
func E(key string, v Value) Entry { return Entry{Key: key, Value: v} }

// Document is an ordered key→value map.
type Document struct {
	entries []Entry
}

// Kind implements Value.
func (*Document) Kind() Kind { return KindDocument }

// NewDocument creates a document with the given entries in order.
func NewDocument(entries ...Entry) *Document {
	d := &Document{entries: make([]Entry, len(entries))}
	copy(d.entries, entries)
	return d
}

// Len returns the number of keys.
func (d *Document) Len() int { return len(d.entries) }

// Entries returns the entries in document order. The slice must not be modified.
func (d *Document) Entries() []Entry { return d.entries }

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the value stored at key.
func (d *Document) Get(key string) (Value, bool) {
	for _, e := range d.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Append adds an entry at the end of the document.
func (d *Document) Append(key string, v Value) {
	d.entries = append(d.entries, Entry{Key: key, Value: v})
}

// Equal reports whether d and other hold the same keys in the same order with equal values.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.entries) != len(other.entries) {
		return false
	}
	for i := range d.entries {
		if d.entries[i].Key != other.entries[i].Key {
			return false
		}
		if !Equal(d.entries[i].Value, other.entries[i].Value) {
			return false
		}
	}
	return true
}

// Equal compares two values deeply. Key order matters and an explicit null
// never equals an absent value. -0 and 0 differ; NaN equals NaN.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Double:
		bv := b.(Double)
		if math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv && math.Signbit(float64(av)) == math.Signbit(float64(bv))
	case Instant:
		return av.Time().Equal(b.(Instant).Time())
	case Binary:
		bv := b.(Binary)
		return av.Subtype == bv.Subtype && bytes.Equal(av.Data, bv.Data)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Document:
		return av.Equal(b.(*Document))
	default:
		return a == b
	}
}
