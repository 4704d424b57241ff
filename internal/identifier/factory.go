package identifier

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

// DatabaseScope knows the schema identifiers in use.
type DatabaseScope interface {
	HasDatabaseIdentifier(id string) bool
}

// CollectionScope knows the collection and table identifiers of one database.
type CollectionScope interface {
	HasCollectionIdentifier(id string) bool
	HasDocPartIdentifier(id string) bool
}

// TableScope knows the table and index identifiers of one database. Tables
// and indexes share a namespace.
type TableScope interface {
	HasDocPartIdentifier(id string) bool
	HasDocPartIndexIdentifier(id string) bool
}

// ColumnScope knows the column identifiers of one doc-part.
type ColumnScope interface {
	HasColumnIdentifier(id string) bool
}

// Factory turns names into identifiers that are allowed by the backend,
// bounded by its length limit and unique within their scope. The result is
// a pure function of the name, the scope and the constraints.
type Factory struct {
	c        Constraints
	sep      byte
	arraySep byte
}

// NewFactory creates a factory for the given backend constraints.
func NewFactory(c Constraints) *Factory {
	return &Factory{c: c, sep: c.Separator(), arraySep: c.ArrayDimensionSeparator()}
}

// Constraints returns the backend constraints in use.
func (f *Factory) Constraints() Constraints { return f.c }

// ToDatabaseIdentifier derives a schema name.
func (f *Factory) ToDatabaseIdentifier(scope DatabaseScope, database string) string {
	return f.generate(f.chain(database), scope.HasDatabaseIdentifier, f.c.IsAllowedSchemaIdentifier, "")
}

// ToCollectionIdentifier derives a collection identifier.
func (f *Factory) ToCollectionIdentifier(scope CollectionScope, collection string) string {
	taken := func(id string) bool {
		return scope.HasCollectionIdentifier(id) || scope.HasDocPartIdentifier(id)
	}
	return f.generate(f.chain(collection), taken, f.c.IsAllowedTableIdentifier, "")
}

// ToDocPartIdentifier derives the table name of ref inside collection.
func (f *Factory) ToDocPartIdentifier(scope TableScope, collection string, ref *tableref.TableRef) string {
	chain := f.chain(collection)
	chain = f.appendRef(chain, ref)
	taken := func(id string) bool {
		return scope.HasDocPartIdentifier(id) || scope.HasDocPartIndexIdentifier(id)
	}
	return f.generate(chain, taken, f.c.IsAllowedTableIdentifier, "")
}

// ToFieldIdentifier derives the column name of field (name, t).
func (f *Factory) ToFieldIdentifier(scope ColumnScope, name string, t meta.FieldType) string {
	tag := string(f.c.FieldTypeTag(t))
	return f.generate(f.chain(name), scope.HasColumnIdentifier, f.c.IsAllowedColumnIdentifier, tag)
}

// ToScalarIdentifier returns the fixed column name of the array elements of type t.
func (f *Factory) ToScalarIdentifier(t meta.FieldType) string {
	return f.c.ScalarIdentifier(t)
}

// ToIndexIdentifier derives the name of a physical index on table.
func (f *Factory) ToIndexIdentifier(scope TableScope, table string, columns []meta.DocPartIndexColumn) string {
	chain := f.chain(table)
	for _, col := range columns {
		chain = append(chain, normalize(col.Identifier, f.sep))
		if col.Ordering == meta.Descending {
			chain = append(chain, "d")
		} else {
			chain = append(chain, "a")
		}
	}
	taken := func(id string) bool {
		return scope.HasDocPartIdentifier(id) || scope.HasDocPartIndexIdentifier(id)
	}
	return f.generate(chain, taken, f.c.IsAllowedIndexIdentifier, "idx")
}

func (f *Factory) chain(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normalize(n, f.sep)
	}
	return out
}

// appendRef adds one segment per object level. An array level is named
// after its closest keyed ancestor, which then contributes no segment.
func (f *Factory) appendRef(chain []string, ref *tableref.TableRef) []string {
	if ref.IsRoot() {
		return chain
	}
	parent := ref.Parent()
	name := normalize(ref.Name(), f.sep)
	if ref.IsInArray() {
		keyed := parent.NonArrayAncestor()
		name = normalize(keyed.Name(), f.sep) + string(f.arraySep) + strconv.Itoa(ref.ArrayDimension())
		parent = keyed.Parent()
	}
	return append(f.appendRef(chain, parent), name)
}

func (f *Factory) generate(chain []string, taken, allowed func(string) bool, suffix string) string {
	maxLen := f.c.MaxIdentifierLength()
	name := compose(chain, f.sep)

	id := f.finish(name, suffix, allowed)
	if len(id) <= maxLen && !taken(id) {
		return id
	}

	nameMax := maxLen
	if suffix != "" {
		nameMax = maxLen - len(suffix) - 1
	}
	for counter := 1; counter > 0; counter++ {
		id = f.finish(withCounter(name, counter, nameMax, f.sep), suffix, allowed)
		if len(id) > maxLen {
			// the allowed check prepended a separator
			id = f.finish(withCounter(name, counter, nameMax-1, f.sep), suffix, allowed)
		}
		if !taken(id) {
			return id
		}
	}
	panic(fmt.Sprintf("identifier: no free identifier for %q", name))
}

func (f *Factory) finish(name, suffix string, allowed func(string) bool) string {
	id := name
	if suffix != "" {
		id = name + string(f.sep) + suffix
	}
	if !allowed(id) {
		id = string(f.sep) + id
	}
	return id
}

// compose joins the first name, the middle names and the last name.
func compose(chain []string, sep byte) string {
	if len(chain) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(chain[0])
	if len(chain) > 2 {
		if middle := strings.Join(chain[1:len(chain)-1], "_"); middle != "" {
			sb.WriteByte(sep)
			sb.WriteString(middle)
		}
	}
	if len(chain) > 1 {
		sb.WriteByte(sep)
		sb.WriteString(chain[len(chain)-1])
	}
	return sb.String()
}

// withCounter appends sep+counter to name, cutting the middle of name when
// the result would not fit in nameMax.
func withCounter(name string, counter, nameMax int, sep byte) string {
	value := string(sep) + strconv.Itoa(counter)
	if len(name)+len(value) < nameMax {
		return name + value
	}
	avail := min(len(name), nameMax) - len(value)
	if avail < 0 {
		avail = 0
	}
	return name[:avail/2+avail%2] + name[len(name)-avail/2:] + value
}

// normalize decomposes, lowercases and replaces every rune outside
// [0-9a-z_$] with sep.
func normalize(s string, sep byte) string {
	s = strings.ToLower(norm.NFD.String(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r == '_', r == '$':
			return r
		default:
			return rune(sep)
		}
	}, s)
}
