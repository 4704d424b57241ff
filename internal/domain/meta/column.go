package meta

// Column is the positional view of a doc-part column. Fields have a name;
// scalars (array elements) have none.
type Column struct {
	Name       string
	Type       FieldType
	Identifier string
	Scalar     bool
}

// Field is a named, typed column. The same name can have one field per type.
type Field struct {
	Name       string
	Type       FieldType
	Identifier string
}

// Scalar is the column holding array elements of one type.
type Scalar struct {
	Type       FieldType
	Identifier string
}

type fieldKey struct {
	name string
	typ  FieldType
}

// columnIndex is the lookup structure shared by immutable and mutable doc-parts.
type columnIndex struct {
	byID     map[string]int
	byField  map[fieldKey]int
	byScalar map[FieldType]int
}

func newColumnIndex(columns []Column) columnIndex {
	ci := columnIndex{
		byID:     make(map[string]int, len(columns)),
		byField:  make(map[fieldKey]int),
		byScalar: make(map[FieldType]int),
	}
	for i, c := range columns {
		ci.add(i, c)
	}
	return ci
}

func (ci columnIndex) add(pos int, c Column) {
	ci.byID[c.Identifier] = pos
	if c.Scalar {
		ci.byScalar[c.Type] = pos
	} else {
		ci.byField[fieldKey{name: c.Name, typ: c.Type}] = pos
	}
}

func (c Column) field() Field {
	return Field{Name: c.Name, Type: c.Type, Identifier: c.Identifier}
}

func (c Column) scalar() Scalar {
	return Scalar{Type: c.Type, Identifier: c.Identifier}
}
