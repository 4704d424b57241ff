// Package meta is the derived relational schema: databases, collections,
// doc-parts, columns and indexes, as immutable snapshots plus copy-on-write
// overlays that are merged back optimistically.
package meta

import "slices"

// Snapshot is an immutable view of the whole schema.
type Snapshot struct {
	version   uint64
	databases []*Database
	byName    map[string]*Database
	byID      map[string]*Database
}

// Empty returns a snapshot without databases.
func Empty() *Snapshot {
	return NewSnapshotBuilder(nil).Build()
}

// Version increases by one on every merged commit.
func (s *Snapshot) Version() uint64 { return s.version }

// Databases returns the databases in creation order.
func (s *Snapshot) Databases() []*Database { return s.databases }

// DatabaseByName looks a database up by name.
func (s *Snapshot) DatabaseByName(name string) (*Database, bool) {
	d, ok := s.byName[name]
	return d, ok
}

// DatabaseByIdentifier looks a database up by schema name.
func (s *Snapshot) DatabaseByIdentifier(id string) (*Database, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// HasDatabaseIdentifier reports whether a database uses the schema name id.
func (s *Snapshot) HasDatabaseIdentifier(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Collection resolves a collection by database and collection name.
func (s *Snapshot) Collection(database, collection string) (*Database, *Collection, bool) {
	db, ok := s.byName[database]
	if !ok {
		return nil, nil, false
	}
	c, ok := db.CollectionByName(collection)
	if !ok {
		return db, nil, false
	}
	return db, c, true
}

// SnapshotBuilder assembles an immutable Snapshot.
type SnapshotBuilder struct {
	version   uint64
	databases []*Database
}

// NewSnapshotBuilder starts from base, or from nothing when base is nil.
func NewSnapshotBuilder(base *Snapshot) *SnapshotBuilder {
	if base == nil {
		return &SnapshotBuilder{}
	}
	return &SnapshotBuilder{version: base.version, databases: slices.Clip(base.databases)}
}

// WithVersion sets the version of the built snapshot.
func (b *SnapshotBuilder) WithVersion(v uint64) *SnapshotBuilder {
	b.version = v
	return b
}

// Put adds d, replacing any database with the same name.
func (b *SnapshotBuilder) Put(d *Database) *SnapshotBuilder {
	for i, old := range b.databases {
		if old.name == d.name {
			b.databases = slices.Clone(b.databases)
			b.databases[i] = d
			return b
		}
	}
	b.databases = append(b.databases, d)
	return b
}

// Remove drops a database by name.
func (b *SnapshotBuilder) Remove(name string) *SnapshotBuilder {
	b.databases = slices.DeleteFunc(slices.Clone(b.databases), func(d *Database) bool {
		return d.name == name
	})
	return b
}

// Build freezes the snapshot.
func (b *SnapshotBuilder) Build() *Snapshot {
	s := &Snapshot{
		version:   b.version,
		databases: slices.Clip(b.databases),
		byName:    make(map[string]*Database, len(b.databases)),
		byID:      make(map[string]*Database, len(b.databases)),
	}
	for _, d := range b.databases {
		s.byName[d.name] = d
		s.byID[d.identifier] = d
	}
	return s
}
