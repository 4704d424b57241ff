package meta

import "slices"

// MutableSnapshot is a copy-on-write overlay over an immutable snapshot.
// Elements of the base are wrapped lazily on first access. It is not safe
// for concurrent use.
type MutableSnapshot struct {
	base      *Snapshot
	databases map[string]*MutableDatabase
	touched   []*MutableDatabase
	removed   map[string]bool
	addedIDs  map[string]struct{}
	docParts  []*MutableDocPart
	log       []Change
}

// NewMutableSnapshot starts an overlay over base.
func NewMutableSnapshot(base *Snapshot) *MutableSnapshot {
	if base == nil {
		base = Empty()
	}
	return &MutableSnapshot{
		base:      base,
		databases: make(map[string]*MutableDatabase),
		removed:   make(map[string]bool),
		addedIDs:  make(map[string]struct{}),
	}
}

// Base returns the snapshot the overlay started from.
func (s *MutableSnapshot) Base() *Snapshot { return s.base }

// Database looks a database up by name, wrapping the base one if needed.
func (s *MutableSnapshot) Database(name string) (*MutableDatabase, bool) {
	if db, ok := s.databases[name]; ok {
		return db, true
	}
	if s.removed[name] {
		return nil, false
	}
	base, ok := s.base.DatabaseByName(name)
	if !ok {
		return nil, false
	}
	db := newMutableDatabase(s, base, base.name, base.identifier)
	s.databases[name] = db
	s.touched = append(s.touched, db)
	return db, true
}

// HasDatabaseIdentifier reports whether the base or the overlay uses id.
func (s *MutableSnapshot) HasDatabaseIdentifier(id string) bool {
	if s.base.HasDatabaseIdentifier(id) {
		return true
	}
	_, ok := s.addedIDs[id]
	return ok
}

// AddDatabase creates a database. An existing database with the same name is returned as is.
func (s *MutableSnapshot) AddDatabase(name, identifier string) *MutableDatabase {
	if db, ok := s.Database(name); ok {
		return db
	}
	db := newMutableDatabase(s, nil, name, identifier)
	s.databases[name] = db
	s.touched = append(s.touched, db)
	s.addedIDs[identifier] = struct{}{}
	s.log = append(s.log, Change{Kind: ChangeAddDatabase, Database: name, Schema: identifier})
	return db
}

// RemoveDatabase drops a database with all its collections.
func (s *MutableSnapshot) RemoveDatabase(name string) bool {
	db, ok := s.Database(name)
	if !ok {
		return false
	}
	var tables []string
	for _, c := range db.Collections() {
		tables = append(tables, c.tables()...)
		c.dropped = true
	}
	db.dropped = true
	delete(s.databases, name)
	s.removed[name] = true
	s.log = append(s.log, Change{
		Kind:     ChangeRemoveDatabase,
		Database: name,
		Schema:   db.identifier,
		Tables:   tables,
	})
	return true
}

// Changes returns the modification log followed by one ChangeLastRid entry
// per doc-part whose rid high-water mark moved.
func (s *MutableSnapshot) Changes() Changes {
	out := slices.Clone(s.log)
	for _, dp := range s.docParts {
		if dp.coll.dropped || dp.coll.db.dropped {
			continue
		}
		baseRid := NoRid
		if dp.base != nil {
			baseRid = dp.base.lastRid
		}
		if dp.lastRid > baseRid {
			ch := dp.change(ChangeLastRid)
			ch.LastRid = dp.lastRid
			out = append(out, ch)
		}
	}
	return out
}

// Immutable freezes the overlay as if it were committed on top of its base.
func (s *MutableSnapshot) Immutable() *Snapshot {
	return s.build(s.base.version)
}

func (s *MutableSnapshot) build(version uint64) *Snapshot {
	b := NewSnapshotBuilder(s.base).WithVersion(version)
	for name := range s.removed {
		b.Remove(name)
	}
	for _, db := range s.touched {
		if db.dropped {
			continue
		}
		b.Put(db.build())
	}
	return b.Build()
}

// MutableDatabase is the overlay of one database.
type MutableDatabase struct {
	snap       *MutableSnapshot
	base       *Database
	name       string
	identifier string

	collections map[string]*MutableCollection
	touched     []*MutableCollection
	removed     map[string]bool

	collectionIDs   map[string]struct{}
	docPartIDs      map[string]struct{}
	docPartIndexIDs map[string]struct{}
	dropped         bool
}

func newMutableDatabase(s *MutableSnapshot, base *Database, name, identifier string) *MutableDatabase {
	return &MutableDatabase{
		snap:            s,
		base:            base,
		name:            name,
		identifier:      identifier,
		collections:     make(map[string]*MutableCollection),
		removed:         make(map[string]bool),
		collectionIDs:   make(map[string]struct{}),
		docPartIDs:      make(map[string]struct{}),
		docPartIndexIDs: make(map[string]struct{}),
	}
}

// Name returns the database name.
func (d *MutableDatabase) Name() string { return d.name }

// Identifier returns the schema name.
func (d *MutableDatabase) Identifier() string { return d.identifier }

// Collection looks a collection up by name.
func (d *MutableDatabase) Collection(name string) (*MutableCollection, bool) {
	if c, ok := d.collections[name]; ok {
		return c, true
	}
	if d.removed[name] || d.base == nil {
		return nil, false
	}
	base, ok := d.base.CollectionByName(name)
	if !ok {
		return nil, false
	}
	c := newMutableCollection(d, base, base.name, base.identifier)
	d.collections[name] = c
	d.touched = append(d.touched, c)
	return c, true
}

// Collections returns every live collection: base ones first, then added ones.
func (d *MutableDatabase) Collections() []*MutableCollection {
	var out []*MutableCollection
	if d.base != nil {
		for _, bc := range d.base.collections {
			if c, ok := d.Collection(bc.name); ok && c.base == bc {
				out = append(out, c)
			}
		}
	}
	for _, c := range d.touched {
		if c.base == nil && !c.dropped {
			out = append(out, c)
		}
	}
	return out
}

// HasCollectionIdentifier reports whether a collection of the base or the overlay uses id.
func (d *MutableDatabase) HasCollectionIdentifier(id string) bool {
	if d.base != nil && d.base.HasCollectionIdentifier(id) {
		return true
	}
	_, ok := d.collectionIDs[id]
	return ok
}

// HasDocPartIdentifier reports whether any doc-part of the database uses id.
func (d *MutableDatabase) HasDocPartIdentifier(id string) bool {
	if d.base != nil && d.base.HasDocPartIdentifier(id) {
		return true
	}
	_, ok := d.docPartIDs[id]
	return ok
}

// HasDocPartIndexIdentifier reports whether any physical index of the database uses id.
func (d *MutableDatabase) HasDocPartIndexIdentifier(id string) bool {
	if d.base != nil && d.base.HasDocPartIndexIdentifier(id) {
		return true
	}
	_, ok := d.docPartIndexIDs[id]
	return ok
}

// AddCollection creates a collection. An existing one with the same name is returned as is.
func (d *MutableDatabase) AddCollection(name, identifier string) *MutableCollection {
	if c, ok := d.Collection(name); ok {
		return c
	}
	c := newMutableCollection(d, nil, name, identifier)
	d.collections[name] = c
	d.touched = append(d.touched, c)
	d.collectionIDs[identifier] = struct{}{}
	d.snap.log = append(d.snap.log, Change{
		Kind:                 ChangeAddCollection,
		Database:             d.name,
		Schema:               d.identifier,
		Collection:           name,
		CollectionIdentifier: identifier,
	})
	return c
}

// RemoveCollection drops a collection with its doc-parts and indexes.
func (d *MutableDatabase) RemoveCollection(name string) bool {
	c, ok := d.Collection(name)
	if !ok {
		return false
	}
	c.dropped = true
	delete(d.collections, name)
	d.removed[name] = true
	d.snap.log = append(d.snap.log, Change{
		Kind:                 ChangeRemoveCollection,
		Database:             d.name,
		Schema:               d.identifier,
		Collection:           name,
		CollectionIdentifier: c.identifier,
		Tables:               c.tables(),
	})
	return true
}

func (d *MutableDatabase) build() *Database {
	var b *DatabaseBuilder
	if d.base != nil {
		b = d.base.ToBuilder()
	} else {
		b = NewDatabaseBuilder(d.name, d.identifier)
	}
	for name := range d.removed {
		b.Remove(name)
	}
	for _, c := range d.touched {
		if c.dropped {
			continue
		}
		b.Put(c.build())
	}
	return b.Build()
}
