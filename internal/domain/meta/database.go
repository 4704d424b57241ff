package meta

import "slices"

// Database is the immutable schema of one database.
type Database struct {
	name        string
	identifier  string
	collections []*Collection
	byName      map[string]*Collection
	byID        map[string]*Collection

	// identifiers shared by every collection of the database
	docPartIDs      map[string]*Collection
	docPartIndexIDs map[string]struct{}
}

// Name returns the document-domain name.
func (d *Database) Name() string { return d.name }

// Identifier returns the schema name.
func (d *Database) Identifier() string { return d.identifier }

// Collections returns the collections in creation order.
func (d *Database) Collections() []*Collection { return d.collections }

// CollectionByName looks a collection up by name.
func (d *Database) CollectionByName(name string) (*Collection, bool) {
	c, ok := d.byName[name]
	return c, ok
}

// CollectionByIdentifier looks a collection up by identifier.
func (d *Database) CollectionByIdentifier(id string) (*Collection, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// HasCollectionIdentifier reports whether a collection uses id.
func (d *Database) HasCollectionIdentifier(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// HasDocPartIdentifier reports whether any doc-part of any collection uses id.
func (d *Database) HasDocPartIdentifier(id string) bool {
	_, ok := d.docPartIDs[id]
	return ok
}

// DocPartOwner returns the collection whose doc-part uses the table identifier id.
func (d *Database) DocPartOwner(id string) (*Collection, bool) {
	c, ok := d.docPartIDs[id]
	return c, ok
}

// HasDocPartIndexIdentifier reports whether any physical index of the database uses id.
func (d *Database) HasDocPartIndexIdentifier(id string) bool {
	_, ok := d.docPartIndexIDs[id]
	return ok
}

// ToBuilder starts a copy-on-write modification of d.
func (d *Database) ToBuilder() *DatabaseBuilder {
	return &DatabaseBuilder{
		name:        d.name,
		identifier:  d.identifier,
		collections: slices.Clip(d.collections),
	}
}

// DatabaseBuilder assembles an immutable Database.
type DatabaseBuilder struct {
	name        string
	identifier  string
	collections []*Collection
}

// NewDatabaseBuilder starts an empty database.
func NewDatabaseBuilder(name, identifier string) *DatabaseBuilder {
	return &DatabaseBuilder{name: name, identifier: identifier}
}

// Put adds c, replacing any collection with the same name.
func (b *DatabaseBuilder) Put(c *Collection) *DatabaseBuilder {
	for i, old := range b.collections {
		if old.name == c.name {
			b.collections = slices.Clone(b.collections)
			b.collections[i] = c
			return b
		}
	}
	b.collections = append(b.collections, c)
	return b
}

// Remove drops a collection by name.
func (b *DatabaseBuilder) Remove(name string) *DatabaseBuilder {
	b.collections = slices.DeleteFunc(slices.Clone(b.collections), func(c *Collection) bool {
		return c.name == name
	})
	return b
}

// Build freezes the database.
func (b *DatabaseBuilder) Build() *Database {
	d := &Database{
		name:            b.name,
		identifier:      b.identifier,
		collections:     slices.Clip(b.collections),
		byName:          make(map[string]*Collection, len(b.collections)),
		byID:            make(map[string]*Collection, len(b.collections)),
		docPartIDs:      make(map[string]*Collection),
		docPartIndexIDs: make(map[string]struct{}),
	}
	for _, c := range b.collections {
		d.byName[c.name] = c
		d.byID[c.identifier] = c
		for _, dp := range c.docParts {
			d.docPartIDs[dp.identifier] = c
			for _, ix := range dp.indexes {
				d.docPartIndexIDs[ix.identifier] = struct{}{}
			}
		}
	}
	return d
}
