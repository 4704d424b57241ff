package identifier

import "github.com/kailas-cloud/docrel/internal/domain/meta"

// EnsureCollection returns the collection of s, adding it and its database
// with fresh identifiers when missing.
func (f *Factory) EnsureCollection(s *meta.MutableSnapshot, database, collection string) *meta.MutableCollection {
	db, ok := s.Database(database)
	if !ok {
		db = s.AddDatabase(database, f.ToDatabaseIdentifier(s, database))
	}
	coll, ok := db.Collection(collection)
	if !ok {
		coll = db.AddCollection(collection, f.ToCollectionIdentifier(db, collection))
	}
	return coll
}

// AddMissingDocPartIndexes creates the physical indexes every doc-part of
// coll needs for the collection's indexes and returns how many were added.
func (f *Factory) AddMissingDocPartIndexes(coll *meta.MutableCollection) int {
	added := 0
	for _, dp := range coll.DocParts() {
		for _, plan := range meta.MissingDocPartIndexes(coll, dp) {
			id := f.ToIndexIdentifier(coll.Database(), dp.Identifier(), plan.Columns)
			dp.AddIndex(meta.NewDocPartIndex(id, plan.Unique, plan.Columns))
			added++
		}
	}
	return added
}
