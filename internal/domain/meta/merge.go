package meta

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/docrel/internal/domain"
)

// Merge replays the changes of overlay on top of current and returns the
// resulting snapshot with the next version. current may have moved past the
// overlay's base; every replayed element must then resolve to the same
// element by name and by identifier, or to nothing at all. On conflict no
// snapshot is returned.
func Merge(current *Snapshot, overlay *MutableSnapshot) (*Snapshot, error) {
	merged, _, err := MergeChanges(current, overlay)
	return merged, err
}

// MergeChanges is Merge that also returns the changes the merged snapshot
// holds over current. Changes that current already holds are left out.
func MergeChanges(current *Snapshot, overlay *MutableSnapshot) (*Snapshot, Changes, error) {
	target := NewMutableSnapshot(current)
	touched := make(map[*MutableCollection]struct{})
	for _, ch := range overlay.Changes() {
		c, err := replay(target, ch)
		if err != nil {
			return nil, nil, err
		}
		if c != nil {
			touched[c] = struct{}{}
		}
	}
	for c := range touched {
		if c.dropped || c.db.dropped {
			continue
		}
		for _, dp := range c.DocParts() {
			if plans := MissingDocPartIndexes(c, dp); len(plans) > 0 {
				return nil, nil, domain.NewCommitConflict("doc part index", dp.ref.String(), dp.identifier,
					fmt.Sprintf("index %q has no physical index", plans[0].Index.Name()))
			}
		}
	}
	return target.build(current.Version() + 1), target.Changes(), nil
}

// replay applies one change to target and returns the collection it touched, if any.
func replay(target *MutableSnapshot, ch Change) (*MutableCollection, error) {
	switch ch.Kind {
	case ChangeAddDatabase:
		return nil, replayAddDatabase(target, ch)
	case ChangeRemoveDatabase:
		db, ok := target.Database(ch.Database)
		if !ok {
			return nil, nil
		}
		var tables []string
		for _, c := range db.Collections() {
			tables = append(tables, c.tables()...)
		}
		if !subset(tables, ch.Tables) {
			return nil, domain.NewCommitConflict("database", ch.Database, ch.Schema, "modified concurrently")
		}
		target.RemoveDatabase(ch.Database)
		return nil, nil
	case ChangeAddCollection:
		return replayAddCollection(target, ch)
	case ChangeRemoveCollection:
		db, ok := target.Database(ch.Database)
		if !ok {
			return nil, nil
		}
		c, ok := db.Collection(ch.Collection)
		if !ok {
			return nil, nil
		}
		if !subset(c.tables(), ch.Tables) {
			return nil, domain.NewCommitConflict("collection", ch.Collection, ch.CollectionIdentifier, "modified concurrently")
		}
		db.RemoveCollection(ch.Collection)
		return nil, nil
	case ChangeAddIndex, ChangeRemoveIndex:
		c, err := resolveCollection(target, ch)
		if err != nil {
			return nil, err
		}
		if ch.Kind == ChangeRemoveIndex {
			c.RemoveIndex(ch.Index.Name())
			return c, nil
		}
		if existing, ok := c.Index(ch.Index.Name()); ok {
			if !existing.SameDefinition(ch.Index) {
				return nil, domain.NewCommitConflict("index", ch.Index.Name(), "", "defined differently")
			}
			return c, nil
		}
		c.AddIndex(ch.Index)
		return c, nil
	case ChangeAddDocPart:
		return replayAddDocPart(target, ch)
	}

	c, err := resolveCollection(target, ch)
	if err != nil {
		return nil, err
	}
	dp, ok := c.DocPart(ch.TableRef)
	if !ok {
		return nil, domain.NewCommitConflict("doc part", ch.TableRef.String(), ch.Table, "missing")
	}
	switch ch.Kind {
	case ChangeAddField:
		return c, replayAddField(dp, ch)
	case ChangeAddScalar:
		return c, replayAddScalar(dp, ch)
	case ChangeAddDocPartIndex:
		return c, replayAddDocPartIndex(dp, ch)
	case ChangeRemoveDocPartIndex:
		dp.RemoveIndex(ch.DocPartIndex.Identifier())
	case ChangeLastRid:
		dp.SetLastRid(ch.LastRid)
	default:
		return nil, fmt.Errorf("merge: unknown change kind %d", ch.Kind)
	}
	return nil, nil
}

func replayAddDatabase(target *MutableSnapshot, ch Change) error {
	if db, ok := target.Database(ch.Database); ok {
		if db.identifier != ch.Schema {
			return domain.NewCommitConflict("database", ch.Database, ch.Schema, "name bound to "+db.identifier)
		}
		return nil
	}
	if target.HasDatabaseIdentifier(ch.Schema) {
		return domain.NewCommitConflict("database", ch.Database, ch.Schema, "identifier in use")
	}
	target.AddDatabase(ch.Database, ch.Schema)
	return nil
}

func replayAddCollection(target *MutableSnapshot, ch Change) (*MutableCollection, error) {
	db, ok := target.Database(ch.Database)
	if !ok {
		return nil, domain.NewCommitConflict("database", ch.Database, ch.Schema, "missing")
	}
	if c, ok := db.Collection(ch.Collection); ok {
		if c.identifier != ch.CollectionIdentifier {
			return nil, domain.NewCommitConflict("collection", ch.Collection, ch.CollectionIdentifier, "name bound to "+c.identifier)
		}
		return c, nil
	}
	if db.HasCollectionIdentifier(ch.CollectionIdentifier) {
		return nil, domain.NewCommitConflict("collection", ch.Collection, ch.CollectionIdentifier, "identifier in use")
	}
	return db.AddCollection(ch.Collection, ch.CollectionIdentifier), nil
}

func replayAddDocPart(target *MutableSnapshot, ch Change) (*MutableCollection, error) {
	c, err := resolveCollection(target, ch)
	if err != nil {
		return nil, err
	}
	if dp, ok := c.DocPart(ch.TableRef); ok {
		if dp.identifier != ch.Table {
			return nil, domain.NewCommitConflict("doc part", ch.TableRef.String(), ch.Table, "table ref bound to "+dp.identifier)
		}
		return c, nil
	}
	if c.db.HasDocPartIdentifier(ch.Table) {
		return nil, domain.NewCommitConflict("doc part", ch.TableRef.String(), ch.Table, "identifier in use")
	}
	c.AddDocPart(ch.TableRef, ch.Table)
	return c, nil
}

func replayAddField(dp *MutableDocPart, ch Change) error {
	col := ch.Column
	if f, ok := dp.FieldByNameAndType(col.Name, col.Type); ok {
		if f.Identifier != col.Identifier {
			return domain.NewCommitConflict("field", col.Name, col.Identifier, "field bound to "+f.Identifier)
		}
		return nil
	}
	if dp.HasColumnIdentifier(col.Identifier) {
		return domain.NewCommitConflict("field", col.Name, col.Identifier, "identifier in use")
	}
	dp.AddField(col.Name, col.Type, col.Identifier)
	return nil
}

func replayAddScalar(dp *MutableDocPart, ch Change) error {
	col := ch.Column
	if s, ok := dp.ScalarByType(col.Type); ok {
		if s.Identifier != col.Identifier {
			return domain.NewCommitConflict("scalar", col.Type.String(), col.Identifier, "scalar bound to "+s.Identifier)
		}
		return nil
	}
	if dp.HasColumnIdentifier(col.Identifier) {
		return domain.NewCommitConflict("scalar", col.Type.String(), col.Identifier, "identifier in use")
	}
	dp.AddScalar(col.Type, col.Identifier)
	return nil
}

func replayAddDocPartIndex(dp *MutableDocPart, ch Change) error {
	ix := ch.DocPartIndex
	if existing, ok := dp.IndexByIdentifier(ix.identifier); ok {
		if !existing.SameColumns(ix) {
			return domain.NewCommitConflict("doc part index", dp.identifier, ix.identifier, "columns differ")
		}
		return nil
	}
	for _, other := range dp.indexes {
		if other.SameColumns(ix) {
			return domain.NewCommitConflict("doc part index", dp.identifier, ix.identifier, "columns indexed by "+other.identifier)
		}
	}
	if dp.coll.db.HasDocPartIndexIdentifier(ix.identifier) {
		return domain.NewCommitConflict("doc part index", dp.identifier, ix.identifier, "identifier in use")
	}
	dp.AddIndex(ix)
	return nil
}

func resolveCollection(target *MutableSnapshot, ch Change) (*MutableCollection, error) {
	db, ok := target.Database(ch.Database)
	if !ok {
		return nil, domain.NewCommitConflict("database", ch.Database, ch.Schema, "missing")
	}
	c, ok := db.Collection(ch.Collection)
	if !ok {
		return nil, domain.NewCommitConflict("collection", ch.Collection, ch.CollectionIdentifier, "missing")
	}
	if c.identifier != ch.CollectionIdentifier {
		return nil, domain.NewCommitConflict("collection", ch.Collection, ch.CollectionIdentifier, "name bound to "+c.identifier)
	}
	return c, nil
}

func subset(have, known []string) bool {
	for _, t := range have {
		if !slices.Contains(known, t) {
			return false
		}
	}
	return true
}
