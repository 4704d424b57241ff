package meta

import "github.com/kailas-cloud/docrel/internal/domain/tableref"

// CollectionView is the part of a collection index planning reads.
// Implemented by *Collection and *MutableCollection.
type CollectionView interface {
	Indexes() []*Index
}

// DocPartView is the part of a doc-part index planning reads.
// Implemented by *DocPart and *MutableDocPart.
type DocPartView interface {
	TableRef() *tableref.TableRef
	Columns() []Column
	Indexes() []*DocPartIndex
}

// DocPartIndexPlan is a physical index a doc-part still needs.
type DocPartIndexPlan struct {
	Index   *Index
	Columns []DocPartIndexColumn
	Unique  bool
}

// MissingDocPartIndexes returns the physical indexes dp needs to serve every
// index of coll and does not have yet. Each index yields one plan per
// combination of typed columns holding its field names at dp's TableRef.
func MissingDocPartIndexes(coll CollectionView, dp DocPartView) []DocPartIndexPlan {
	existing := dp.Indexes()
	var plans []DocPartIndexPlan
	for _, ix := range coll.Indexes() {
		for _, cols := range requiredColumnSets(ix, dp) {
			if covered(existing, cols) || planned(plans, cols) {
				continue
			}
			plans = append(plans, DocPartIndexPlan{
				Index:   ix,
				Columns: cols,
				Unique:  ix.Unique() && len(ix.TableRefs()) == 1,
			})
		}
	}
	return plans
}

// RequiredBy reports whether some index of coll needs a physical index with
// exactly the columns of dpi on dp.
func RequiredBy(coll CollectionView, dp DocPartView, dpi *DocPartIndex) bool {
	for _, ix := range coll.Indexes() {
		for _, cols := range requiredColumnSets(ix, dp) {
			if sameColumns(cols, dpi.Columns()) {
				return true
			}
		}
	}
	return false
}

// requiredColumnSets expands the fields of ix living at dp into every
// combination of typed columns. A field without any typed column yields no set.
func requiredColumnSets(ix *Index, dp DocPartView) [][]DocPartIndexColumn {
	fields := ix.FieldsAt(dp.TableRef())
	if len(fields) == 0 {
		return nil
	}
	candidates := make([][]DocPartIndexColumn, len(fields))
	for i, f := range fields {
		for _, c := range dp.Columns() {
			if c.Scalar || c.Name != f.Name || c.Type == FieldChild {
				continue
			}
			candidates[i] = append(candidates[i], DocPartIndexColumn{Identifier: c.Identifier, Ordering: f.Ordering})
		}
		if len(candidates[i]) == 0 {
			return nil
		}
	}

	sets := [][]DocPartIndexColumn{{}}
	for _, cands := range candidates {
		next := make([][]DocPartIndexColumn, 0, len(sets)*len(cands))
		for _, prefix := range sets {
			for _, c := range cands {
				set := make([]DocPartIndexColumn, len(prefix), len(prefix)+1)
				copy(set, prefix)
				next = append(next, append(set, c))
			}
		}
		sets = next
	}
	return sets
}

func covered(existing []*DocPartIndex, cols []DocPartIndexColumn) bool {
	for _, e := range existing {
		if sameColumns(e.columns, cols) {
			return true
		}
	}
	return false
}

func planned(plans []DocPartIndexPlan, cols []DocPartIndexColumn) bool {
	for _, p := range plans {
		if sameColumns(p.Columns, cols) {
			return true
		}
	}
	return false
}
