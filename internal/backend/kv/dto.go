package kv

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

type snapshotDTO struct {
	Version   uint64        `json:"version"`
	Databases []databaseDTO `json:"databases"`
}

type databaseDTO struct {
	Name        string          `json:"name"`
	Identifier  string          `json:"identifier"`
	Collections []collectionDTO `json:"collections"`
}

type collectionDTO struct {
	Name       string       `json:"name"`
	Identifier string       `json:"identifier"`
	DocParts   []docPartDTO `json:"doc_parts"`
	Indexes    []indexDTO   `json:"indexes,omitempty"`
}

type docPartDTO struct {
	Ref        []tableref.Segment `json:"ref"`
	Identifier string             `json:"identifier"`
	LastRid    int64              `json:"last_rid"`
	Columns    []columnDTO        `json:"columns"`
	Indexes    []docPartIndexDTO  `json:"indexes,omitempty"`
}

type columnDTO struct {
	Name       string `json:"name,omitempty"`
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Scalar     bool   `json:"scalar,omitempty"`
}

type indexDTO struct {
	Name   string          `json:"name"`
	Unique bool            `json:"unique,omitempty"`
	Fields []indexFieldDTO `json:"fields"`
}

type indexFieldDTO struct {
	Ref  []tableref.Segment `json:"ref"`
	Name string             `json:"name"`
	Desc bool               `json:"desc,omitempty"`
}

type docPartIndexDTO struct {
	Identifier string                  `json:"identifier"`
	Unique     bool                    `json:"unique,omitempty"`
	Columns    []docPartIndexColumnDTO `json:"columns"`
}

type docPartIndexColumnDTO struct {
	Identifier string `json:"identifier"`
	Desc       bool   `json:"desc,omitempty"`
}

// encodeSnapshot serializes the whole metadata tree.
func encodeSnapshot(s *meta.Snapshot) ([]byte, error) {
	dto := snapshotDTO{Version: s.Version(), Databases: []databaseDTO{}}
	for _, d := range s.Databases() {
		dd := databaseDTO{Name: d.Name(), Identifier: d.Identifier(), Collections: []collectionDTO{}}
		for _, c := range d.Collections() {
			cd := collectionDTO{Name: c.Name(), Identifier: c.Identifier(), DocParts: []docPartDTO{}}
			for _, dp := range c.DocParts() {
				cd.DocParts = append(cd.DocParts, docPartToDTO(dp))
			}
			for _, ix := range c.Indexes() {
				id := indexDTO{Name: ix.Name(), Unique: ix.Unique()}
				for _, f := range ix.Fields() {
					id.Fields = append(id.Fields, indexFieldDTO{
						Ref: f.TableRef.Segments(), Name: f.Name, Desc: f.Ordering == meta.Descending,
					})
				}
				cd.Indexes = append(cd.Indexes, id)
			}
			dd.Collections = append(dd.Collections, cd)
		}
		dto.Databases = append(dto.Databases, dd)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func docPartToDTO(dp *meta.DocPart) docPartDTO {
	out := docPartDTO{
		Ref:        dp.TableRef().Segments(),
		Identifier: dp.Identifier(),
		LastRid:    dp.LastRid(),
		Columns:    make([]columnDTO, 0, len(dp.Columns())),
	}
	for _, c := range dp.Columns() {
		out.Columns = append(out.Columns, columnDTO{Name: c.Name, Type: c.Type.String(), Identifier: c.Identifier, Scalar: c.Scalar})
	}
	for _, ix := range dp.Indexes() {
		id := docPartIndexDTO{Identifier: ix.Identifier(), Unique: ix.Unique()}
		for _, c := range ix.Columns() {
			id.Columns = append(id.Columns, docPartIndexColumnDTO{Identifier: c.Identifier, Desc: c.Ordering == meta.Descending})
		}
		out.Indexes = append(out.Indexes, id)
	}
	return out
}

// decodeSnapshot rebuilds a snapshot written by encodeSnapshot.
func decodeSnapshot(data []byte) (*meta.Snapshot, error) {
	var dto snapshotDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	sb := meta.NewSnapshotBuilder(nil).WithVersion(dto.Version)
	for _, dd := range dto.Databases {
		db := meta.NewDatabaseBuilder(dd.Name, dd.Identifier)
		for _, cd := range dd.Collections {
			cb := meta.NewCollectionBuilder(cd.Name, cd.Identifier)
			for _, pd := range cd.DocParts {
				dp, err := docPartFromDTO(pd)
				if err != nil {
					return nil, fmt.Errorf("collection %s: %w", cd.Name, err)
				}
				cb.PutDocPart(dp)
			}
			for _, id := range cd.Indexes {
				fields := make([]meta.IndexField, 0, len(id.Fields))
				for _, f := range id.Fields {
					fields = append(fields, meta.IndexField{
						TableRef: tableref.FromSegments(f.Ref), Name: f.Name, Ordering: ordering(f.Desc),
					})
				}
				cb.PutIndex(meta.NewIndex(id.Name, id.Unique, fields))
			}
			db.Put(cb.Build())
		}
		sb.Put(db.Build())
	}
	return sb.Build(), nil
}

func docPartFromDTO(pd docPartDTO) (*meta.DocPart, error) {
	b := meta.NewDocPartBuilder(tableref.FromSegments(pd.Ref), pd.Identifier).SetLastRid(pd.LastRid)
	for _, c := range pd.Columns {
		t, err := meta.ParseFieldType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("doc part %s: %w", pd.Identifier, err)
		}
		b.AddColumn(meta.Column{Name: c.Name, Type: t, Identifier: c.Identifier, Scalar: c.Scalar})
	}
	for _, id := range pd.Indexes {
		cols := make([]meta.DocPartIndexColumn, 0, len(id.Columns))
		for _, c := range id.Columns {
			cols = append(cols, meta.DocPartIndexColumn{Identifier: c.Identifier, Ordering: ordering(c.Desc)})
		}
		b.AddIndex(meta.NewDocPartIndex(id.Identifier, id.Unique, cols))
	}
	return b.Build(), nil
}

func ordering(desc bool) meta.Ordering {
	if desc {
		return meta.Descending
	}
	return meta.Ascending
}
