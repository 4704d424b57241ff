package chi

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
)

type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeNotFound         errorCode = "not_found"
	codeAlreadyExists    errorCode = "already_exists"
	codeCommitConflict   errorCode = "commit_conflict"
	codeInvalidDocument  errorCode = "invalid_document"
	codeUnsupportedValue errorCode = "unsupported_value"
	codeInvalidIndex     errorCode = "invalid_index"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type conflictResponse struct {
	Code       errorCode `json:"code"`
	Message    string    `json:"message"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Identifier string    `json:"identifier"`
}

type insertRequest struct {
	Documents []json.RawMessage `json:"documents"`
}

type insertResponse struct {
	Dids []int64 `json:"dids"`
}

type documentResponse struct {
	Did      int64           `json:"did"`
	Document json.RawMessage `json:"document"`
}

type findResponse struct {
	Documents []documentResponse `json:"documents"`
}

type indexKey struct {
	Path     string `json:"path"`
	Ordering string `json:"ordering,omitempty"` // ASC (default), DESC, 1, -1
}

type createIndexRequest struct {
	Name   string     `json:"name"`
	Unique bool       `json:"unique"`
	Keys   []indexKey `json:"keys"`
}

type createIndexResponse struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

type indexResponse struct {
	Name   string     `json:"name"`
	Unique bool       `json:"unique"`
	Keys   []indexKey `json:"keys"`
}

type indexListResponse struct {
	Indexes []indexResponse `json:"indexes"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type metadataResponse struct {
	Version   uint64             `json:"version"`
	Databases []databaseResponse `json:"databases"`
}

type databaseResponse struct {
	Name        string               `json:"name"`
	Identifier  string               `json:"identifier"`
	Collections []collectionResponse `json:"collections"`
}

type collectionResponse struct {
	Name       string            `json:"name"`
	Identifier string            `json:"identifier"`
	DocParts   []docPartResponse `json:"doc_parts"`
	Indexes    []indexResponse   `json:"indexes"`
}

type docPartResponse struct {
	TableRef   string                 `json:"table_ref"`
	Identifier string                 `json:"identifier"`
	LastRid    int64                  `json:"last_rid"`
	Columns    []columnResponse       `json:"columns"`
	Indexes    []docPartIndexResponse `json:"indexes,omitempty"`
}

type columnResponse struct {
	Name       string `json:"name,omitempty"`
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
	Scalar     bool   `json:"scalar,omitempty"`
}

type docPartIndexResponse struct {
	Identifier string   `json:"identifier"`
	Unique     bool     `json:"unique"`
	Columns    []string `json:"columns"`
}

func keysFromRequest(keys []indexKey) ([]schemauc.Key, error) {
	out := make([]schemauc.Key, len(keys))
	for i, k := range keys {
		ord := meta.Ascending
		if k.Ordering != "" {
			var err error
			if ord, err = meta.ParseOrdering(k.Ordering); err != nil {
				return nil, fmt.Errorf("key %q: %w: %w", k.Path, domain.ErrInvalidIndex, err)
			}
		}
		out[i] = schemauc.Key{Path: k.Path, Ordering: ord}
	}
	return out, nil
}

func indexToResponse(ix *meta.Index) indexResponse {
	keys := make([]indexKey, len(ix.Fields()))
	for i, f := range ix.Fields() {
		path := f.Name
		if !f.TableRef.IsRoot() {
			path = f.TableRef.String() + "." + f.Name
		}
		keys[i] = indexKey{Path: path, Ordering: f.Ordering.String()}
	}
	return indexResponse{Name: ix.Name(), Unique: ix.Unique(), Keys: keys}
}

func snapshotToResponse(s *meta.Snapshot) metadataResponse {
	resp := metadataResponse{Version: s.Version(), Databases: []databaseResponse{}}
	for _, db := range s.Databases() {
		dr := databaseResponse{Name: db.Name(), Identifier: db.Identifier(), Collections: []collectionResponse{}}
		for _, coll := range db.Collections() {
			dr.Collections = append(dr.Collections, collectionToResponse(coll))
		}
		resp.Databases = append(resp.Databases, dr)
	}
	return resp
}

func collectionToResponse(coll *meta.Collection) collectionResponse {
	cr := collectionResponse{
		Name:       coll.Name(),
		Identifier: coll.Identifier(),
		DocParts:   make([]docPartResponse, 0, len(coll.DocParts())),
		Indexes:    make([]indexResponse, 0, len(coll.Indexes())),
	}
	for _, dp := range coll.DocParts() {
		pr := docPartResponse{
			TableRef:   dp.TableRef().String(),
			Identifier: dp.Identifier(),
			LastRid:    dp.LastRid(),
			Columns:    make([]columnResponse, len(dp.Columns())),
		}
		for i, c := range dp.Columns() {
			pr.Columns[i] = columnResponse{Name: c.Name, Type: c.Type.String(), Identifier: c.Identifier, Scalar: c.Scalar}
		}
		for _, dpi := range dp.Indexes() {
			cols := make([]string, len(dpi.Columns()))
			for i, c := range dpi.Columns() {
				cols[i] = c.Identifier + " " + c.Ordering.String()
			}
			pr.Indexes = append(pr.Indexes, docPartIndexResponse{Identifier: dpi.Identifier(), Unique: dpi.Unique(), Columns: cols})
		}
		cr.DocParts = append(cr.DocParts, pr)
	}
	for _, ix := range coll.Indexes() {
		cr.Indexes = append(cr.Indexes, indexToResponse(ix))
	}
	return cr
}
