package docrel

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kailas-cloud/docrel/internal/domain/meta"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
)

// Document is a reconstructed document and its did.
type Document struct {
	Did int64
	Doc bson.D
}

// IndexKey is one key of an index. Path is dotted through embedded documents.
type IndexKey struct {
	Path       string
	Descending bool
}

// Asc returns an ascending key on path.
func Asc(path string) IndexKey { return IndexKey{Path: path} }

// Desc returns a descending key on path.
func Desc(path string) IndexKey { return IndexKey{Path: path, Descending: true} }

// IndexInfo describes a defined index.
type IndexInfo struct {
	Name   string
	Unique bool
	Keys   []IndexKey
}

func keysToSchema(keys []IndexKey) []schemauc.Key {
	out := make([]schemauc.Key, len(keys))
	for i, k := range keys {
		ord := meta.Ascending
		if k.Descending {
			ord = meta.Descending
		}
		out[i] = schemauc.Key{Path: k.Path, Ordering: ord}
	}
	return out
}

func indexFromMeta(ix *meta.Index) IndexInfo {
	info := IndexInfo{Name: ix.Name(), Unique: ix.Unique(), Keys: make([]IndexKey, len(ix.Fields()))}
	for i, f := range ix.Fields() {
		path := f.Name
		if !f.TableRef.IsRoot() {
			path = f.TableRef.String() + "." + f.Name
		}
		info.Keys[i] = IndexKey{Path: path, Descending: f.Ordering == meta.Descending}
	}
	return info
}
