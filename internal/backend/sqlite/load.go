package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kailas-cloud/docrel/internal/backend/codec"
	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

type collKey struct{ database, collection string }

type docPartKey struct {
	collKey
	ref string
}

type indexKey struct {
	collKey
	name string
}

// loader collects metadata rows into builders, keeping insertion order.
type loader struct {
	databases   []*meta.DatabaseBuilder
	dbByName    map[string]*meta.DatabaseBuilder
	collections []collKey
	collByKey   map[collKey]*meta.CollectionBuilder
	docParts    []docPartKey
	dpByKey     map[docPartKey]*meta.DocPartBuilder
	indexes     []indexKey
	unique      map[indexKey]bool
	fields      map[indexKey][]meta.IndexField
	dpIndexes   []indexKey
	dpiOwner    map[indexKey]docPartKey
	dpiUnique   map[indexKey]bool
	dpiColumns  map[indexKey][]meta.DocPartIndexColumn
}

// LoadSnapshot rebuilds the metadata snapshot from the torodb_* tables.
func (b *Backend) LoadSnapshot(ctx context.Context) (*meta.Snapshot, error) {
	version, err := b.version(ctx)
	if err != nil {
		return nil, err
	}

	l := &loader{
		dbByName:   make(map[string]*meta.DatabaseBuilder),
		collByKey:  make(map[collKey]*meta.CollectionBuilder),
		dpByKey:    make(map[docPartKey]*meta.DocPartBuilder),
		unique:     make(map[indexKey]bool),
		fields:     make(map[indexKey][]meta.IndexField),
		dpiOwner:   make(map[indexKey]docPartKey),
		dpiUnique:  make(map[indexKey]bool),
		dpiColumns: make(map[indexKey][]meta.DocPartIndexColumn),
	}
	steps := []struct {
		query string
		scan  func(*sql.Rows) error
	}{
		{"SELECT name, identifier FROM torodb_database ORDER BY rowid", l.database},
		{"SELECT db_name, name, identifier FROM torodb_collection ORDER BY rowid", l.collection},
		{"SELECT db_name, collection, table_ref, identifier, last_rid FROM torodb_doc_part ORDER BY rowid", l.docPart},
		{`SELECT db_name, collection, table_ref, name, type, identifier, 0, position FROM torodb_field
			UNION ALL
			SELECT db_name, collection, table_ref, '', type, identifier, 1, position FROM torodb_scalar
			ORDER BY 1, 2, 3, 8`, l.column},
		{"SELECT db_name, collection, name, is_unique FROM torodb_index ORDER BY rowid", l.index},
		{`SELECT db_name, collection, index_name, table_ref, name, ordering FROM torodb_index_field
			ORDER BY db_name, collection, index_name, position`, l.indexField},
		{"SELECT db_name, collection, table_ref, identifier, is_unique FROM torodb_doc_part_index ORDER BY rowid", l.docPartIndex},
		{`SELECT db_name, collection, index_identifier, identifier, ordering FROM torodb_doc_part_index_column
			ORDER BY db_name, index_identifier, position`, l.docPartIndexColumn},
	}
	for _, step := range steps {
		if err := b.each(ctx, step.query, step.scan); err != nil {
			return nil, err
		}
	}
	return l.build(version)
}

func (b *Backend) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate metadata: %w", err)
	}
	return nil
}

func (l *loader) database(rows *sql.Rows) error {
	var name, id string
	if err := rows.Scan(&name, &id); err != nil {
		return fmt.Errorf("scan database: %w", err)
	}
	db := meta.NewDatabaseBuilder(name, id)
	l.databases = append(l.databases, db)
	l.dbByName[name] = db
	return nil
}

func (l *loader) collection(rows *sql.Rows) error {
	var k collKey
	var id string
	if err := rows.Scan(&k.database, &k.collection, &id); err != nil {
		return fmt.Errorf("scan collection: %w", err)
	}
	l.collections = append(l.collections, k)
	l.collByKey[k] = meta.NewCollectionBuilder(k.collection, id)
	return nil
}

func (l *loader) docPart(rows *sql.Rows) error {
	var k docPartKey
	var id string
	var lastRid int64
	if err := rows.Scan(&k.database, &k.collection, &k.ref, &id, &lastRid); err != nil {
		return fmt.Errorf("scan doc part: %w", err)
	}
	ref, err := tableref.Unmarshal(k.ref)
	if err != nil {
		return fmt.Errorf("doc part %s: %w", id, err)
	}
	l.docParts = append(l.docParts, k)
	l.dpByKey[k] = meta.NewDocPartBuilder(ref, id).SetLastRid(lastRid)
	return nil
}

func (l *loader) column(rows *sql.Rows) error {
	var k docPartKey
	var name, typ, id string
	var scalar bool
	var position int
	if err := rows.Scan(&k.database, &k.collection, &k.ref, &name, &typ, &id, &scalar, &position); err != nil {
		return fmt.Errorf("scan column: %w", err)
	}
	t, err := meta.ParseFieldType(typ)
	if err != nil {
		return fmt.Errorf("column %s: %w", id, err)
	}
	dp, ok := l.dpByKey[k]
	if !ok {
		return fmt.Errorf("column %s: doc part %s of %s.%s not found", id, k.ref, k.database, k.collection)
	}
	dp.AddColumn(meta.Column{Name: name, Type: t, Identifier: id, Scalar: scalar})
	return nil
}

func (l *loader) index(rows *sql.Rows) error {
	var k indexKey
	var unique bool
	if err := rows.Scan(&k.database, &k.collection, &k.name, &unique); err != nil {
		return fmt.Errorf("scan index: %w", err)
	}
	l.indexes = append(l.indexes, k)
	l.unique[k] = unique
	return nil
}

func (l *loader) indexField(rows *sql.Rows) error {
	var k indexKey
	var ref, name, ord string
	if err := rows.Scan(&k.database, &k.collection, &k.name, &ref, &name, &ord); err != nil {
		return fmt.Errorf("scan index field: %w", err)
	}
	tr, err := tableref.Unmarshal(ref)
	if err != nil {
		return fmt.Errorf("index %s: %w", k.name, err)
	}
	o, err := meta.ParseOrdering(ord)
	if err != nil {
		return fmt.Errorf("index %s: %w", k.name, err)
	}
	l.fields[k] = append(l.fields[k], meta.IndexField{TableRef: tr, Name: name, Ordering: o})
	return nil
}

func (l *loader) docPartIndex(rows *sql.Rows) error {
	var owner docPartKey
	var id string
	var unique bool
	if err := rows.Scan(&owner.database, &owner.collection, &owner.ref, &id, &unique); err != nil {
		return fmt.Errorf("scan doc part index: %w", err)
	}
	k := indexKey{collKey: owner.collKey, name: id}
	l.dpIndexes = append(l.dpIndexes, k)
	l.dpiOwner[k] = owner
	l.dpiUnique[k] = unique
	return nil
}

func (l *loader) docPartIndexColumn(rows *sql.Rows) error {
	var k indexKey
	var id, ord string
	if err := rows.Scan(&k.database, &k.collection, &k.name, &id, &ord); err != nil {
		return fmt.Errorf("scan doc part index column: %w", err)
	}
	o, err := meta.ParseOrdering(ord)
	if err != nil {
		return fmt.Errorf("doc part index %s: %w", k.name, err)
	}
	l.dpiColumns[k] = append(l.dpiColumns[k], meta.DocPartIndexColumn{Identifier: id, Ordering: o})
	return nil
}

func (l *loader) build(version uint64) (*meta.Snapshot, error) {
	for _, k := range l.dpIndexes {
		dp, ok := l.dpByKey[l.dpiOwner[k]]
		if !ok {
			return nil, fmt.Errorf("doc part index %s: doc part not found", k.name)
		}
		dp.AddIndex(meta.NewDocPartIndex(k.name, l.dpiUnique[k], l.dpiColumns[k]))
	}
	for _, k := range l.docParts {
		coll, ok := l.collByKey[k.collKey]
		if !ok {
			return nil, fmt.Errorf("doc part %s: collection %s.%s not found", k.ref, k.database, k.collection)
		}
		coll.PutDocPart(l.dpByKey[k].Build())
	}
	for _, k := range l.indexes {
		coll, ok := l.collByKey[k.collKey]
		if !ok {
			return nil, fmt.Errorf("index %s: collection %s.%s not found", k.name, k.database, k.collection)
		}
		coll.PutIndex(meta.NewIndex(k.name, l.unique[k], l.fields[k]))
	}
	for _, k := range l.collections {
		db, ok := l.dbByName[k.database]
		if !ok {
			return nil, fmt.Errorf("collection %s: database %s not found", k.collection, k.database)
		}
		db.Put(l.collByKey[k].Build())
	}

	sb := meta.NewSnapshotBuilder(nil).WithVersion(version)
	for _, db := range l.databases {
		sb.Put(db.Build())
	}
	return sb.Build(), nil
}

// ReadCollection loads every row of coll, each doc-part ordered by rid.
func (b *Backend) ReadCollection(ctx context.Context, database *meta.Database, coll *meta.Collection) ([]docpart.Result, error) {
	results := make([]docpart.Result, 0, len(coll.DocParts()))
	for _, dp := range coll.DocParts() {
		rows, err := b.readRows(ctx, database.Identifier(), dp)
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", database.Identifier(), dp.Identifier(), err)
		}
		results = append(results, docpart.Result{TableRef: dp.TableRef(), Columns: dp.Columns(), Rows: rows})
	}
	return results, nil
}

func (b *Backend) readRows(ctx context.Context, schema string, dp *meta.DocPart) ([]docpart.Row, error) {
	columns := dp.Columns()
	rows, err := b.db.QueryContext(ctx, selectRowsSQL(schema, dp.Identifier(), columns))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out      []docpart.Row
		pid, seq sql.NullInt64
		raw      = make([]any, len(columns))
		dest     = make([]any, 4+len(columns))
	)
	for rows.Next() {
		var row docpart.Row
		dest[0], dest[1], dest[2], dest[3] = &row.Did, &row.Rid, &pid, &seq
		for i := range raw {
			raw[i] = nil
			dest[4+i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row.Pid, row.HasPid = pid.Int64, pid.Valid
		row.Seq, row.HasSeq = int(seq.Int64), seq.Valid
		row.Values = make([]kvdoc.Value, len(columns))
		for pos, col := range columns {
			v, err := codec.FromSQL(col.Type, raw[pos])
			if err != nil {
				return nil, fmt.Errorf("rid %d column %s: %w", row.Rid, col.Identifier, err)
			}
			row.Values[pos] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
