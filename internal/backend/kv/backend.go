// Package kv stores doc-part rows and metadata in a Redis-compatible store.
//
// Layout, under a configurable prefix:
//
//	<prefix>meta                            snapshot JSON
//	<prefix>rows:<schema>:<table>           hash rid -> did
//	<prefix>row:<schema>:<table>:<rid>      hash did, pid, seq and one field per column
package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/backend/codec"
	"github.com/kailas-cloud/docrel/internal/d2r"
	"github.com/kailas-cloud/docrel/internal/db"
	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/docpart"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

var _ backend.Tx = (*Tx)(nil)

const (
	fieldDid = "did"
	fieldPid = "pid"
	fieldSeq = "seq"
)

// store is the consumer interface for the KV backend (ISP).
type store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exec(ctx context.Context, writes []db.Write) error
}

// Backend implements the document backend on a key-value store.
type Backend struct {
	store  store
	prefix string
}

// New creates a KV backend. Keys start with prefix.
func New(s store, prefix string) *Backend {
	return &Backend{store: s, prefix: prefix}
}

// Ping checks the store.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// LoadSnapshot reads the persisted metadata. A fresh store yields the empty snapshot.
func (b *Backend) LoadSnapshot(ctx context.Context) (*meta.Snapshot, error) {
	data, err := b.store.Get(ctx, b.metaKey())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return meta.Empty(), nil
		}
		return nil, fmt.Errorf("get %s: %w", b.metaKey(), err)
	}
	return decodeSnapshot(data)
}

// Begin starts a buffered transaction.
func (b *Backend) Begin(ctx context.Context) (backend.Tx, error) {
	return &Tx{b: b, ctx: ctx}, nil
}

// ReadCollection loads every row of coll.
func (b *Backend) ReadCollection(ctx context.Context, database *meta.Database, coll *meta.Collection) ([]docpart.Result, error) {
	results := make([]docpart.Result, 0, len(coll.DocParts()))
	for _, dp := range coll.DocParts() {
		rows, err := b.readRows(ctx, database.Identifier(), dp)
		if err != nil {
			return nil, err
		}
		results = append(results, docpart.Result{TableRef: dp.TableRef(), Columns: dp.Columns(), Rows: rows})
	}
	return results, nil
}

func (b *Backend) readRows(ctx context.Context, schema string, dp *meta.DocPart) ([]docpart.Row, error) {
	rids, err := b.rids(ctx, schema, dp.Identifier())
	if err != nil {
		return nil, err
	}
	if len(rids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(rids))
	for i, rid := range rids {
		keys[i] = b.rowKey(schema, dp.Identifier(), rid)
	}
	hashes, err := b.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read rows of %s.%s: %w", schema, dp.Identifier(), err)
	}

	rows := make([]docpart.Row, 0, len(hashes))
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		row, err := parseRow(rids[i], h, dp.Columns())
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", keys[i], err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// rids lists the rids of a table in ascending order.
func (b *Backend) rids(ctx context.Context, schema, table string) ([]int64, error) {
	m, err := b.store.HGetAll(ctx, b.rowsKey(schema, table))
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", b.rowsKey(schema, table), err)
	}
	rids := make([]int64, 0, len(m))
	for k := range m {
		rid, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad rid %q in %s: %w", k, b.rowsKey(schema, table), err)
		}
		rids = append(rids, rid)
	}
	slices.Sort(rids)
	return rids, nil
}

func (b *Backend) metaKey() string { return b.prefix + "meta" }

func (b *Backend) rowsKey(schema, table string) string {
	return fmt.Sprintf("%srows:%s:%s", b.prefix, schema, table)
}

func (b *Backend) rowKey(schema, table string, rid int64) string {
	return fmt.Sprintf("%srow:%s:%s:%d", b.prefix, schema, table, rid)
}

// buildRowFields converts a row into a flat hash. Absent columns have no field.
func buildRowFields(row docpart.Row, columns []meta.Column) map[string]string {
	m := make(map[string]string, 3+len(columns))
	m[fieldDid] = strconv.FormatInt(row.Did, 10)
	if row.HasPid {
		m[fieldPid] = strconv.FormatInt(row.Pid, 10)
	}
	if row.HasSeq {
		m[fieldSeq] = strconv.Itoa(row.Seq)
	}
	for pos, col := range columns {
		if v := row.Value(pos); v != nil {
			m[col.Identifier] = codec.ToString(v)
		}
	}
	return m
}

// parseRow is the inverse of buildRowFields.
func parseRow(rid int64, m map[string]string, columns []meta.Column) (docpart.Row, error) {
	row := docpart.Row{Rid: rid, Values: make([]kvdoc.Value, len(columns))}
	did, err := strconv.ParseInt(m[fieldDid], 10, 64)
	if err != nil {
		return docpart.Row{}, fmt.Errorf("did: %w", err)
	}
	row.Did = did
	if s, ok := m[fieldPid]; ok {
		if row.Pid, err = strconv.ParseInt(s, 10, 64); err != nil {
			return docpart.Row{}, fmt.Errorf("pid: %w", err)
		}
		row.HasPid = true
	}
	if s, ok := m[fieldSeq]; ok {
		if row.Seq, err = strconv.Atoi(s); err != nil {
			return docpart.Row{}, fmt.Errorf("seq: %w", err)
		}
		row.HasSeq = true
	}
	for pos, col := range columns {
		s, ok := m[col.Identifier]
		if !ok {
			continue
		}
		v, err := codec.FromString(col.Type, s)
		if err != nil {
			return docpart.Row{}, fmt.Errorf("column %s: %w", col.Identifier, err)
		}
		row.Values[pos] = v
	}
	return row, nil
}

// Tx buffers writes and flushes them in one MULTI/EXEC.
type Tx struct {
	b      *Backend
	ctx    context.Context
	writes []db.Write
	done   bool
}

// ApplyChanges drops the rows of removed tables and rewrites the metadata.
// Tables, columns and indexes need no DDL here. Unique indexes are rejected:
// this backend has no way to enforce them.
func (t *Tx) ApplyChanges(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error {
	if err := checkUnique(changes); err != nil {
		return err
	}
	for _, ch := range changes {
		if ch.Kind != meta.ChangeRemoveCollection && ch.Kind != meta.ChangeRemoveDatabase {
			continue
		}
		for _, table := range ch.Tables {
			rids, err := t.b.rids(ctx, ch.Schema, table)
			if err != nil {
				return err
			}
			for _, rid := range rids {
				t.writes = append(t.writes, db.Del(t.b.rowKey(ch.Schema, table, rid)))
			}
			t.writes = append(t.writes, db.Del(t.b.rowsKey(ch.Schema, table)))
		}
	}

	data, err := encodeSnapshot(merged)
	if err != nil {
		return err
	}
	t.writes = append(t.writes, db.Set(t.b.metaKey(), data))
	return nil
}

func checkUnique(changes meta.Changes) error {
	for _, ch := range changes {
		switch {
		case ch.Kind == meta.ChangeAddIndex && ch.Index.Unique():
			return fmt.Errorf("index %q: unique indexes need the sqlite backend: %w",
				ch.Index.Name(), domain.ErrInvalidIndex)
		case ch.Kind == meta.ChangeAddDocPartIndex && ch.DocPartIndex.Unique():
			return fmt.Errorf("doc part index %q: unique indexes need the sqlite backend: %w",
				ch.DocPartIndex.Identifier(), domain.ErrInvalidIndex)
		}
	}
	return nil
}

// InsertRows buffers the rows of data.
func (t *Tx) InsertRows(_ context.Context, schema string, data *d2r.CollectionData) error {
	for _, part := range data.OrderedDocPartData() {
		rows := part.Rows()
		if len(rows) == 0 {
			continue
		}
		index := make(map[string]string, len(rows))
		for _, row := range rows {
			t.writes = append(t.writes, db.HSet(t.b.rowKey(schema, part.Identifier(), row.Rid), buildRowFields(row, part.Columns())))
			index[strconv.FormatInt(row.Rid, 10)] = strconv.FormatInt(row.Did, 10)
		}
		t.writes = append(t.writes, db.HSet(t.b.rowsKey(schema, part.Identifier()), index))
	}
	return nil
}

// Commit flushes the buffered writes atomically.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if err := t.b.store.Exec(t.ctx, t.writes); err != nil {
		return fmt.Errorf("exec %d writes: %w", len(t.writes), err)
	}
	return nil
}

// Rollback discards the buffered writes.
func (t *Tx) Rollback() error {
	t.done = true
	t.writes = nil
	return nil
}
