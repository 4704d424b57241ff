package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kailas-cloud/docrel/internal/backend"
	"github.com/kailas-cloud/docrel/internal/backend/codec"
	"github.com/kailas-cloud/docrel/internal/d2r"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
)

var _ backend.Tx = (*Tx)(nil)

// Tx is one SQLite transaction.
type Tx struct {
	tx *sql.Tx
}

// ApplyChanges runs the DDL and metadata writes for changes, in log order,
// and stores the version of merged.
func (t *Tx) ApplyChanges(ctx context.Context, merged *meta.Snapshot, changes meta.Changes) error {
	for _, ch := range changes {
		if err := t.apply(ctx, ch); err != nil {
			return fmt.Errorf("apply %s: %w", ch.Kind, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", merged.Version())); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (t *Tx) apply(ctx context.Context, ch meta.Change) error {
	switch ch.Kind {
	case meta.ChangeAddDatabase:
		return t.exec(ctx, "INSERT INTO torodb_database (name, identifier) VALUES (?, ?)", ch.Database, ch.Schema)
	case meta.ChangeRemoveDatabase:
		if err := t.dropTables(ctx, ch.Schema, ch.Tables); err != nil {
			return err
		}
		for _, table := range collectionMetaTables {
			if err := t.exec(ctx, "DELETE FROM "+table+" WHERE db_name = ?", ch.Database); err != nil {
				return err
			}
		}
		return t.exec(ctx, "DELETE FROM torodb_database WHERE name = ?", ch.Database)
	case meta.ChangeAddCollection:
		return t.exec(ctx, "INSERT INTO torodb_collection (db_name, name, identifier) VALUES (?, ?, ?)",
			ch.Database, ch.Collection, ch.CollectionIdentifier)
	case meta.ChangeRemoveCollection:
		if err := t.dropTables(ctx, ch.Schema, ch.Tables); err != nil {
			return err
		}
		for _, table := range collectionMetaTables {
			column := "collection"
			if table == "torodb_collection" {
				column = "name"
			}
			if err := t.exec(ctx, "DELETE FROM "+table+" WHERE db_name = ? AND "+column+" = ?",
				ch.Database, ch.Collection); err != nil {
				return err
			}
		}
		return nil
	case meta.ChangeAddDocPart:
		if err := t.exec(ctx, createDocPartSQL(ch.Schema, ch.Table)); err != nil {
			return err
		}
		return t.exec(ctx, `INSERT INTO torodb_doc_part (db_name, collection, table_ref, identifier, last_rid)
			VALUES (?, ?, ?, ?, ?)`, ch.Database, ch.Collection, tableref.Marshal(ch.TableRef), ch.Table, meta.NoRid)
	case meta.ChangeAddField, meta.ChangeAddScalar:
		return t.addColumn(ctx, ch)
	case meta.ChangeAddIndex:
		return t.addIndex(ctx, ch)
	case meta.ChangeRemoveIndex:
		if err := t.exec(ctx, "DELETE FROM torodb_index WHERE db_name = ? AND collection = ? AND name = ?",
			ch.Database, ch.Collection, ch.Index.Name()); err != nil {
			return err
		}
		return t.exec(ctx, "DELETE FROM torodb_index_field WHERE db_name = ? AND collection = ? AND index_name = ?",
			ch.Database, ch.Collection, ch.Index.Name())
	case meta.ChangeAddDocPartIndex:
		return t.addDocPartIndex(ctx, ch)
	case meta.ChangeRemoveDocPartIndex:
		id := ch.DocPartIndex.Identifier()
		if err := t.exec(ctx, "DROP INDEX IF EXISTS "+qualified(ch.Schema, id)); err != nil {
			return err
		}
		if err := t.exec(ctx, "DELETE FROM torodb_doc_part_index WHERE db_name = ? AND identifier = ?", ch.Database, id); err != nil {
			return err
		}
		return t.exec(ctx, "DELETE FROM torodb_doc_part_index_column WHERE db_name = ? AND index_identifier = ?", ch.Database, id)
	case meta.ChangeLastRid:
		return t.exec(ctx, "UPDATE torodb_doc_part SET last_rid = ? WHERE db_name = ? AND collection = ? AND table_ref = ?",
			ch.LastRid, ch.Database, ch.Collection, tableref.Marshal(ch.TableRef))
	default:
		return fmt.Errorf("unknown change kind %d", ch.Kind)
	}
}

func (t *Tx) addColumn(ctx context.Context, ch meta.Change) error {
	if err := t.exec(ctx, addColumnSQL(ch.Schema, ch.Table, ch.Column)); err != nil {
		return err
	}
	ref := tableref.Marshal(ch.TableRef)

	// Columns are append-only, so the next position is the current count.
	var position int
	err := t.tx.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM torodb_field WHERE db_name = ? AND collection = ? AND table_ref = ?) +
		(SELECT COUNT(*) FROM torodb_scalar WHERE db_name = ? AND collection = ? AND table_ref = ?)`,
		ch.Database, ch.Collection, ref, ch.Database, ch.Collection, ref).Scan(&position)
	if err != nil {
		return fmt.Errorf("column position: %w", err)
	}

	if ch.Kind == meta.ChangeAddScalar {
		return t.exec(ctx, `INSERT INTO torodb_scalar (db_name, collection, table_ref, type, identifier, position)
			VALUES (?, ?, ?, ?, ?, ?)`, ch.Database, ch.Collection, ref, ch.Column.Type.String(), ch.Column.Identifier, position)
	}
	return t.exec(ctx, `INSERT INTO torodb_field (db_name, collection, table_ref, name, type, identifier, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, ch.Database, ch.Collection, ref, ch.Column.Name, ch.Column.Type.String(),
		ch.Column.Identifier, position)
}

func (t *Tx) addIndex(ctx context.Context, ch meta.Change) error {
	ix := ch.Index
	if err := t.exec(ctx, "INSERT INTO torodb_index (db_name, collection, name, is_unique) VALUES (?, ?, ?, ?)",
		ch.Database, ch.Collection, ix.Name(), ix.Unique()); err != nil {
		return err
	}
	for pos, f := range ix.Fields() {
		if err := t.exec(ctx, `INSERT INTO torodb_index_field
			(db_name, collection, index_name, position, table_ref, name, ordering) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ch.Database, ch.Collection, ix.Name(), pos, tableref.Marshal(f.TableRef), f.Name, f.Ordering.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) addDocPartIndex(ctx context.Context, ch meta.Change) error {
	ix := ch.DocPartIndex
	if err := t.exec(ctx, createIndexSQL(ch.Schema, ch.Table, ix)); err != nil {
		return err
	}
	if err := t.exec(ctx, `INSERT INTO torodb_doc_part_index (db_name, collection, table_ref, identifier, is_unique)
		VALUES (?, ?, ?, ?, ?)`, ch.Database, ch.Collection, tableref.Marshal(ch.TableRef), ix.Identifier(), ix.Unique()); err != nil {
		return err
	}
	for pos, c := range ix.Columns() {
		if err := t.exec(ctx, `INSERT INTO torodb_doc_part_index_column
			(db_name, collection, index_identifier, position, identifier, ordering) VALUES (?, ?, ?, ?, ?, ?)`,
			ch.Database, ch.Collection, ix.Identifier(), pos, c.Identifier, c.Ordering.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) dropTables(ctx context.Context, schema string, tables []string) error {
	for _, table := range tables {
		if err := t.exec(ctx, "DROP TABLE IF EXISTS "+qualified(schema, table)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// InsertRows writes every row of data, parents first.
func (t *Tx) InsertRows(ctx context.Context, schema string, data *d2r.CollectionData) error {
	for _, part := range data.OrderedDocPartData() {
		rows := part.Rows()
		if len(rows) == 0 {
			continue
		}
		if err := t.insertPart(ctx, schema, part); err != nil {
			return fmt.Errorf("insert into %s.%s: %w", schema, part.Identifier(), err)
		}
	}
	return nil
}

func (t *Tx) insertPart(ctx context.Context, schema string, part *d2r.DocPartData) error {
	columns := part.Columns()
	stmt, err := t.tx.PrepareContext(ctx, insertRowSQL(schema, part.Identifier(), columns))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, 4+len(columns))
	for _, row := range part.Rows() {
		args[0], args[1], args[2], args[3] = row.Did, row.Rid, nil, nil
		if row.HasPid {
			args[2] = row.Pid
		}
		if row.HasSeq {
			args[3] = row.Seq
		}
		for pos := range columns {
			args[4+pos] = codec.ToSQL(row.Value(pos))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("rid %d: %w", row.Rid, err)
		}
	}
	return nil
}

// Commit commits the SQLite transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit txn: %w", err)
	}
	return nil
}

// Rollback aborts the SQLite transaction.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback txn: %w", err)
	}
	return nil
}
