package sqlite

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docrel/internal/backend/codec"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
)

// Table refs are stored with tableref.Marshal. Field and scalar positions
// share one sequence per doc-part so columns reload in their original order.
var metaTables = []string{
	`CREATE TABLE IF NOT EXISTS torodb_database (
		name TEXT PRIMARY KEY,
		identifier TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_collection (
		db_name TEXT NOT NULL,
		name TEXT NOT NULL,
		identifier TEXT NOT NULL,
		PRIMARY KEY (db_name, name)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_doc_part (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		table_ref TEXT NOT NULL,
		identifier TEXT NOT NULL,
		last_rid INTEGER NOT NULL,
		PRIMARY KEY (db_name, collection, table_ref)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_field (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		table_ref TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		identifier TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (db_name, collection, table_ref, name, type)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_scalar (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		table_ref TEXT NOT NULL,
		type TEXT NOT NULL,
		identifier TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (db_name, collection, table_ref, type)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_index (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		name TEXT NOT NULL,
		is_unique INTEGER NOT NULL,
		PRIMARY KEY (db_name, collection, name)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_index_field (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		index_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		table_ref TEXT NOT NULL,
		name TEXT NOT NULL,
		ordering TEXT NOT NULL,
		PRIMARY KEY (db_name, collection, index_name, position)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_doc_part_index (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		table_ref TEXT NOT NULL,
		identifier TEXT NOT NULL,
		is_unique INTEGER NOT NULL,
		PRIMARY KEY (db_name, identifier)
	)`,
	`CREATE TABLE IF NOT EXISTS torodb_doc_part_index_column (
		db_name TEXT NOT NULL,
		collection TEXT NOT NULL,
		index_identifier TEXT NOT NULL,
		position INTEGER NOT NULL,
		identifier TEXT NOT NULL,
		ordering TEXT NOT NULL,
		PRIMARY KEY (db_name, index_identifier, position)
	)`,
}

// Meta tables keyed by database and collection name, dropped with a collection.
var collectionMetaTables = []string{
	"torodb_collection",
	"torodb_doc_part",
	"torodb_field",
	"torodb_scalar",
	"torodb_index",
	"torodb_index_field",
	"torodb_doc_part_index",
	"torodb_doc_part_index_column",
}

// Reserved columns of every doc-part table.
const (
	colDid = "did"
	colRid = "rid"
	colPid = "pid"
	colSeq = "seq"
)

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualified names a table or index inside a schema.
func qualified(schema, name string) string {
	return quote(schema + "." + name)
}

func createDocPartSQL(schema, table string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		%s INTEGER NOT NULL,
		%s INTEGER PRIMARY KEY,
		%s INTEGER,
		%s INTEGER
	)`, qualified(schema, table), colDid, colRid, colPid, colSeq)
}

func addColumnSQL(schema, table string, col meta.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		qualified(schema, table), quote(col.Identifier), codec.SQLType(col.Type))
}

func createIndexSQL(schema, table string, ix *meta.DocPartIndex) string {
	cols := make([]string, len(ix.Columns()))
	for i, c := range ix.Columns() {
		cols[i] = quote(c.Identifier) + " " + c.Ordering.String()
	}
	unique := ""
	if ix.Unique() {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, qualified(schema, ix.Identifier()), qualified(schema, table), strings.Join(cols, ", "))
}

func insertRowSQL(schema, table string, columns []meta.Column) string {
	names := []string{colDid, colRid, colPid, colSeq}
	for _, c := range columns {
		names = append(names, quote(c.Identifier))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified(schema, table), strings.Join(names, ", "), marks)
}

func selectRowsSQL(schema, table string, columns []meta.Column) string {
	names := []string{colDid, colRid, colPid, colSeq}
	for _, c := range columns {
		names = append(names, quote(c.Identifier))
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(names, ", "), qualified(schema, table), colRid)
}
