package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

var _ repository.Storage = (*DB)(nil)

// Provision creates missing tables and adds missing columns in one transaction.
// Existing tables and columns are never dropped or altered.
func (db *DB) Provision(ctx context.Context, tables []repository.Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provisioning: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := provisionTable(ctx, tx, t); err != nil {
			return fmt.Errorf("provisioning table %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provisioning: %w", err)
	}
	return nil
}

func provisionTable(ctx context.Context, tx *sql.Tx, t repository.Table) error {
	if _, err := tx.ExecContext(ctx, createTableSQL(t)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	existing, err := existingColumns(ctx, tx, t.Name)
	if err != nil {
		return err
	}

	for _, c := range t.Columns {
		if existing[c.Name] {
			continue
		}
		stmt, err := addColumnSQL(t.Name, c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", c.Name, err)
		}
	}
	return nil
}

// existingColumns lists the column names of a table.
func existingColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

func createTableSQL(t repository.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, columnDefinition(c))
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteList(pk)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(t.Name), strings.Join(defs, ",\n\t"))
}

// addColumnSQL builds an ALTER TABLE statement. SQLite cannot add key
// columns, nor NOT NULL columns without a default.
func addColumnSQL(table string, c repository.Column) (string, error) {
	if c.PrimaryKey {
		return "", fmt.Errorf("%w: cannot add primary key column %s.%s to an existing table",
			repository.ErrInvalidSchema, table, c.Name)
	}
	if c.NotNull && c.Default == "" {
		return "", fmt.Errorf("%w: column %s.%s is NOT NULL without a default",
			repository.ErrInvalidSchema, table, c.Name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(table), columnDefinition(c)), nil
}

func columnDefinition(c repository.Column) string {
	def := quote(c.Name) + " " + columnType(c.Type)
	if c.NotNull {
		def += " NOT NULL"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

func columnType(t repository.ColumnType) string {
	switch t {
	case repository.ColumnInteger, repository.ColumnBigInt, repository.ColumnBoolean:
		return "INTEGER"
	case repository.ColumnReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func quoteList(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = quote(id)
	}
	return strings.Join(quoted, ", ")
}
