package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/repository"
)

var _ repository.Storage = (*DB)(nil)

const (
	provisionAttempts = 3
	provisionBackoff  = 500 * time.Millisecond
)

// Provision creates missing tables and adds missing columns.
// MySQL commits DDL implicitly, so statements run one by one; each is
// idempotent and a failed run can simply be repeated.
func (db *DB) Provision(ctx context.Context, tables []repository.Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	for _, t := range tables {
		if err := db.provisionTable(ctx, t); err != nil {
			return fmt.Errorf("provisioning table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (db *DB) provisionTable(ctx context.Context, t repository.Table) error {
	if err := db.exec(ctx, createTableSQL(t)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	existing, err := db.existingColumns(ctx, t.Name)
	if err != nil {
		return err
	}

	for _, c := range t.Columns {
		if existing[strings.ToLower(c.Name)] {
			continue
		}
		stmt, err := addColumnSQL(t.Name, c)
		if err != nil {
			return err
		}
		if err := db.exec(ctx, stmt); err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("add column %s: %w", c.Name, err)
		}
	}
	return nil
}

// exec runs a DDL statement, retrying transient failures.
func (db *DB) exec(ctx context.Context, stmt string) error {
	var err error
	for attempt := 1; attempt <= provisionAttempts; attempt++ {
		if _, err = db.conn.ExecContext(ctx, stmt); err == nil || !isRetryable(err) {
			return err
		}
		if attempt == provisionAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(provisionBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// existingColumns lists the lowercased column names of a table.
func (db *DB) existingColumns(ctx context.Context, table string) (map[string]bool, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		AND table_name = ?
	`
	rows, err := db.conn.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning columns: %w", err)
		}
		columns[strings.ToLower(name)] = true
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
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		quote(t.Name), strings.Join(defs, ",\n\t"))
}

func addColumnSQL(table string, c repository.Column) (string, error) {
	if c.PrimaryKey {
		return "", fmt.Errorf("%w: cannot add primary key column %s.%s to an existing table",
			repository.ErrInvalidSchema, table, c.Name)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(table), columnDefinition(c)), nil
}

func columnDefinition(c repository.Column) string {
	def := quote(c.Name) + " " + columnType(c)
	if c.NotNull || c.PrimaryKey {
		def += " NOT NULL"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

// columnType maps a portable type. Text columns that are indexed or carry a
// default need a bounded length in MySQL.
func columnType(c repository.Column) string {
	switch c.Type {
	case repository.ColumnInteger:
		return "INT"
	case repository.ColumnBigInt:
		return "BIGINT"
	case repository.ColumnBoolean:
		return "BOOLEAN"
	case repository.ColumnReal:
		return "DOUBLE"
	case repository.ColumnTimestamp:
		return "DATETIME(6)"
	default:
		if c.PrimaryKey || c.Default != "" {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

func quote(ident string) string {
	return "`" + ident + "`"
}

func quoteList(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = quote(id)
	}
	return strings.Join(quoted, ", ")
}
