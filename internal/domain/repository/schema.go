package repository

import (
	"fmt"
	"regexp"
)

// ColumnType is a portable column type. Each provisioner maps it onto its dialect.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnBigInt  ColumnType = "bigint"
	ColumnBoolean ColumnType = "boolean"
	ColumnReal    ColumnType = "real"

	// ColumnTimestamp is stored as RFC3339 text on SQLite and DATETIME on MySQL.
	ColumnTimestamp ColumnType = "timestamp"
)

// Column declares a single table column.
type Column struct {
	Name string
	Type ColumnType

	// PrimaryKey marks the column as part of the table's primary key.
	// Several columns form a composite key.
	PrimaryKey bool

	// NotNull forbids NULL values. A NOT NULL column added to an existing
	// table must declare a Default.
	NotNull bool

	// Default is a literal SQL default expression (e.g., "0", "''").
	Default string
}

// Table declares a module-owned table.
type Table struct {
	Name    string
	Columns []Column
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Validate checks names, types and primary key declarations.
func (t Table) Validate() error {
	if !identifierPattern.MatchString(t.Name) {
		return fmt.Errorf("%w: table name %q", ErrInvalidSchema, t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrInvalidSchema, t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if !identifierPattern.MatchString(c.Name) {
			return fmt.Errorf("%w: column name %q in table %s", ErrInvalidSchema, c.Name, t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate column %s in table %s", ErrInvalidSchema, c.Name, t.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case ColumnText, ColumnInteger, ColumnBigInt, ColumnBoolean, ColumnReal, ColumnTimestamp:
		default:
			return fmt.Errorf("%w: column %s.%s has unknown type %q", ErrInvalidSchema, t.Name, c.Name, c.Type)
		}
	}

	return nil
}

// PrimaryKey returns the names of the primary key columns in declaration order.
func (t Table) PrimaryKey() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// MergeTables combines table declarations from several modules.
// Tables with the same name are merged column by column, in first-seen order;
// a column declared twice must have an identical definition.
func MergeTables(declared ...[]Table) ([]Table, error) {
	var merged []Table
	index := make(map[string]int)

	for _, tables := range declared {
		for _, t := range tables {
			if err := t.Validate(); err != nil {
				return nil, err
			}

			i, ok := index[t.Name]
			if !ok {
				columns := make([]Column, len(t.Columns))
				copy(columns, t.Columns)
				index[t.Name] = len(merged)
				merged = append(merged, Table{Name: t.Name, Columns: columns})
				continue
			}

			for _, c := range t.Columns {
				existing, found := merged[i].Column(c.Name)
				if !found {
					merged[i].Columns = append(merged[i].Columns, c)
					continue
				}
				if existing != c {
					return nil, fmt.Errorf("%w: column %s.%s declared as %+v and %+v",
						ErrSchemaConflict, t.Name, c.Name, existing, c)
				}
			}
		}
	}

	return merged, nil
}
