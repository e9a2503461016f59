package repository

import (
	"context"
	"database/sql"
)

// SchemaProvisioner creates declared tables in a backing store.
// Provisioning is additive and idempotent: missing tables are created,
// missing columns are added, nothing is ever dropped or altered in place.
type SchemaProvisioner interface {
	// Provision ensures every table exists with at least the declared columns.
	Provision(ctx context.Context, tables []Table) error
}

// Storage is a provisioned SQL store shared by Storage-capable modules.
type Storage interface {
	SchemaProvisioner

	// DB returns the handle modules read and write through.
	DB() *sql.DB

	// Dialect names the SQL flavor ("sqlite" or "mysql").
	Dialect() string

	// Close releases the underlying connections.
	Close() error
}
