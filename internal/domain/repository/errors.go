package repository

import "errors"

// Common repository errors.
// These errors provide a consistent error interface across different storage implementations.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSchema indicates a table declaration that cannot be provisioned.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaConflict indicates two modules declared the same column with different definitions.
	ErrSchemaConflict = errors.New("schema conflict")
)
