package storage

import "database/sql"

// NewMySQLStore returns a store speaking MySQL. The driver already uses
// ? placeholders, so no rebinding is needed.
//
// MySQL reports changed rows rather than matched rows, so the version
// compare-and-swap is only trustworthy because every durable mutation
// moves version_number; untouched products never reach the UPDATE.
func NewMySQLStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db)
}
