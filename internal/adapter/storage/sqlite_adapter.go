package storage

import "database/sql"

// NewSQLiteStore returns a store speaking SQLite. The driver uses ?
// placeholders, so no rebinding is needed. Callers should open the
// database with _journal_mode=WAL and a _busy_timeout so concurrent
// units of work queue instead of failing.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db)
}
