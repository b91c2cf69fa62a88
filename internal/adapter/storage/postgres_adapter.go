package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// NewPostgresStore returns a SQLStore speaking postgres placeholder
// syntax. Open the *sql.DB with the pgx stdlib driver.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, rebind: rebindPostgres}
}

// rebindPostgres rewrites ? placeholders to numbered $n form.
func rebindPostgres(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
