package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
)

func openMySQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := os.Getenv("ALLOC_TEST_MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/allocator"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewMySQLStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	cleanTables(t, db)
	return store
}

func TestMySQLStore(t *testing.T) {
	runStoreSuite(t, openMySQLStore(t))
}
