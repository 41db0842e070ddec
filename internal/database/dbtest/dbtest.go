// Package dbtest opens throwaway SQLite databases with the real migrations
// applied, for repository tests.
package dbtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aarangop/note-rags-web-ui/internal/database"
)

// MigrationsRoot returns the absolute path to db/migrations/ from the project root.
func MigrationsRoot(t testing.TB) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine dbtest file path")
	}
	// thisFile is internal/database/dbtest/dbtest.go, project root is three dirs up.
	dir := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "db", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations directory not found at %s: %v", dir, err)
	}
	return dir
}

// NewSQLite returns a migrated SQLite database in a temp dir. It is closed
// when the test ends.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := filepath.Join(MigrationsRoot(t), string(database.DialectSQLite))
	if err := database.RunMigrations(db, database.DialectSQLite, dir); err != nil {
		t.Fatalf("migrating sqlite: %v", err)
	}
	return db
}
