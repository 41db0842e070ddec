package database_test

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/aarangop/note-rags-web-ui/internal/database"
	"github.com/aarangop/note-rags-web-ui/internal/database/dbtest"
)

var dialects = []database.Dialect{database.DialectMySQL, database.DialectSQLite}

// versions returns the sorted migration file names (without extension suffix)
// of one dialect.
func versions(t *testing.T, dialect database.Dialect, suffix string) []string {
	t.Helper()
	dir := filepath.Join(dbtest.MigrationsRoot(t), string(dialect))
	files, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		t.Fatalf("globbing %s migrations: %v", dialect, err)
	}
	var names []string
	for _, f := range files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), suffix))
	}
	sort.Strings(names)
	return names
}

// TestMigrations_UpDownPairs ensures every .up.sql has a matching .down.sql.
func TestMigrations_UpDownPairs(t *testing.T) {
	for _, d := range dialects {
		up := versions(t, d, ".up.sql")
		down := versions(t, d, ".down.sql")
		if len(up) == 0 {
			t.Fatalf("%s: no migration files found", d)
		}
		if strings.Join(up, ",") != strings.Join(down, ",") {
			t.Errorf("%s: up %v and down %v migrations differ", d, up, down)
		}
	}
}

// TestMigrations_DialectsInStep ensures both dialects define the same
// migration sequence, so switching DB_DRIVER never skips a schema change.
func TestMigrations_DialectsInStep(t *testing.T) {
	mysql := versions(t, database.DialectMySQL, ".up.sql")
	sqlite := versions(t, database.DialectSQLite, ".up.sql")
	if strings.Join(mysql, ",") != strings.Join(sqlite, ",") {
		t.Errorf("mysql %v and sqlite %v migrations differ", mysql, sqlite)
	}
}

// TestMigrations_SingleStatementMySQL guards against multi-statement files,
// which the MySQL driver rejects without multiStatements=true in the DSN.
func TestMigrations_SingleStatementMySQL(t *testing.T) {
	dir := filepath.Join(dbtest.MigrationsRoot(t), string(database.DialectMySQL))
	files, _ := filepath.Glob(filepath.Join(dir, "*.sql"))
	stmtEnd := regexp.MustCompile(`;\s*\S`)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		if stmtEnd.Match(data) {
			t.Errorf("%s: contains more than one statement", filepath.Base(f))
		}
	}
}

func TestRunMigrations_SQLite(t *testing.T) {
	db := dbtest.NewSQLite(t)

	for _, table := range []string{"users", "notes"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migrations: %v", table, err)
		}
	}

	// Running again is a no-op.
	dir := filepath.Join(dbtest.MigrationsRoot(t), string(database.DialectSQLite))
	if err := database.RunMigrations(db, database.DialectSQLite, dir); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
}
