package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/restmodel/adapters/sqlite"
)

func TestOpen_Memory(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t (v TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A second connection would not see the table.
	if _, err := db.Exec("INSERT INTO t (v) VALUES ('a')"); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestOpen_FileUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.db")

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpen_ExistingQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.db") + "?_foreign_keys=on"

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
