package sqliteutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestPathFromDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"sqlite URL", "sqlite:///path/to/db.sqlite", "/path/to/db.sqlite"},
		{"sqlite URL with query", "sqlite:///path/to/db.sqlite?mode=ro", "/path/to/db.sqlite"},
		{"file URL", "file:/path/to/db.db", "/path/to/db.db"},
		{"file URL with query", "file:/path/to/db.db?mode=rw", "/path/to/db.db"},
		{"file URL with authority", "file:///path/to/db.db", "/path/to/db.db"},
		{"escaped file URL", "file:///data/a%2520b/app.db?mode=ro", "/data/a%20b/app.db"},
		{"relative file URL", "file:data/app.db", "data/app.db"},
		{"plain path", "/var/data/app.db", "/var/data/app.db"},
		{"relative path", "./local.db", "./local.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PathFromDSN(tt.input)
			if result != tt.expected {
				t.Errorf("PathFromDSN(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestHasHeader(t *testing.T) {
	tmpDir := t.TempDir()

	valid := filepath.Join(tmpDir, "valid.db")
	if err := os.WriteFile(valid, []byte(Header+"rest of page"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	short := filepath.Join(tmpDir, "short.db")
	if err := os.WriteFile(short, []byte("SQLite"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if ok, err := HasHeader(valid); err != nil || !ok {
		t.Errorf("HasHeader(valid) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := HasHeader(short); err != nil || ok {
		t.Errorf("HasHeader(short) = %v, %v; want false, nil", ok, err)
	}
	if _, err := HasHeader(filepath.Join(tmpDir, "missing.db")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestSidecarPaths(t *testing.T) {
	got := SidecarPaths("/data/app.db")
	want := []string{"/data/app.db-wal", "/data/app.db-shm", "/data/app.db-journal"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SidecarPaths[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRemoveWithSidecars(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "app.db")
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}

	if err := RemoveWithSidecars(path); err != nil {
		t.Fatalf("RemoveWithSidecars failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory, found %d entries", len(entries))
	}

	// Removing again is not an error
	if err := RemoveWithSidecars(path); err != nil {
		t.Errorf("expected no error for missing files, got %v", err)
	}
}

func TestDSNs(t *testing.T) {
	if got := ReadOnlyDSN("/data/app.db"); got != "file:///data/app.db?mode=ro&_pragma=busy_timeout(5000)" {
		t.Errorf("ReadOnlyDSN = %q", got)
	}

	for _, dir := range []string{"a%20b", "what?", "no#1", "plain dir"} {
		path := filepath.Join("/data", dir, "app.db")
		for _, dsn := range []string{ReadOnlyDSN(path), ReadWriteDSN(path), CreateDSN(path)} {
			if got := PathFromDSN(dsn); got != path {
				t.Errorf("PathFromDSN(%q) = %q, want %q", dsn, got, path)
			}
			if strings.Count(dsn, "?") != 1 || strings.Contains(dsn, "#") {
				t.Errorf("expected %q to escape the path", dsn)
			}
		}
	}
}

func TestFileURIOpensUnusualPaths(t *testing.T) {
	for _, dir := range []string{"a%20b", "what?", "no#1"} {
		t.Run(dir, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), dir, "app.db")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}

			db, err := sql.Open("sqlite", CreateDSN(path))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := db.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
				t.Fatalf("failed to create table: %v", err)
			}
			_ = db.Close()

			if ok, err := HasHeader(path); err != nil || !ok {
				t.Fatalf("expected a database at %s, got %v, %v", path, ok, err)
			}

			db, err = sql.Open("sqlite", ReadOnlyDSN(path))
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = db.Close() }()
			var n int
			if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
				t.Fatalf("failed to read back: %v", err)
			}
			if n != 1 {
				t.Errorf("expected 1 table, got %d", n)
			}
		})
	}
}

func TestGenerateStagingPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"with .db extension", "app.db", "app_staging.db"},
		{"with .sqlite extension", "data.sqlite", "data_staging.sqlite"},
		{"with .sqlite3 extension", "test.sqlite3", "test_staging.sqlite3"},
		{"with path", "./data/app.db", "./data/app_staging.db"},
		{"with nested path", "/var/data/app.db", "/var/data/app_staging.db"},
		{"no extension", "database", "database_staging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateStagingPath(tt.input)
			if result != tt.expected {
				t.Errorf("GenerateStagingPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
