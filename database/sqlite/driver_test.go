package sqlite

import (
	"context"
	"testing"
)

func TestDriverName(t *testing.T) {
	if name := NewDriver().Name(); name != "sqlite" {
		t.Errorf("Expected name 'sqlite', got %q", name)
	}
}

func TestForeignKeyViolations(t *testing.T) {
	db := getTestDB(t)
	defer func() { _ = db.Close() }()

	execAll(t, db,
		"PRAGMA foreign_keys = OFF",
		"CREATE TABLE lists (id INTEGER PRIMARY KEY)",
		"CREATE TABLE items (id INTEGER PRIMARY KEY, list_id INTEGER REFERENCES lists(id))",
		"INSERT INTO lists (id) VALUES (1)",
		"INSERT INTO items (id, list_id) VALUES (10, 1), (11, 2)",
	)

	driver := NewDriver()
	violations, err := driver.ForeignKeyViolations(context.Background(), db, "")
	if err != nil {
		t.Fatalf("ForeignKeyViolations failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %v", violations)
	}
	v := violations[0]
	if v.Table != "items" || v.RowID != 11 || v.Parent != "lists" {
		t.Errorf("Unexpected violation: %+v", v)
	}
	if got := v.String(); got != "items row 11 references missing lists" {
		t.Errorf("Unexpected message %q", got)
	}

	execAll(t, db, "DELETE FROM items WHERE id = 11")
	violations, err = driver.ForeignKeyViolations(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("ForeignKeyViolations failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("Expected no violations, got %v", violations)
	}
}
