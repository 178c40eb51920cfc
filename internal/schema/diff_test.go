package schema

import (
	"context"
	"testing"

	"github.com/lockplane/storemigrate/database"
)

func mustLoad(t *testing.T, ddl string) *database.Schema {
	t.Helper()
	s, err := LoadSQLiteDDL(context.Background(), ddl)
	if err != nil {
		t.Fatalf("LoadSQLiteDDL failed: %v", err)
	}
	return s
}

func TestDiffSchemas_Identical(t *testing.T) {
	ddl := `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`
	diff := DiffSchemas(mustLoad(t, ddl), mustLoad(t, ddl))
	if len(diff.AddedTables) != 0 || len(diff.ModifiedTables) != 0 {
		t.Fatalf("expected empty diff, got %#v", diff)
	}
}

func TestDiffSchemas_TablesAndColumns(t *testing.T) {
	before := mustLoad(t, `
		CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT);
		CREATE TABLE old (id INTEGER);
	`)
	after := mustLoad(t, `
		CREATE TABLE a (id REAL PRIMARY KEY, title TEXT NOT NULL DEFAULT '');
		CREATE TABLE c (foo TEXT);
		CREATE INDEX idx_a_title ON a (title);
	`)

	diff := DiffSchemas(before, after)

	if len(diff.AddedTables) != 1 || diff.AddedTables[0].Name != "c" {
		t.Errorf("expected c to be added, got %+v", diff.AddedTables)
	}

	tableDiff := diff.Table("a")
	if tableDiff == nil {
		t.Fatal("expected a to be modified")
	}
	if len(tableDiff.AddedColumns) != 1 || tableDiff.AddedColumns[0].Name != "title" {
		t.Errorf("expected title added, got %+v", tableDiff.AddedColumns)
	}
	if len(tableDiff.ModifiedColumns) != 1 || !tableDiff.ModifiedColumns[0].HasChange(ChangeType) {
		t.Errorf("expected id type change, got %+v", tableDiff.ModifiedColumns)
	}
	if diff.Table("c") != nil {
		t.Error("added tables are not reported as modified")
	}
}

func TestDiffSchemas_UnchangedColumnsOnly(t *testing.T) {
	before := mustLoad(t, `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT, extra TEXT);`)
	after := mustLoad(t, `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT);`)

	if diff := DiffSchemas(before, after); diff.Table("a") != nil {
		t.Errorf("dropping a column needs no copy changes, got %+v", diff.Table("a"))
	}
}

func TestColumnDiff_BecomesNotNull(t *testing.T) {
	before := mustLoad(t, `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT, note TEXT NOT NULL);`)
	after := mustLoad(t, `CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT NOT NULL, note TEXT);`)

	tableDiff := DiffSchemas(before, after).Table("a")
	if tableDiff == nil || len(tableDiff.ModifiedColumns) != 2 {
		t.Fatalf("expected two modified columns, got %+v", tableDiff)
	}
	for _, col := range tableDiff.ModifiedColumns {
		want := col.ColumnName == "name"
		if got := col.BecomesNotNull(); got != want {
			t.Errorf("%s: BecomesNotNull() = %v, want %v", col.ColumnName, got, want)
		}
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"integer", "INTEGER"},
		{"varchar( 20 )", "VARCHAR(20)"},
		{"  double   precision ", "DOUBLE PRECISION"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeType(tt.input); got != tt.expected {
			t.Errorf("NormalizeType(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
