package database

import (
	"context"
	"database/sql"
)

// Schema represents a database schema
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table represents a database table
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}

// Column represents a table column
type Column struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	Default      *string `json:"default,omitempty"`
	IsPrimaryKey bool    `json:"is_primary_key"`
}

// Index represents a table index
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns"`
	OnDelete          *string  `json:"on_delete,omitempty"`
	OnUpdate          *string  `json:"on_update,omitempty"`
}

// FindTable returns the table with the given name, or nil.
func (s *Schema) FindTable(name string) *Table {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// FindColumn returns the column with the given name, or nil.
func (t *Table) FindColumn(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Introspector defines the interface for database schema introspection
type Introspector interface {
	// IntrospectSchema reads the entire database schema
	IntrospectSchema(ctx context.Context, db Querier) (*Schema, error)

	// GetTables returns all table names in the database
	GetTables(ctx context.Context, db Querier) ([]string, error)

	// GetColumns returns all columns for a given table
	GetColumns(ctx context.Context, db Querier, tableName string) ([]Column, error)

	// GetIndexes returns all indexes for a given table
	GetIndexes(ctx context.Context, db Querier, tableName string) ([]Index, error)

	// GetForeignKeys returns all foreign keys for a given table
	GetForeignKeys(ctx context.Context, db Querier, tableName string) ([]ForeignKey, error)
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CopyStatement is a single data-copy statement produced by a SQLGenerator.
type CopyStatement struct {
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// SQLGenerator defines the interface for generating the statements that move
// rows from one store into another.
type SQLGenerator interface {
	// AttachDatabase generates SQL to attach another database file read-only
	AttachDatabase(path, alias string) string

	// DetachDatabase generates SQL to detach a previously attached database
	DetachDatabase(alias string) string

	// CopyRows generates an INSERT ... SELECT from a table in the attached
	// source database into a destination table
	CopyRows(sourceAlias, sourceTable, destinationTable string, columns []string, expressions []string, where string) CopyStatement
}

// Driver represents a database driver with introspection and SQL generation
type Driver interface {
	Introspector
	SQLGenerator

	// Name returns the database driver name (e.g., "sqlite")
	Name() string
}
