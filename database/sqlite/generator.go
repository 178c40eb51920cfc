package sqlite

import (
	"fmt"
	"strings"

	"github.com/lockplane/storemigrate/database"
	"github.com/lockplane/storemigrate/internal/sqliteutil"
)

// Generator implements database.SQLGenerator for SQLite
type Generator struct{}

// NewGenerator creates a new SQLite SQL generator
func NewGenerator() *Generator {
	return &Generator{}
}

// AttachDatabase generates SQL to attach a database file read-only under alias.
// The path is passed as a URI so the source can never be written through the
// attachment.
func (g *Generator) AttachDatabase(path, alias string) string {
	return fmt.Sprintf("ATTACH DATABASE %s AS %s", QuoteLiteral(ReadOnlyURI(path)), QuoteIdentifier(alias))
}

// DetachDatabase generates SQL to detach a database
func (g *Generator) DetachDatabase(alias string) string {
	return fmt.Sprintf("DETACH DATABASE %s", QuoteIdentifier(alias))
}

// CopyRows generates an INSERT ... SELECT that fills destinationTable from
// sourceAlias.sourceTable. expressions[i] is evaluated against the source row
// and stored in columns[i].
func (g *Generator) CopyRows(sourceAlias, sourceTable, destinationTable string, columns []string, expressions []string, where string) database.CopyStatement {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = QuoteIdentifier(col)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM %s.%s",
		QuoteIdentifier(destinationTable),
		strings.Join(quoted, ", "),
		strings.Join(expressions, ", "),
		QuoteIdentifier(sourceAlias),
		QuoteIdentifier(sourceTable)))

	if strings.TrimSpace(where) != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	return database.CopyStatement{
		Description: fmt.Sprintf("Copy rows from %s into %s", sourceTable, destinationTable),
		SQL:         sb.String(),
	}
}

// CastColumn wraps a source column reference in a CAST to the destination type.
func (g *Generator) CastColumn(column, typeName string) string {
	if strings.TrimSpace(typeName) == "" {
		return QuoteIdentifier(column)
	}
	return fmt.Sprintf("CAST(%s AS %s)", QuoteIdentifier(column), typeName)
}

// ReadOnlyURI returns a SQLite URI filename that opens path read-only.
func ReadOnlyURI(path string) string {
	return sqliteutil.FileURI(path, "mode=ro")
}
