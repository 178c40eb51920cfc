package sqlite

import (
	"context"
	"fmt"

	"github.com/lockplane/storemigrate/database"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Driver bundles introspection, copy statement generation and integrity
// checks for SQLite store files.
type Driver struct {
	*Introspector
	*Generator
}

func NewDriver() *Driver {
	return &Driver{
		Introspector: NewIntrospector(),
		Generator:    NewGenerator(),
	}
}

func (d *Driver) Name() string { return DriverName }

// Violation is one row reported by PRAGMA foreign_key_check.
type Violation struct {
	Table  string
	RowID  int64
	Parent string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s row %d references missing %s", v.Table, v.RowID, v.Parent)
}

// ForeignKeyViolations lists rows in schema whose parent row is missing.
// An empty schema checks main.
func (d *Driver) ForeignKeyViolations(ctx context.Context, db database.Querier, schema string) ([]Violation, error) {
	if schema == "" {
		schema = "main"
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.foreign_key_check", QuoteIdentifier(schema)))
	if err != nil {
		return nil, fmt.Errorf("failed to check foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var violations []Violation
	for rows.Next() {
		var v Violation
		var rowid *int64
		var fkid int
		if err := rows.Scan(&v.Table, &rowid, &v.Parent, &fkid); err != nil {
			return nil, fmt.Errorf("failed to read foreign key violation: %w", err)
		}
		if rowid != nil {
			v.RowID = *rowid
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

var (
	_ database.Driver       = (*Driver)(nil)
	_ database.Introspector = (*Introspector)(nil)
	_ database.SQLGenerator = (*Generator)(nil)
)
