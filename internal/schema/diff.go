package schema

import (
	"slices"
	"strings"

	"github.com/lockplane/storemigrate/database"
)

// SchemaDiff lists what a destination schema adds to or changes in a source
// schema. Tables and columns only present in the source are not reported;
// they are simply not copied.
type SchemaDiff struct {
	AddedTables    []database.Table `json:"added_tables,omitempty"`
	ModifiedTables []TableDiff      `json:"modified_tables,omitempty"`
}

// TableDiff represents changes to a single table
type TableDiff struct {
	TableName       string            `json:"table_name"`
	AddedColumns    []database.Column `json:"added_columns,omitempty"`
	ModifiedColumns []ColumnDiff      `json:"modified_columns,omitempty"`
}

// Column changes reported in ColumnDiff.Changes.
const (
	ChangeType       = "type"
	ChangeNullable   = "nullable"
	ChangeDefault    = "default"
	ChangePrimaryKey = "is_primary_key"
)

// ColumnDiff represents changes to a single column
type ColumnDiff struct {
	ColumnName string          `json:"column_name"`
	Old        database.Column `json:"old"`
	New        database.Column `json:"new"`
	Changes    []string        `json:"changes"`
}

// DiffSchemas compares two schemas. Tables are reported in the order they
// appear in desired.
func DiffSchemas(current, desired *database.Schema) *SchemaDiff {
	diff := &SchemaDiff{}

	for i := range desired.Tables {
		desiredTable := &desired.Tables[i]
		currentTable := current.FindTable(desiredTable.Name)
		if currentTable == nil {
			diff.AddedTables = append(diff.AddedTables, *desiredTable)
			continue
		}
		if tableDiff := diffTables(currentTable, desiredTable); tableDiff != nil {
			diff.ModifiedTables = append(diff.ModifiedTables, *tableDiff)
		}
	}

	return diff
}

// diffTables returns nil when every desired column exists unchanged.
func diffTables(current, desired *database.Table) *TableDiff {
	diff := &TableDiff{TableName: current.Name}

	for i := range desired.Columns {
		desiredCol := &desired.Columns[i]
		currentCol := current.FindColumn(desiredCol.Name)
		if currentCol == nil {
			diff.AddedColumns = append(diff.AddedColumns, *desiredCol)
			continue
		}
		if colDiff := diffColumns(currentCol, desiredCol); colDiff != nil {
			diff.ModifiedColumns = append(diff.ModifiedColumns, *colDiff)
		}
	}

	if len(diff.AddedColumns) == 0 && len(diff.ModifiedColumns) == 0 {
		return nil
	}
	return diff
}

// foreignKeyKey identifies a foreign key by what it references; SQLite
// foreign keys have no stable names.
func foreignKeyKey(fk database.ForeignKey) string {
	return strings.Join(fk.Columns, ",") + "->" + fk.ReferencedTable + "(" + strings.Join(fk.ReferencedColumns, ",") + ")"
}

func diffColumns(current, desired *database.Column) *ColumnDiff {
	var changes []string

	if NormalizeType(current.Type) != NormalizeType(desired.Type) {
		changes = append(changes, ChangeType)
	}
	if current.Nullable != desired.Nullable {
		changes = append(changes, ChangeNullable)
	}
	if !equalDefaults(current.Default, desired.Default) {
		changes = append(changes, ChangeDefault)
	}
	if current.IsPrimaryKey != desired.IsPrimaryKey {
		changes = append(changes, ChangePrimaryKey)
	}

	if len(changes) == 0 {
		return nil
	}

	return &ColumnDiff{
		ColumnName: current.Name,
		Old:        *current,
		New:        *desired,
		Changes:    changes,
	}
}

// NormalizeType upper-cases a declared SQLite type and collapses whitespace
// so "varchar( 20 )" and "VARCHAR(20)" compare equal.
func NormalizeType(typeName string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(strings.ReplaceAll(typeName, "( ", "("), " )", ")")), " "))
}

func equalDefaults(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HasChange reports whether the column diff includes the named change.
func (d ColumnDiff) HasChange(change string) bool {
	return slices.Contains(d.Changes, change)
}

// BecomesNotNull reports whether a column that accepted NULL no longer does.
// Primary keys are excluded; SQLite assigns INTEGER PRIMARY KEY values.
func (d ColumnDiff) BecomesNotNull() bool {
	return d.HasChange(ChangeNullable) && !d.New.Nullable && !d.New.IsPrimaryKey
}

// Table returns the diff for the named table, or nil when it is unchanged.
func (d *SchemaDiff) Table(name string) *TableDiff {
	for i := range d.ModifiedTables {
		if d.ModifiedTables[i].TableName == name {
			return &d.ModifiedTables[i]
		}
	}
	return nil
}
