package sqlitestore

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lockplane/storemigrate/database"
	"github.com/lockplane/storemigrate/database/sqlite"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/schema"
)

//go:embed mapping.schema.json
var mappingJSONSchema string

// MappingFileSuffix is the extension of mapping files in a catalog.
const MappingFileSuffix = ".mapping.json"

// Mapping describes how to fill each destination table from the source store.
// Destination tables that are not listed stay empty.
type Mapping struct {
	name     string
	inferred bool

	Description string         `json:"description,omitempty"`
	Tables      []TableMapping `json:"tables"`
}

// TableMapping fills one destination table. Columns maps destination column
// names to SQL expressions evaluated against a source row. When Columns is
// empty, every destination column that also exists in the source table is
// copied, with a CAST where the declared type changed.
type TableMapping struct {
	Destination string            `json:"destination"`
	Source      string            `json:"source,omitempty"`
	Columns     map[string]string `json:"columns,omitempty"`
	Where       string            `json:"where,omitempty"`
}

func (m *Mapping) Name() string { return m.name }

func (m *Mapping) Inferred() bool { return m.inferred }

// SourceTable returns the table rows are read from.
func (t TableMapping) SourceTable() string {
	if t.Source != "" {
		return t.Source
	}
	return t.Destination
}

// ParseMapping validates data against the mapping file schema and decodes it.
func ParseMapping(name string, data []byte) (*Mapping, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(mappingJSONSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate mapping %s: %w", name, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("invalid mapping %s: %s", name, strings.Join(problems, "; "))
	}

	m := &Mapping{name: name}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping %s: %w", name, err)
	}

	seen := make(map[string]bool, len(m.Tables))
	for _, t := range m.Tables {
		if seen[t.Destination] {
			return nil, fmt.Errorf("invalid mapping %s: table %q is filled twice", name, t.Destination)
		}
		seen[t.Destination] = true
	}

	return m, nil
}

// InferMapping derives a mapping that copies every destination table from
// the source table of the same name. Columns present in both are copied;
// columns new in the destination take their default. A column that becomes
// NOT NULL has NULLs replaced by its default. Inference fails when a new or
// tightened column is NOT NULL without a default.
func InferMapping(source, destination *Schema) (*Mapping, error) {
	diff := schema.DiffSchemas(source.Tables(), destination.Tables())

	added := make(map[string]bool, len(diff.AddedTables))
	for _, t := range diff.AddedTables {
		added[t.Name] = true
	}

	m := &Mapping{
		name:     source.Version() + "->" + destination.Version(),
		inferred: true,
	}

	for _, table := range destination.Tables().Tables {
		if added[table.Name] {
			continue
		}
		tm := TableMapping{Destination: table.Name}

		if tableDiff := diff.Table(table.Name); tableDiff != nil {
			for _, col := range tableDiff.AddedColumns {
				if !col.Nullable && col.Default == nil && !col.IsPrimaryKey {
					return nil, fmt.Errorf("%w: %s.%s is NOT NULL without a default and does not exist in %s",
						migration.ErrMappingInference, table.Name, col.Name, source.Version())
				}
			}

			var tightened []schema.ColumnDiff
			for _, col := range tableDiff.ModifiedColumns {
				if !col.BecomesNotNull() {
					continue
				}
				if col.New.Default == nil {
					return nil, fmt.Errorf("%w: %s.%s becomes NOT NULL without a default in %s",
						migration.ErrMappingInference, table.Name, col.ColumnName, destination.Version())
				}
				tightened = append(tightened, col)
			}
			if len(tightened) > 0 {
				tm.Columns = coalescedColumns(source.Tables().FindTable(table.Name), &table, tightened)
			}
		}

		m.Tables = append(m.Tables, tm)
	}

	return m, nil
}

// coalescedColumns spells out the shared-column copy of src into dst,
// replacing NULLs in the tightened columns with their new default.
func coalescedColumns(src, dst *database.Table, tightened []schema.ColumnDiff) map[string]string {
	columns, expressions := sharedColumns(sqlite.NewGenerator(), src, dst)
	out := make(map[string]string, len(columns))
	for i, col := range columns {
		out[col] = expressions[i]
		for _, t := range tightened {
			if t.ColumnName == col {
				out[col] = fmt.Sprintf("coalesce(%s, %s)", expressions[i], *t.New.Default)
			}
		}
	}
	return out
}

// copyStatements resolves the mapping against a step's schemas.
func (m *Mapping) copyStatements(gen *sqlite.Generator, alias string, source, destination *Schema) ([]database.CopyStatement, error) {
	statements := make([]database.CopyStatement, 0, len(m.Tables))

	for _, t := range m.Tables {
		dstTable := destination.Tables().FindTable(t.Destination)
		if dstTable == nil {
			return nil, fmt.Errorf("mapping %s fills table %q which does not exist in %s", m.name, t.Destination, destination.Version())
		}
		srcTable := source.Tables().FindTable(t.SourceTable())
		if srcTable == nil {
			return nil, fmt.Errorf("mapping %s reads table %q which does not exist in %s", m.name, t.SourceTable(), source.Version())
		}

		var columns, expressions []string
		if len(t.Columns) > 0 {
			for col := range t.Columns {
				if dstTable.FindColumn(col) == nil {
					return nil, fmt.Errorf("mapping %s fills column %s.%s which does not exist in %s", m.name, t.Destination, col, destination.Version())
				}
				columns = append(columns, col)
			}
			sort.Strings(columns)
			for _, col := range columns {
				expressions = append(expressions, t.Columns[col])
			}
		} else {
			columns, expressions = sharedColumns(gen, srcTable, dstTable)
		}

		if len(columns) == 0 {
			continue
		}

		statements = append(statements, gen.CopyRows(alias, srcTable.Name, dstTable.Name, columns, expressions, t.Where))
	}

	return statements, nil
}

// sharedColumns pairs destination columns with the source column of the same
// name, casting where the declared type changed.
func sharedColumns(gen *sqlite.Generator, src, dst *database.Table) ([]string, []string) {
	var columns, expressions []string
	for _, col := range dst.Columns {
		srcCol := src.FindColumn(col.Name)
		if srcCol == nil {
			continue
		}
		columns = append(columns, col.Name)
		if schema.NormalizeType(srcCol.Type) != schema.NormalizeType(col.Type) {
			expressions = append(expressions, gen.CastColumn(col.Name, col.Type))
		} else {
			expressions = append(expressions, sqlite.QuoteIdentifier(col.Name))
		}
	}
	return columns, expressions
}

var _ migration.Mapping = (*Mapping)(nil)
