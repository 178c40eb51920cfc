package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lockplane/storemigrate/database"
	sqlitedb "github.com/lockplane/storemigrate/database/sqlite"

	_ "modernc.org/sqlite"
)

// SchemaFileSuffix is the extension of SQLite DDL schema files.
const SchemaFileSuffix = ".lp.sql"

// LoadSQLiteDDL loads SQLite DDL by executing it against an in-memory database,
// then introspecting the resulting schema. The result is exactly what the
// introspector reports for a store file created from the same DDL.
func LoadSQLiteDDL(ctx context.Context, ddl string) (*database.Schema, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory sqlite database: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	ddlStatements := strings.TrimSpace(ddl)
	if ddlStatements != "" {
		if _, err := db.ExecContext(ctx, ddlStatements); err != nil {
			return nil, fmt.Errorf("failed to execute sqlite schema: %w", err)
		}
	}

	schema, err := sqlitedb.NewIntrospector().IntrospectSchema(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect sqlite schema: %w", err)
	}

	return schema, nil
}

// ReadDDL reads a version's DDL from fsys. name may be a single
// "<name>.lp.sql" file or a directory whose .lp.sql files are concatenated in
// lexical order (a shallow search, symlinks and subdirectories skipped).
func ReadDDL(fsys fs.FS, name string) (string, error) {
	if info, err := fs.Stat(fsys, name); err == nil && info.IsDir() {
		return readDDLDir(fsys, name)
	}

	file := name
	if !strings.HasSuffix(strings.ToLower(file), SchemaFileSuffix) {
		file += SchemaFileSuffix
	}

	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return "", fmt.Errorf("failed to read SQL file %s: %w", file, err)
	}
	return string(data), nil
}

func readDDLDir(fsys fs.FS, dir string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), SchemaFileSuffix) {
			sqlFiles = append(sqlFiles, path.Join(dir, entry.Name()))
		}
	}

	if len(sqlFiles) == 0 {
		return "", fmt.Errorf("no %s files found in directory %s: %w", SchemaFileSuffix, dir, fs.ErrNotExist)
	}

	sort.Strings(sqlFiles)

	var builder strings.Builder
	for _, file := range sqlFiles {
		data, readErr := fs.ReadFile(fsys, file)
		if readErr != nil {
			return "", fmt.Errorf("failed to read SQL file %s: %w", file, readErr)
		}

		builder.WriteString(fmt.Sprintf("-- File: %s\n", file))
		builder.Write(data)
		if len(data) == 0 || data[len(data)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return builder.String(), nil
}
